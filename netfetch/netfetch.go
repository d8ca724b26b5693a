// Package netfetch is a minimal HTTP client standing in for the
// overload-prone remote service a caller admits requests against through a
// governor. It turns a non-2xx response into a *StatusError satisfying
// overload.HTTPStatusError, so overload.StatusCodeClassifier can tell a
// 503/429 throttle apart from an ordinary failure without netfetch knowing
// anything about overload classification itself.
package netfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// StatusError reports a response whose status code is 400 or above. It
// satisfies overload.HTTPStatusError via StatusCode.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("netfetch: %s %s: %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
}

// StatusCode implements overload.HTTPStatusError.
func (e *StatusError) StatusCode() int { return e.Status }

// Response is the result of a successful Fetch.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client fetches URLs over HTTP. The zero value is not usable; construct one
// with New.
type Client struct {
	http *http.Client
}

// New returns a Client with the given per-request timeout. A timeout of 0 or
// below uses defaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Fetch issues method against url and reads the full response body. A
// response with a status code of 400 or above is reported as a *StatusError
// rather than folded into a nil-error Response.
func (c *Client) Fetch(ctx context.Context, method, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("netfetch: building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("netfetch: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("netfetch: reading body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Method: method, URL: url, Status: resp.StatusCode, Body: string(body)}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
