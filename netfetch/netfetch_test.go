package netfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Andrej220/adaptivelimiter/overload"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(0)
	resp, err := c.Fetch(context.Background(), http.MethodGet, srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.Status != http.StatusOK || string(resp.Body) != "ok" {
		t.Fatalf("got status=%d body=%q", resp.Status, resp.Body)
	}
}

func TestFetchStatusErrorClassifiesAsOverload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(0)
	_, err := c.Fetch(context.Background(), http.MethodGet, srv.URL)
	if err == nil {
		t.Fatalf("expected an error for a 503 response")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode() != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", statusErr.StatusCode())
	}

	classifier := overload.StatusCodeClassifier{}
	classified := classifier.Classify(err)
	if !overload.Default.Is(classified) {
		t.Fatalf("classified error does not match the default overload sentinel: %v", classified)
	}
}

func TestFetchOrdinaryStatusIsNotOverload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(0)
	_, err := c.Fetch(context.Background(), http.MethodGet, srv.URL)
	if err == nil {
		t.Fatalf("expected an error for a 404 response")
	}

	classifier := overload.StatusCodeClassifier{}
	classified := classifier.Classify(err)
	if overload.Default.Is(classified) {
		t.Fatalf("a 404 should not classify as overload")
	}
}
