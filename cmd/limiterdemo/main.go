// Command limiterdemo runs a small HTTP service that fronts an
// overload-prone remote target through an adaptive concurrency governor.
// POST /fetch submits a request to the governor, which runs it against
// netfetch, classifies 503/429 responses as overload signals, and adjusts
// its own admission rate accordingly. GET /status renders a live snapshot
// of the governor's counters as text; GET /metrics renders the same
// counters for Prometheus scraping.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Andrej220/adaptivelimiter/backoff"
	"github.com/Andrej220/adaptivelimiter/governor"
	httpsrv "github.com/Andrej220/adaptivelimiter/httpsrv"
	"github.com/Andrej220/adaptivelimiter/metrics"
	"github.com/Andrej220/adaptivelimiter/netfetch"
	"github.com/Andrej220/adaptivelimiter/overload"
	"github.com/Andrej220/adaptivelimiter/retry"
	"github.com/Andrej220/adaptivelimiter/zlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FetchRequest is the decoded body of a POST /fetch call.
type FetchRequest struct {
	URL    string `json:"url"`
	Method string `json:"method"`
}

func validateFetchRequest(r *FetchRequest) error {
	if r.URL == "" {
		return errors.New("url is required")
	}
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	return nil
}

func fetchHandler(g *governor.Governor, client *netfetch.Client, classifier overload.StatusCodeClassifier, logger zlog.ZLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := httpsrv.GetRequest[FetchRequest](r.Context())
		if !ok {
			httpsrv.WriteJSONError(w, httpsrv.APIError{Code: "missing_request", Message: "decoded request not found", Status: http.StatusInternalServerError})
			return
		}

		op := func(ctx context.Context) (*netfetch.Response, error) {
			resp, err := client.Fetch(ctx, req.Method, req.URL)
			return resp, classifier.Classify(err)
		}

		b := backoff.New(100*time.Millisecond, 2*time.Second, 1)
		wrapped := retry.OnOverload[*netfetch.Response](overload.Default, b, 2*time.Second, op)

		handle, err := governor.Submit[*netfetch.Response](g, r.Context(), wrapped)
		if err != nil {
			if errors.Is(err, governor.ErrShutDown) {
				httpsrv.WriteJSONError(w, httpsrv.APIError{Code: "shutting_down", Message: "server is shutting down", Status: http.StatusServiceUnavailable})
				return
			}
			httpsrv.WriteJSONError(w, httpsrv.APIError{Code: "submit_failed", Message: err.Error(), Status: http.StatusInternalServerError})
			return
		}

		resp, err := handle.Wait(r.Context())
		if err != nil {
			status := http.StatusBadGateway
			var statusErr *netfetch.StatusError
			if errors.As(err, &statusErr) {
				status = statusErr.StatusCode()
			}
			logger.Warn("fetch failed", zlog.String("url", req.URL), zlog.Error("error", err))
			httpsrv.WriteJSONError(w, httpsrv.APIError{Code: "fetch_failed", Message: err.Error(), Status: status})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": resp.Status,
			"body":   string(resp.Body),
		})
	})
}

func statusHandler(g *governor.Governor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, g.Snapshot().String())
	}
}

func main() {
	logger := zlog.NewDefault("limiterdemo")
	defer logger.Sync()

	g, err := governor.New(
		governor.WithMaxConcurrency(64),
		governor.WithInitialConcurrency(4),
		governor.WithOverloadThreshold(0.1),
		governor.WithLogger(logger),
		governor.WithLogPrefix("governor"),
	)
	if err != nil {
		logger.Error("governor configuration rejected", zlog.Error("error", err))
		os.Exit(1)
	}

	client := netfetch.New(5 * time.Second)
	classifier := overload.StatusCodeClassifier{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(g))

	mux := http.NewServeMux()
	mux.Handle("/fetch", httpsrv.NewValidationHandler[FetchRequest](fetchHandler(g, client, classifier, logger), validateFetchRequest))
	mux.HandleFunc("/status", statusHandler(g))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	if err := httpsrv.RunServer(mux, httpsrv.DefaultServerConfig(logger)); err != nil {
		logger.Error("server error", zlog.Error("error", err))
	}

	g.Shutdown()
}
