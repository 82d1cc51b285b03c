/*
Package httpapi exposes the read-only presentation interface of a sorting-cell
digital twin over HTTP:

	GET /state    the aggregate snapshot (cell state, counters, error flag)
	GET /metrics  the rolling performance indicators
	GET /parts    every known part with its lifecycle position

All three endpoints are pure queries with no side effects and are safe to poll
at arbitrary frequency, e.g. from a dashboard. Responses carry permissive CORS
headers so a dashboard served from elsewhere can call the API directly.
*/
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/go-digitaltwin/celltwin"
)

// A TwinReader answers the three read queries of a digital twin. *celltwin.Twin
// implements it.
type TwinReader interface {
	Snapshot() celltwin.Snapshot
	Metrics() celltwin.Metrics
	Parts() []celltwin.Part
}

// metricsResponse flattens celltwin.Metrics for presentation: the observation
// window is reported in seconds, matching the unit of the throughput.
type metricsResponse struct {
	Throughput        float64 `json:"throughput"`
	RejectRate        float64 `json:"reject_rate"`
	ObservationWindow float64 `json:"observation_window"`
}

// Handler returns the API's HTTP handler, instrumented with OpenTelemetry.
func Handler(twin TwinReader) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, twin.Snapshot())
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		m := twin.Metrics()
		respond(w, r, metricsResponse{
			Throughput:        m.Throughput,
			RejectRate:        m.RejectRate,
			ObservationWindow: m.ObservationWindow.Seconds(),
		})
	})
	mux.HandleFunc("GET /parts", func(w http.ResponseWriter, r *http.Request) {
		parts := twin.Parts()
		if parts == nil {
			parts = []celltwin.Part{}
		}
		respond(w, r, parts)
	})
	return otelhttp.NewHandler(mux, "celltwin.httpapi")
}

func respond(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		component.Logger(r.Context()).Error("Failed to encode API response", slog.Any("error", err))
	}
}

// Serve returns a component.Proc that serves the API on addr until the
// component shuts down, then drains in-flight requests for a short grace
// period.
func Serve(addr string, twin TwinReader) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		server := &http.Server{Addr: addr, Handler: Handler(twin)}

		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()

		logger.Info("Serving twin API", slog.String("addr", addr))
		select {
		case <-l.Context().Done():
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Error("Failed to shut down API server", slog.Any("error", err))
			}
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				l.Fatal(err)
			}
		}
	}
}
