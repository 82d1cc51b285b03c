package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-digitaltwin/celltwin"
)

// stubTwin serves canned query results.
type stubTwin struct {
	snapshot celltwin.Snapshot
	metrics  celltwin.Metrics
	parts    []celltwin.Part
}

func (s stubTwin) Snapshot() celltwin.Snapshot { return s.snapshot }
func (s stubTwin) Metrics() celltwin.Metrics   { return s.metrics }
func (s stubTwin) Parts() []celltwin.Part      { return s.parts }

func TestHandler(t *testing.T) {
	twin := stubTwin{
		snapshot: celltwin.Snapshot{
			CellState:      celltwin.CellRunning,
			TotalProcessed: 7,
			TotalRejected:  2,
			PartsInSystem:  3,
		},
		metrics: celltwin.Metrics{
			Throughput:        0.5,
			RejectRate:        0.25,
			ObservationWindow: 14 * time.Second,
		},
		parts: []celltwin.Part{
			{ID: "P0", Status: celltwin.StatusSortedOK},
			{ID: "P1", Status: celltwin.StatusAtSensor},
		},
	}
	handler := Handler(twin)

	tests := []struct {
		path string
		want map[string]any
	}{
		{
			path: "/state",
			want: map[string]any{
				"cell_state":      "running",
				"total_processed": 7.0,
				"total_rejected":  2.0,
				"parts_in_system": 3.0,
				"error":           false,
			},
		},
		{
			path: "/metrics",
			want: map[string]any{
				"throughput":         0.5,
				"reject_rate":        0.25,
				"observation_window": 14.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("GET %s = %d, want 200", tt.path, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("CORS header = %q, want *", got)
			}

			var got map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("GET %s returned invalid JSON: %v", tt.path, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("GET %s mismatch (-want +got):\n%v", tt.path, diff)
			}
		})
	}
}

func TestHandlerParts(t *testing.T) {
	handler := Handler(stubTwin{parts: []celltwin.Part{
		{ID: "P0", Status: celltwin.StatusSortedNOK},
	}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parts", nil))

	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("GET /parts returned invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "P0" || got[0]["status"] != "sorted_nok" {
		t.Errorf("GET /parts = %v, want one sorted_nok part P0", got)
	}
}

func TestHandlerPartsNeverNull(t *testing.T) {
	// A twin with no parts must serialise as an empty list, not JSON null;
	// dashboards iterate the response without guarding.
	handler := Handler(stubTwin{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parts", nil))

	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("GET /parts with no parts = %q, want []", body)
	}
}

func TestHandlerRejectsMutatingMethods(t *testing.T) {
	handler := Handler(stubTwin{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/state", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /state = %d, want 405", rec.Code)
	}
}
