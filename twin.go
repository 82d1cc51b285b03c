package celltwin

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/danielorbach/go-component"
)

// CellState is the aggregate condition of the whole sorting cell as observed
// by the twin.
type CellState string

const (
	// CellIdle means no event has ever been accepted. A cell that never
	// started is not "blocked".
	CellIdle CellState = "idle"
	// CellRunning means events are being accepted at a healthy rate.
	CellRunning CellState = "running"
	// CellBlocked means no valid event has been accepted for longer than the
	// configured stall threshold. Cleared by the next accepted event.
	CellBlocked CellState = "blocked"
	// CellError means at least one event was rejected as inconsistent with a
	// part's known lifecycle position. The state is sticky: an invalid
	// sequence indicates a real fault worth keeping visible until an external
	// reset, so no later valid event clears it.
	CellError CellState = "error"
)

// Snapshot is the aggregate view answered by [Twin.Snapshot]. It is a plain
// record with no references into the twin, safe to retain and serialise.
type Snapshot struct {
	CellState      CellState `json:"cell_state"`
	TotalProcessed int       `json:"total_processed"`
	TotalRejected  int       `json:"total_rejected"`
	PartsInSystem  int       `json:"parts_in_system"`
	Error          bool      `json:"error"`
}

// Metrics are the rolling performance indicators computed by [Twin.Metrics].
//
// Throughput is parts per second over the observation window; RejectRate is
// the fraction of processed parts sorted NOK. Both are defined as zero while
// their denominator is zero.
type Metrics struct {
	Throughput        float64       `json:"throughput"`
	RejectRate        float64       `json:"reject_rate"`
	ObservationWindow time.Duration `json:"observation_window"`
}

// Twin is the digital twin of a single sorting cell. It consumes lifecycle
// events, maintains the authoritative state model, detects stalled processes
// and invalid event orderings, and answers the read queries used by
// presentation layers.
//
// Two independent activities mutate the aggregate: the consume loop
// ([Twin.Run]) and the stall monitor ([Twin.Monitor]). Both, and every read
// query, serialise through the twin's single mutex, which guards the
// aggregate state and the part tracker as a unit. Queries therefore never
// observe a torn state mid-transition.
type Twin struct {
	blockedThreshold time.Duration
	now              func() time.Time

	mu             sync.Mutex
	tracker        *Tracker
	state          CellState
	totalProcessed int
	totalRejected  int
	lastEvent      time.Time
	startTime      time.Time
	errorFlag      bool

	// Cell-state transitions pending publication. Advisory: overflow drops
	// (counted in telemetry), the read queries remain authoritative.
	transitions chan CellStateChanged
}

// An Option configures a Twin beyond its required parameters.
type Option func(*Twin)

// WithClock overrides the twin's time source. The twin must observe time
// through a single clock so stall detection compares like with like; tests
// substitute a fake clock here.
func WithClock(now func() time.Time) Option {
	return func(t *Twin) { t.now = now }
}

// NewTwin returns a twin for a cell considered stalled after blockedThreshold
// without an accepted event. The threshold must be positive; configuration
// validation happens before construction.
//
// The aggregate starts idle with zero counters and the system start time set
// to now. There is no persistence: the aggregate lives and dies with the
// process.
func NewTwin(blockedThreshold time.Duration, opts ...Option) *Twin {
	t := &Twin{
		blockedThreshold: blockedThreshold,
		now:              time.Now,
		tracker:          NewTracker(),
		state:            CellIdle,
		transitions:      make(chan CellStateChanged, transitionBuffer),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.startTime = t.now()
	return t
}

const transitionBuffer = 64

// Ingest applies a single event to the twin.
//
// On acceptance the aggregate advances: the last-event time moves forward, a
// part reaching a terminal status increments the processed (and, for NOK, the
// rejected) counter, and an idle or blocked cell returns to running. On
// rejection the aggregate is marked faulty: the sticky error flag is set and
// the cell state becomes error.
//
// The returned error is the tracker's [*RejectedError] for rejected events,
// so callers can log or count them; it is never fatal and the twin absorbs
// every rejection into its own state. Events failing [Event.Validate] are the
// caller's responsibility and must not be passed in.
func (t *Twin) Ingest(ctx context.Context, e Event) (err error) {
	defer func(start time.Time) {
		measureApply(ctx, e.Kind, err, time.Since(start))
	}(time.Now())

	t.mu.Lock()
	defer t.mu.Unlock()

	part, err := t.tracker.Apply(e)
	if err != nil {
		t.errorFlag = true
		t.setStateLocked(CellError)
		return err
	}

	// Only accepted events advance the last-event time, so a burst of invalid
	// events cannot mask a real stall.
	t.lastEvent = t.now()
	if part.Status.Terminal() {
		t.totalProcessed++
		if part.Status == StatusSortedNOK {
			t.totalRejected++
		}
	}
	if t.state == CellIdle || t.state == CellBlocked {
		t.setStateLocked(CellRunning)
	}
	return nil
}

// setStateLocked records a cell-state transition. Callers must hold t.mu.
func (t *Twin) setStateLocked(to CellState) {
	from := t.state
	if from == to {
		return
	}
	t.state = to
	measureTransition(context.Background(), from, to)

	n := CellStateChanged{From: from, To: to, Timestamp: t.now()}
	select {
	case t.transitions <- n:
	default:
		measureDroppedNotification(context.Background())
	}
}

// CheckStall performs one stall check against the twin's clock and reports
// whether it transitioned the cell to blocked.
//
// The check only ever sets blocked: a running cell whose idle time exceeds the
// threshold stalls; an idle cell is left alone; blocked and error states are
// untouched. Only a newly accepted event clears a stall.
func (t *Twin) CheckStall() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != CellRunning {
		return false
	}
	if t.now().Sub(t.lastEvent) <= t.blockedThreshold {
		return false
	}
	t.setStateLocked(CellBlocked)
	return true
}

// Snapshot returns the current aggregate view. It does not mutate the twin
// and is safe to poll at arbitrary frequency.
func (t *Twin) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		CellState:      t.state,
		TotalProcessed: t.totalProcessed,
		TotalRejected:  t.totalRejected,
		PartsInSystem:  t.tracker.InFlight(),
		Error:          t.errorFlag,
	}
}

// Metrics returns the rolling performance indicators. The observation window
// spans from twin construction to the last accepted event; while it is zero
// (no events yet) the throughput is defined as zero, and while nothing has
// been processed the reject rate is defined as zero.
func (t *Twin) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	var window time.Duration
	if !t.lastEvent.IsZero() {
		window = t.lastEvent.Sub(t.startTime)
	}
	m := Metrics{ObservationWindow: window}
	if window > 0 {
		m.Throughput = float64(t.totalProcessed) / window.Seconds()
	}
	if t.totalProcessed > 0 {
		m.RejectRate = float64(t.totalRejected) / float64(t.totalProcessed)
	}
	return m
}

// Parts returns every known part in first-arrival order.
func (t *Twin) Parts() []Part {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.Parts()
}

// Run returns a component.Proc that consumes events from the bus and applies
// them to the twin until the bus closes or the component shuts down.
//
// Rejections are logged and absorbed; the worst observable outcome of a bad
// event stream is a reported error state, never a crash of the loop.
func (t *Twin) Run(bus *Bus) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		for l.Continue() {
			e, err := bus.Next(l.GraceContext())
			if err != nil {
				if errors.Is(err, ErrBusClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				l.Fatal(err)
			}

			if err := e.Validate(); err != nil {
				// Malformed input is rejected at the deserialisation boundary
				// and never classified against the lifecycle.
				logger.Warn("Dropping malformed event", slog.Any("error", err))
				continue
			}

			if err := t.Ingest(l.Context(), e); err != nil {
				logger.Warn("Event rejected by the part tracker",
					slog.String("event", e.String()),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Monitor returns a component.Proc that runs the periodic stall check every
// interval. Pick a fraction of the blocked threshold (one second works for
// thresholds of a few seconds) so a stall is reported promptly after it
// exceeds the threshold.
//
// The monitor shares the twin's lock with the consume loop; it never keeps
// its own copy of the aggregate.
func (t *Twin) Monitor(interval time.Duration) component.Proc {
	return func(l *component.L) {
		logger := component.Logger(l.Context())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for l.Continue() {
			select {
			case <-ticker.C:
				if t.CheckStall() {
					logger.Warn("No accepted events within the stall threshold, cell is blocked",
						slog.Duration("threshold", t.blockedThreshold),
					)
				}
			case <-l.Context().Done():
				return
			}
		}
	}
}
