package celltwin

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/celltwin")
var meter = otel.Meter("github.com/go-digitaltwin/celltwin")

const (
	// eventKindAttr labels records with the lifecycle event kind, enabling
	// both collective analysis across all kinds and per-kind breakdowns.
	eventKindAttr = "event.kind"
	// rejectReasonAttr labels rejection records with the tracker's reason
	// code (unknown_part, duplicate_arrival, out_of_order).
	rejectReasonAttr = "reject.reason"
	// transitionFromAttr and transitionToAttr label cell-state transition
	// records with the edge of the state machine that was taken.
	transitionFromAttr = "cell.from"
	transitionToAttr   = "cell.to"
)

var (
	// eventsAccepted counts events the tracker applied successfully.
	eventsAccepted metric.Int64Counter
	// eventsRejected counts events the tracker refused, by reason.
	eventsRejected metric.Int64Counter
	// applyDuration measures the duration of applying a single event to the
	// twin, including the lock wait shared with the stall monitor.
	applyDuration metric.Float64Histogram
	// stateTransitions counts cell-state machine edges as they are taken.
	stateTransitions metric.Int64Counter
	// droppedNotifications counts CellStateChanged notifications discarded
	// because the transition buffer was full.
	droppedNotifications metric.Int64Counter
)

func init() {
	var err error
	eventsAccepted, err = meter.Int64Counter(
		"cell.events.accepted",
		metric.WithDescription("The number of lifecycle events accepted by the part tracker."),
	)
	if err != nil {
		panic("celltwin: failed to init 'cell.events.accepted' instrument")
	}

	eventsRejected, err = meter.Int64Counter(
		"cell.events.rejected",
		metric.WithDescription("The number of lifecycle events rejected by the part tracker, labelled by reason."),
	)
	if err != nil {
		panic("celltwin: failed to init 'cell.events.rejected' instrument")
	}

	applyDuration, err = meter.Float64Histogram(
		"cell.events.apply.duration",
		metric.WithDescription("The duration of applying a single lifecycle event to the twin's aggregate state."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("celltwin: failed to init 'cell.events.apply.duration' instrument")
	}

	stateTransitions, err = meter.Int64Counter(
		"cell.state.transitions",
		metric.WithDescription("The number of cell-state machine transitions, labelled by edge."),
	)
	if err != nil {
		panic("celltwin: failed to init 'cell.state.transitions' instrument")
	}

	droppedNotifications, err = meter.Int64Counter(
		"cell.notifications.dropped",
		metric.WithDescription("The number of cell-state change notifications dropped due to a full transition buffer."),
	)
	if err != nil {
		panic("celltwin: failed to init 'cell.notifications.dropped' instrument")
	}
}

// measureApply records the outcome of applying one event: accepted events
// record their kind and duration, rejected events increment the failure
// counter labelled with the tracker's reason.
func measureApply(ctx context.Context, kind Kind, err error, d time.Duration) {
	if err == nil {
		attrs := attribute.NewSet(attribute.String(eventKindAttr, string(kind)))
		eventsAccepted.Add(ctx, 1, metric.WithAttributeSet(attrs))
		// Floating-point division for higher precision than the Millisecond
		// method.
		applyDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributeSet(attrs))
		return
	}

	reason := Reason("unclassified")
	if rejected, ok := AsRejected(err); ok {
		reason = rejected.Reason
	}
	attrs := attribute.NewSet(
		attribute.String(eventKindAttr, string(kind)),
		attribute.String(rejectReasonAttr, string(reason)),
	)
	eventsRejected.Add(ctx, 1, metric.WithAttributeSet(attrs))
}

// measureTransition records one edge of the cell-state machine.
func measureTransition(ctx context.Context, from, to CellState) {
	attrs := attribute.NewSet(
		attribute.String(transitionFromAttr, string(from)),
		attribute.String(transitionToAttr, string(to)),
	)
	stateTransitions.Add(ctx, 1, metric.WithAttributeSet(attrs))
}

// measureDroppedNotification records one discarded CellStateChanged
// notification.
func measureDroppedNotification(ctx context.Context) {
	droppedNotifications.Add(ctx, 1)
}
