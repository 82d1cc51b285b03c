package celltwin

import (
	"fmt"
	"time"
)

// Kind is the closed set of lifecycle events a sorting cell emits about the
// parts it processes. The tracker switches exhaustively over these values, so
// introducing a new kind is a compile-time visible change.
type Kind string

const (
	// KindPartArrived announces a new part placed on the conveyor.
	KindPartArrived Kind = "part_arrived"
	// KindSensorRead reports the quality-inspection result for a part.
	KindSensorRead Kind = "sensor_read"
	// KindActuatorTriggered reports the bin decision taken for a part.
	KindActuatorTriggered Kind = "actuator_triggered"
	// KindPartSorted reports the final outcome of sorting a part.
	KindPartSorted Kind = "part_sorted"
)

// PartID identifies a single physical part across its lifecycle events.
type PartID string

// Outcome is the quality verdict attached to sensor readings and sort
// results.
type Outcome string

const (
	OutcomeOK  Outcome = "ok"
	OutcomeNOK Outcome = "nok"
)

// BinDecision is the destination bin chosen by the actuator.
type BinDecision string

const (
	BinOK     BinDecision = "ok_bin"
	BinReject BinDecision = "reject_bin"
)

// Event is the envelope exchanged between the physical cell (or its
// simulation) and the digital twin. Events are immutable once created.
//
// Timestamp is the producer's emission time, taken from [time.Now] so it
// carries Go's monotonic clock reading; threshold comparisons inside the twin
// never depend on wall-clock adjustments.
//
// Result is meaningful for KindSensorRead and KindPartSorted; Decision for
// KindActuatorTriggered. Unused fields are left zero.
type Event struct {
	Kind      Kind
	PartID    PartID
	Result    Outcome
	Decision  BinDecision
	Timestamp time.Time
}

// Validate classifies malformed input that cannot be interpreted as a
// lifecycle event at all. It belongs at the deserialisation boundary: events
// failing Validate must never reach the tracker, which assumes a well-formed
// envelope and only rules on lifecycle ordering.
func (e Event) Validate() error {
	if e.PartID == "" {
		return fmt.Errorf("event %q without a part id", e.Kind)
	}
	switch e.Kind {
	case KindPartArrived:
		return nil
	case KindSensorRead, KindPartSorted:
		if e.Result != OutcomeOK && e.Result != OutcomeNOK {
			return fmt.Errorf("event %q for part %q with result %q", e.Kind, e.PartID, e.Result)
		}
		return nil
	case KindActuatorTriggered:
		if e.Decision != BinOK && e.Decision != BinReject {
			return fmt.Errorf("event %q for part %q with decision %q", e.Kind, e.PartID, e.Decision)
		}
		return nil
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

// String returns a compact human-readable representation of the event. Use it
// often to make debug logs of event streams more readable.
func (e Event) String() string {
	switch e.Kind {
	case KindSensorRead, KindPartSorted:
		return fmt.Sprintf("%s(%s/%s)", e.Kind, e.PartID, e.Result)
	case KindActuatorTriggered:
		return fmt.Sprintf("%s(%s/%s)", e.Kind, e.PartID, e.Decision)
	default:
		return fmt.Sprintf("%s(%s)", e.Kind, e.PartID)
	}
}
