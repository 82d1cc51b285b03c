package celltwin

import (
	"errors"
	"fmt"
	"time"
)

// A Reason classifies why the tracker rejected an event. The values are
// stable identifiers that also appear in telemetry attributes and logs.
type Reason string

const (
	// ReasonUnknownPart marks an event (other than an arrival) referencing a
	// part id the tracker has never seen.
	ReasonUnknownPart Reason = "unknown_part"
	// ReasonDuplicateArrival marks a second arrival for a known part id.
	ReasonDuplicateArrival Reason = "duplicate_arrival"
	// ReasonOutOfOrder marks an event whose required predecessor status does
	// not match the part's current status.
	ReasonOutOfOrder Reason = "out_of_order"
)

// RejectedError reports an event the tracker refused to apply. Rejections are
// ordinary values, never panics: the orchestrator interprets them as an
// anomaly signal about the physical process, not as a fault of the twin.
type RejectedError struct {
	Reason Reason
	PartID PartID
	Kind   Kind
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("event %s for part %s rejected: %s", e.Kind, e.PartID, e.Reason)
}

// AsRejected unwraps err into a *RejectedError, if it is one.
func AsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	ok := errors.As(err, &rejected)
	return rejected, ok
}

// Tracker holds the mapping from part identifier to [Part] and validates
// lifecycle transitions. A part's status never changes outside a validated
// transition.
//
// Tracker is not safe for concurrent use; the [Twin] serialises all access to
// it under the same lock that guards the aggregate state.
type Tracker struct {
	parts map[PartID]*Part
	// Insertion order of part ids, so Parts() lists them in first-arrival
	// order.
	order []PartID
	// Count of parts currently in a terminal status, kept incrementally to
	// answer InFlight without scanning.
	terminal int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{parts: make(map[PartID]*Part)}
}

// Apply validates the event against the part's current lifecycle position and,
// if valid, advances the part. It returns a snapshot of the part after the
// transition.
//
// The single validity rule: the event's required predecessor status must match
// the part's current status (arrivals require the part to be unknown). On
// rejection the part is left untouched and the returned error is a
// [*RejectedError] carrying the reason.
func (t *Tracker) Apply(e Event) (Part, error) {
	switch e.Kind {
	case KindPartArrived:
		if _, known := t.parts[e.PartID]; known {
			return Part{}, &RejectedError{Reason: ReasonDuplicateArrival, PartID: e.PartID, Kind: e.Kind}
		}
		// Arrival implies conveyor placement: the part is created and
		// immediately advances to on_conveyor in one transition.
		p := &Part{ID: e.PartID, Status: StatusCreated}
		t.parts[e.PartID] = p
		t.order = append(t.order, e.PartID)
		return t.advance(p, StatusOnConveyor, e.Timestamp), nil

	case KindSensorRead, KindActuatorTriggered, KindPartSorted:
		p, known := t.parts[e.PartID]
		if !known {
			return Part{}, &RejectedError{Reason: ReasonUnknownPart, PartID: e.PartID, Kind: e.Kind}
		}
		if p.Status != requiredStatus[e.Kind] {
			return Part{}, &RejectedError{Reason: ReasonOutOfOrder, PartID: e.PartID, Kind: e.Kind}
		}
		switch e.Kind {
		case KindSensorRead:
			return t.advance(p, StatusAtSensor, e.Timestamp), nil
		case KindActuatorTriggered:
			return t.advance(p, StatusReadyToSort, e.Timestamp), nil
		default:
			if e.Result == OutcomeOK {
				return t.advance(p, StatusSortedOK, e.Timestamp), nil
			}
			return t.advance(p, StatusSortedNOK, e.Timestamp), nil
		}

	default:
		// Unknown kinds are filtered by Event.Validate at the deserialisation
		// boundary; reaching this arm means a caller bypassed it.
		return Part{}, fmt.Errorf("apply: unknown event kind %q", e.Kind)
	}
}

func (t *Tracker) advance(p *Part, to PartStatus, at time.Time) Part {
	p.Status = to
	p.LastUpdate = at
	if to.Terminal() {
		t.terminal++
	}
	return *p
}

// Part returns a snapshot of the part with the given id.
func (t *Tracker) Part(id PartID) (Part, bool) {
	p, ok := t.parts[id]
	if !ok {
		return Part{}, false
	}
	return *p, true
}

// Parts returns snapshots of every known part in first-arrival order.
func (t *Tracker) Parts() []Part {
	parts := make([]Part, 0, len(t.order))
	for _, id := range t.order {
		parts = append(parts, *t.parts[id])
	}
	return parts
}

// InFlight returns the number of parts that have not reached a terminal
// status.
func (t *Tracker) InFlight() int {
	return len(t.parts) - t.terminal
}
