package celltwin

import (
	"testing"
)

func TestTrackerLifecycle(t *testing.T) {
	// Each case replays a script of events and checks the final judgement on
	// the last one, plus the resulting status of the part it references.
	tests := []struct {
		name       string
		script     []Event
		wantReason Reason // empty means the last event must be accepted
		wantStatus PartStatus
	}{
		{
			name:       "arrival-creates-on-conveyor",
			script:     []Event{{Kind: KindPartArrived, PartID: "X"}},
			wantStatus: StatusOnConveyor,
		},
		{
			name: "full-lifecycle-ok",
			script: []Event{
				{Kind: KindPartArrived, PartID: "X"},
				{Kind: KindSensorRead, PartID: "X", Result: OutcomeOK},
				{Kind: KindActuatorTriggered, PartID: "X", Decision: BinOK},
				{Kind: KindPartSorted, PartID: "X", Result: OutcomeOK},
			},
			wantStatus: StatusSortedOK,
		},
		{
			name: "full-lifecycle-nok",
			script: []Event{
				{Kind: KindPartArrived, PartID: "X"},
				{Kind: KindSensorRead, PartID: "X", Result: OutcomeNOK},
				{Kind: KindActuatorTriggered, PartID: "X", Decision: BinReject},
				{Kind: KindPartSorted, PartID: "X", Result: OutcomeNOK},
			},
			wantStatus: StatusSortedNOK,
		},
		{
			name: "duplicate-arrival",
			script: []Event{
				{Kind: KindPartArrived, PartID: "X"},
				{Kind: KindPartArrived, PartID: "X"},
			},
			wantReason: ReasonDuplicateArrival,
			wantStatus: StatusOnConveyor,
		},
		{
			name:       "sensor-read-for-unknown-part",
			script:     []Event{{Kind: KindSensorRead, PartID: "X", Result: OutcomeOK}},
			wantReason: ReasonUnknownPart,
		},
		{
			name:       "sorted-for-unknown-part",
			script:     []Event{{Kind: KindPartSorted, PartID: "X", Result: OutcomeOK}},
			wantReason: ReasonUnknownPart,
		},
		{
			name: "actuator-before-sensor",
			script: []Event{
				{Kind: KindPartArrived, PartID: "X"},
				{Kind: KindActuatorTriggered, PartID: "X", Decision: BinOK},
			},
			wantReason: ReasonOutOfOrder,
			wantStatus: StatusOnConveyor,
		},
		{
			name: "sorted-before-actuator",
			script: []Event{
				{Kind: KindPartArrived, PartID: "X"},
				{Kind: KindSensorRead, PartID: "X", Result: OutcomeOK},
				{Kind: KindPartSorted, PartID: "X", Result: OutcomeOK},
			},
			wantReason: ReasonOutOfOrder,
			wantStatus: StatusAtSensor,
		},
		{
			name: "terminal-replay",
			script: []Event{
				{Kind: KindPartArrived, PartID: "X"},
				{Kind: KindSensorRead, PartID: "X", Result: OutcomeOK},
				{Kind: KindActuatorTriggered, PartID: "X", Decision: BinOK},
				{Kind: KindPartSorted, PartID: "X", Result: OutcomeOK},
				{Kind: KindPartSorted, PartID: "X", Result: OutcomeOK},
			},
			wantReason: ReasonOutOfOrder,
			wantStatus: StatusSortedOK,
		},
		{
			name: "sensor-read-repeated",
			script: []Event{
				{Kind: KindPartArrived, PartID: "X"},
				{Kind: KindSensorRead, PartID: "X", Result: OutcomeOK},
				{Kind: KindSensorRead, PartID: "X", Result: OutcomeOK},
			},
			wantReason: ReasonOutOfOrder,
			wantStatus: StatusAtSensor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker()

			var lastErr error
			for i, e := range tt.script {
				_, err := tracker.Apply(e)
				if i < len(tt.script)-1 && err != nil {
					t.Fatalf("Apply(%v) failed mid-script: %v", e, err)
				}
				lastErr = err
			}

			if tt.wantReason == "" {
				if lastErr != nil {
					t.Fatalf("Apply(last) = %v, want accepted", lastErr)
				}
			} else {
				rejected, ok := AsRejected(lastErr)
				if !ok {
					t.Fatalf("Apply(last) = %v, want a *RejectedError", lastErr)
				}
				if rejected.Reason != tt.wantReason {
					t.Errorf("rejection reason = %v, want %v", rejected.Reason, tt.wantReason)
				}
			}

			if tt.wantStatus != "" {
				part, ok := tracker.Part(tt.script[0].PartID)
				if !ok {
					t.Fatalf("part %v unknown after script", tt.script[0].PartID)
				}
				if part.Status != tt.wantStatus {
					t.Errorf("part status = %v, want %v", part.Status, tt.wantStatus)
				}
			}
		})
	}
}

func TestTrackerRejectionDoesNotMutate(t *testing.T) {
	tracker := NewTracker()
	if _, err := tracker.Apply(Event{Kind: KindPartArrived, PartID: "X"}); err != nil {
		t.Fatal("Apply(arrival)", err)
	}

	before, _ := tracker.Part("X")
	if _, err := tracker.Apply(Event{Kind: KindPartSorted, PartID: "X", Result: OutcomeOK}); err == nil {
		t.Fatal("Apply(out-of-order sort) accepted, want rejection")
	}
	after, _ := tracker.Part("X")

	if before != after {
		t.Errorf("part mutated by a rejected event: %+v != %+v", before, after)
	}
}

func TestTrackerInFlight(t *testing.T) {
	tracker := NewTracker()

	script := []Event{
		{Kind: KindPartArrived, PartID: "A"},
		{Kind: KindPartArrived, PartID: "B"},
		{Kind: KindSensorRead, PartID: "A", Result: OutcomeOK},
		{Kind: KindActuatorTriggered, PartID: "A", Decision: BinOK},
		{Kind: KindPartSorted, PartID: "A", Result: OutcomeOK},
	}
	for _, e := range script {
		if _, err := tracker.Apply(e); err != nil {
			t.Fatalf("Apply(%v): %v", e, err)
		}
	}

	if got := tracker.InFlight(); got != 1 {
		t.Errorf("InFlight() = %v, want 1 (only B is non-terminal)", got)
	}

	parts := tracker.Parts()
	if len(parts) != 2 || parts[0].ID != "A" || parts[1].ID != "B" {
		t.Errorf("Parts() = %v, want [A B] in first-arrival order", parts)
	}
}
