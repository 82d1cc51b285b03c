package celltwin

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{name: "arrival", event: Event{Kind: KindPartArrived, PartID: "P1"}},
		{name: "sensor-ok", event: Event{Kind: KindSensorRead, PartID: "P1", Result: OutcomeOK}},
		{name: "sorted-nok", event: Event{Kind: KindPartSorted, PartID: "P1", Result: OutcomeNOK}},
		{name: "actuator-reject", event: Event{Kind: KindActuatorTriggered, PartID: "P1", Decision: BinReject}},
		{name: "missing-part-id", event: Event{Kind: KindPartArrived}, wantErr: true},
		{name: "unknown-kind", event: Event{Kind: "conveyor_jammed", PartID: "P1"}, wantErr: true},
		{name: "sensor-without-result", event: Event{Kind: KindSensorRead, PartID: "P1"}, wantErr: true},
		{name: "actuator-without-decision", event: Event{Kind: KindActuatorTriggered, PartID: "P1"}, wantErr: true},
		{name: "sorted-with-garbage-result", event: Event{Kind: KindPartSorted, PartID: "P1", Result: "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) = %v, wantErr %v", tt.event, err, tt.wantErr)
			}
		})
	}
}

func TestEventWireCodec(t *testing.T) {
	original := Event{
		Kind:      KindPartSorted,
		PartID:    "P42",
		Result:    OutcomeNOK,
		Timestamp: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}

	p, err := encodeEvent(original)
	if err != nil {
		t.Fatal("encodeEvent()", err)
	}
	reconstructed, err := decodeEvent(p)
	if err != nil {
		t.Fatal("decodeEvent()", err)
	}

	if diff := cmp.Diff(original, reconstructed); diff != "" {
		t.Error("Reconstructed event differs:", diff)
	}
}

func TestDecodeEventRejectsMalformed(t *testing.T) {
	// A well-formed gob of a malformed event must still be rejected at this
	// boundary.
	p, err := encodeEvent(Event{Kind: "conveyor_jammed", PartID: "P1"})
	if err != nil {
		t.Fatal("encodeEvent()", err)
	}
	if _, err := decodeEvent(p); err == nil {
		t.Error("decodeEvent() accepted an event with an unknown kind")
	}

	if _, err := decodeEvent([]byte("not a gob stream")); err == nil {
		t.Error("decodeEvent() accepted garbage bytes")
	}
}
