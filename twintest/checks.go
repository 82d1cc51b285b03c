package twintest

import (
	"fmt"
	"math"
	"time"

	"github.com/go-digitaltwin/celltwin"
)

// Script helpers. Event timestamps are irrelevant to the twin's aggregate
// (it reads its own clock on acceptance), so the helpers leave them zero.

func arrive(id celltwin.PartID) step {
	return func(h Harness) {
		h.Ingest(celltwin.Event{Kind: celltwin.KindPartArrived, PartID: id})
	}
}

func sense(id celltwin.PartID, result celltwin.Outcome) step {
	return func(h Harness) {
		h.Ingest(celltwin.Event{Kind: celltwin.KindSensorRead, PartID: id, Result: result})
	}
}

func actuate(id celltwin.PartID, decision celltwin.BinDecision) step {
	return func(h Harness) {
		h.Ingest(celltwin.Event{Kind: celltwin.KindActuatorTriggered, PartID: id, Decision: decision})
	}
}

func sorted(id celltwin.PartID, outcome celltwin.Outcome) step {
	return func(h Harness) {
		h.Ingest(celltwin.Event{Kind: celltwin.KindPartSorted, PartID: id, Result: outcome})
	}
}

// process scripts the full accepted lifecycle of one part.
func process(id celltwin.PartID, outcome celltwin.Outcome) step {
	decision := celltwin.BinOK
	if outcome == celltwin.OutcomeNOK {
		decision = celltwin.BinReject
	}
	return func(h Harness) {
		arrive(id)(h)
		sense(id, outcome)(h)
		actuate(id, decision)(h)
		sorted(id, outcome)(h)
	}
}

func advance(d time.Duration) step {
	return func(h Harness) { h.Advance(d) }
}

func checkStall() step {
	return func(h Harness) { h.CheckStall() }
}

// Checks on the resulting state.

func cellState(want celltwin.CellState) check {
	return func(h Harness) string {
		if got := h.Snapshot().CellState; got != want {
			return fmt.Sprintf("cell_state = %v, want %v", got, want)
		}
		return ""
	}
}

func processed(want int) check {
	return func(h Harness) string {
		if got := h.Snapshot().TotalProcessed; got != want {
			return fmt.Sprintf("total_processed = %v, want %v", got, want)
		}
		return ""
	}
}

func rejected(want int) check {
	return func(h Harness) string {
		if got := h.Snapshot().TotalRejected; got != want {
			return fmt.Sprintf("total_rejected = %v, want %v", got, want)
		}
		return ""
	}
}

func inSystem(want int) check {
	return func(h Harness) string {
		if got := h.Snapshot().PartsInSystem; got != want {
			return fmt.Sprintf("parts_in_system = %v, want %v", got, want)
		}
		return ""
	}
}

func errorFlag(want bool) check {
	return func(h Harness) string {
		if got := h.Snapshot().Error; got != want {
			return fmt.Sprintf("error = %v, want %v", got, want)
		}
		return ""
	}
}

func partStatus(id celltwin.PartID, want celltwin.PartStatus) check {
	return func(h Harness) string {
		for _, p := range h.Parts() {
			if p.ID == id {
				if p.Status != want {
					return fmt.Sprintf("part %v status = %v, want %v", id, p.Status, want)
				}
				return ""
			}
		}
		return fmt.Sprintf("part %v not listed", id)
	}
}

func partOrder(ids ...celltwin.PartID) check {
	return func(h Harness) string {
		parts := h.Parts()
		if len(parts) != len(ids) {
			return fmt.Sprintf("len(parts) = %v, want %v", len(parts), len(ids))
		}
		for i, p := range parts {
			if p.ID != ids[i] {
				return fmt.Sprintf("parts[%d] = %v, want %v", i, p.ID, ids[i])
			}
		}
		return ""
	}
}

func rejectRate(want float64) check {
	return func(h Harness) string {
		if got := h.Metrics().RejectRate; !closeEnough(got, want) {
			return fmt.Sprintf("reject_rate = %v, want %v", got, want)
		}
		return ""
	}
}

func throughput(want float64) check {
	return func(h Harness) string {
		if got := h.Metrics().Throughput; !closeEnough(got, want) {
			return fmt.Sprintf("throughput = %v, want %v", got, want)
		}
		return ""
	}
}

func observationWindow(want time.Duration) check {
	return func(h Harness) string {
		if got := h.Metrics().ObservationWindow; got != want {
			return fmt.Sprintf("observation_window = %v, want %v", got, want)
		}
		return ""
	}
}

func closeEnough(got, want float64) bool {
	return math.Abs(got-want) <= 1e-9
}
