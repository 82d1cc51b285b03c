/*
Package twintest provides a suite of scripted scenarios designed to assess
sorting-cell digital twins.

The scenarios operate on the twin under test via the [Harness] interface to
check functional correctness of the lifecycle state machine, the anomaly
detection rules, and the derived performance indicators.

Call twintest.Run in its own test to invoke the test-suite:

	func TestTwin(t *testing.T) {
		twintest.Run(t, func(threshold time.Duration) twintest.Harness {
			return newHarness(threshold) // wrap a celltwin.Twin with a fake clock
		})
	}

The scenarios in this suite focus on externally observable behaviour: the
three read queries and the stall check. Specific twin deployments are
encouraged to perform additional tests for their transport and presentation
layers.
*/
package twintest

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/go-digitaltwin/celltwin"
)

// Harness drives one twin instance under test. Implementations wrap the twin
// with a controllable clock: Advance must move the clock the twin observes,
// so stall scenarios do not depend on real sleeping.
type Harness interface {
	// Ingest feeds one event to the twin. Rejections are absorbed by the
	// twin, exactly as in production.
	Ingest(e celltwin.Event)
	// Advance moves the twin's clock forward by d.
	Advance(d time.Duration)
	// CheckStall runs one stall check, as the monitor would on its tick.
	CheckStall() bool

	Snapshot() celltwin.Snapshot
	Metrics() celltwin.Metrics
	Parts() []celltwin.Part
}

// A check is any function that returns unexpected problems with the observed
// state of the harness.
type check func(Harness) (problem string)

type scenario struct {
	// Subtest name.
	name string
	// A path leading to the scenario's file and line in the source code.
	location string
	// The stall threshold the twin under test is constructed with.
	threshold time.Duration
	// The script drives the twin: events, clock advances, stall checks.
	script []step
	// Checks to run on the resulting state.
	checks []check
}

type step func(Harness)

// Run executes every scenario on a fresh twin built by newHarness with the
// scenario's stall threshold.
//
// Unlike a real deployment, each scenario starts from a pristine twin: the
// suite checks the correctness of individual behaviours, not the continuity
// of one long-lived aggregate (the aggregate has no persistence to carry
// across runs anyway).
func Run(t *testing.T, newHarness func(threshold time.Duration) Harness) {
	t.Helper()

	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			// We encourage developers to read the source code directly,
			// especially when failures are not clear enough.
			t.Logf("Read the source for scenario %v at %v", s.name, s.location)

			h := newHarness(s.threshold)
			for _, step := range s.script {
				step(h)
			}
			for _, check := range s.checks {
				if problem := check(h); problem != "" {
					t.Errorf("Check %v: %v", s.name, problem)
				}
			}
		})
	}
}

// Call this function to set the location of every scenario in the source
// file. The returned string guides developers of twin implementations to the
// appropriate scenario.
func locateSource() (path string) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		panic("runtime.Caller failed")
	}
	return fmt.Sprintf("%v:%v", file, line)
}
