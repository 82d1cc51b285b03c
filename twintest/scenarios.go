package twintest

import (
	"time"

	"github.com/go-digitaltwin/celltwin"
)

// The default stall threshold for scenarios that do not exercise stalling.
const threshold = 5 * time.Second

var scenarios = []scenario{
	{
		name:      "pristine-twin-is-idle",
		location:  locateSource(),
		threshold: threshold,
		checks: []check{
			cellState(celltwin.CellIdle),
			processed(0),
			rejected(0),
			inSystem(0),
			errorFlag(false),
			throughput(0),
			rejectRate(0),
			observationWindow(0),
		},
	},
	{
		name:      "accepted-lifecycle-ok",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			process("X", celltwin.OutcomeOK),
		},
		checks: []check{
			cellState(celltwin.CellRunning),
			partStatus("X", celltwin.StatusSortedOK),
			processed(1),
			rejected(0),
			inSystem(0),
			errorFlag(false),
		},
	},
	{
		name:      "accepted-lifecycle-nok",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			process("X", celltwin.OutcomeNOK),
		},
		checks: []check{
			partStatus("X", celltwin.StatusSortedNOK),
			processed(1),
			rejected(1),
		},
	},
	{
		name:      "kpi-over-mixed-outcomes",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			process("A", celltwin.OutcomeOK),
			process("B", celltwin.OutcomeOK),
			process("C", celltwin.OutcomeNOK),
			process("D", celltwin.OutcomeOK),
			advance(8 * time.Second),
			// An in-flight part pins the last-event time, and with it the
			// observation window.
			arrive("E"),
		},
		checks: []check{
			processed(4),
			rejected(1),
			inSystem(1),
			rejectRate(0.25),
			observationWindow(8 * time.Second),
			throughput(0.5),
			partOrder("A", "B", "C", "D", "E"),
		},
	},
	{
		name:      "sort-unknown-part-is-an-anomaly",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			sorted("ghost", celltwin.OutcomeOK),
		},
		checks: []check{
			processed(0),
			errorFlag(true),
			cellState(celltwin.CellError),
			inSystem(0),
		},
	},
	{
		name:      "duplicate-arrival-rejected",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			arrive("X"),
			sense("X", celltwin.OutcomeOK),
			arrive("X"),
		},
		checks: []check{
			// The first part's progress is unaffected by the duplicate.
			partStatus("X", celltwin.StatusAtSensor),
			errorFlag(true),
			cellState(celltwin.CellError),
		},
	},
	{
		name:      "skipped-stage-rejected",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			arrive("X"),
			// Actuator fires without a sensor reading in between.
			actuate("X", celltwin.BinOK),
		},
		checks: []check{
			partStatus("X", celltwin.StatusOnConveyor),
			errorFlag(true),
			cellState(celltwin.CellError),
		},
	},
	{
		name:      "stall-detected-after-threshold",
		location:  locateSource(),
		threshold: 5 * time.Second,
		script: []step{
			arrive("X"),
			advance(5*time.Second + time.Millisecond),
			checkStall(),
		},
		checks: []check{
			cellState(celltwin.CellBlocked),
			errorFlag(false),
		},
	},
	{
		name:      "no-stall-within-threshold",
		location:  locateSource(),
		threshold: 5 * time.Second,
		script: []step{
			arrive("X"),
			advance(5 * time.Second),
			checkStall(),
		},
		checks: []check{
			cellState(celltwin.CellRunning),
		},
	},
	{
		name:      "idle-cell-never-stalls",
		location:  locateSource(),
		threshold: 5 * time.Second,
		script: []step{
			advance(time.Hour),
			checkStall(),
		},
		checks: []check{
			cellState(celltwin.CellIdle),
		},
	},
	{
		name:      "accepted-event-clears-stall",
		location:  locateSource(),
		threshold: 5 * time.Second,
		script: []step{
			arrive("X"),
			advance(6 * time.Second),
			checkStall(),
			sense("X", celltwin.OutcomeOK),
		},
		checks: []check{
			cellState(celltwin.CellRunning),
			partStatus("X", celltwin.StatusAtSensor),
		},
	},
	{
		name:      "error-is-sticky",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			process("A", celltwin.OutcomeOK),
			sorted("ghost", celltwin.OutcomeOK),
			// Valid traffic keeps counting, but never clears the error.
			process("B", celltwin.OutcomeNOK),
		},
		checks: []check{
			cellState(celltwin.CellError),
			errorFlag(true),
			processed(2),
			rejected(1),
		},
	},
	{
		name:      "stall-check-leaves-error-alone",
		location:  locateSource(),
		threshold: 5 * time.Second,
		script: []step{
			arrive("X"),
			arrive("X"),
			advance(time.Minute),
			checkStall(),
		},
		checks: []check{
			cellState(celltwin.CellError),
		},
	},
	{
		name:      "terminal-replay-not-double-counted",
		location:  locateSource(),
		threshold: threshold,
		script: []step{
			process("X", celltwin.OutcomeOK),
			sorted("X", celltwin.OutcomeOK),
		},
		checks: []check{
			processed(1),
			rejected(0),
			partStatus("X", celltwin.StatusSortedOK),
			errorFlag(true),
			cellState(celltwin.CellError),
		},
	},
	{
		name:      "rejections-do-not-mask-a-stall",
		location:  locateSource(),
		threshold: 5 * time.Second,
		script: []step{
			advance(2 * time.Second),
			process("A", celltwin.OutcomeOK),
			advance(6 * time.Second),
			// A burst of invalid events must not advance the last-event time.
			sorted("ghost", celltwin.OutcomeOK),
			sorted("ghost", celltwin.OutcomeOK),
		},
		checks: []check{
			cellState(celltwin.CellError),
			observationWindow(2 * time.Second),
		},
	},
}
