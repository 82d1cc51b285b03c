package celltwin

import "time"

// PartStatus is the lifecycle position of a part inside the sorting cell. The
// normal progression is a total order:
//
//	created → on_conveyor → at_sensor → ready_to_sort → sorted_ok | sorted_nok
//
// SortedOK and SortedNOK are terminal. A status only ever advances along this
// order; the tracker rejects any event implying a skipped or backwards move.
type PartStatus string

const (
	StatusCreated     PartStatus = "created"
	StatusOnConveyor  PartStatus = "on_conveyor"
	StatusAtSensor    PartStatus = "at_sensor"
	StatusReadyToSort PartStatus = "ready_to_sort"
	StatusSortedOK    PartStatus = "sorted_ok"
	StatusSortedNOK   PartStatus = "sorted_nok"
)

// Terminal reports whether the status ends a part's lifecycle.
func (s PartStatus) Terminal() bool {
	return s == StatusSortedOK || s == StatusSortedNOK
}

// Part is the twin's view of a single physical part. It is owned exclusively
// by the [Tracker]; the snapshots handed out by Apply and Parts are copies and
// safe to retain.
type Part struct {
	ID         PartID     `json:"id"`
	Status     PartStatus `json:"status"`
	LastUpdate time.Time  `json:"last_update_time"`
}

// requiredStatus maps each progressing event kind to the only status a part
// may hold for that event to be valid. KindPartArrived is absent: it is valid
// exactly for unknown parts.
var requiredStatus = map[Kind]PartStatus{
	KindSensorRead:        StatusOnConveyor,
	KindActuatorTriggered: StatusAtSensor,
	KindPartSorted:        StatusReadyToSort,
}
