// Package device holds the in-memory state shared between the monitor tick,
// the inbound reconciliation handlers and the outbound sync pass. The three
// run on independent schedules; every read-modify-write sequence across this
// state and the local store must hold the lock for its full duration.
package device

import "sync"

type State struct {
	sync.Mutex

	// Operator selections, persisted through config on change.
	SelectedProductID  int64
	SelectedOperatorID int64

	// GoalCPH is the displayed goal rate. Zero means "derive from the
	// selected product's ideal count-per-hour".
	GoalCPH float64

	// PendingEventID is the stop event currently awaiting a downtime reason,
	// 0 when the reason-collection flow is not active.
	PendingEventID int64
}

// NewState seeds the shared state from the persisted selections.
func NewState(selectedProductID, selectedOperatorID int64, goalCPH float64) *State {
	return &State{
		SelectedProductID:  selectedProductID,
		SelectedOperatorID: selectedOperatorID,
		GoalCPH:            goalCPH,
	}
}
