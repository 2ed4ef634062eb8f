// Package display is the boundary to the operator-facing UI. The UI owns all
// rendering; the core only pushes strings and workflow transitions.
package display

// Notifier receives display updates and workflow navigation from the core.
// Implementations must be cheap and non-blocking.
type Notifier interface {
	SetUptime(text string)
	SetDowntime(text string)
	SetDowntimeReason(text string)
	SetGoalRate(text string)
	SetGoodRate(text string)
	SetRejectRate(text string)

	// EnterReasonFlow opens the downtime-reason selection workflow for the
	// pending stop event.
	EnterReasonFlow()
	// WaitForResume parks the UI until the machine runs again. No polling
	// happens here; the next non-stopped transition navigates away.
	WaitForResume()
	// ReturnToIdle navigates back to the main operator screen, abandoning
	// any reason selection in progress.
	ReturnToIdle()
}

// Nop discards every notification. Used when the device runs headless.
type Nop struct{}

func (Nop) SetUptime(string)         {}
func (Nop) SetDowntime(string)       {}
func (Nop) SetDowntimeReason(string) {}
func (Nop) SetGoalRate(string)       {}
func (Nop) SetGoodRate(string)       {}
func (Nop) SetRejectRate(string)     {}
func (Nop) EnterReasonFlow()         {}
func (Nop) WaitForResume()           {}
func (Nop) ReturnToIdle()            {}
