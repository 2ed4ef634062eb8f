package monitor

import (
	"errors"
	"fmt"

	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/display"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

// ErrNoPendingEvent is returned when a reason is selected while no stop
// event is awaiting one, e.g. after the machine resumed mid-selection.
var ErrNoPendingEvent = errors.New("no stop event is awaiting a downtime reason")

// Collector drives the downtime-reason selection workflow for the stop
// event the monitor preselected.
type Collector struct {
	store    *store.Store
	state    *device.State
	notifier display.Notifier
}

func NewCollector(st *store.Store, ds *device.State, n display.Notifier) *Collector {
	return &Collector{store: st, state: ds, notifier: n}
}

// PrimaryReasons lists the top-level causes offered to the operator.
func (c *Collector) PrimaryReasons() ([]models.DowntimeReason, error) {
	return c.store.PrimaryDowntimeReasons()
}

// SelectReason records the operator's choice. Selecting a primary reason
// with secondary children returns those children and leaves the event
// unresolved; any other selection attaches the reason to the pending event,
// flags it for re-push and parks the UI until the machine resumes.
// Re-selection simply overwrites the previous reason.
func (c *Collector) SelectReason(reasonID int64) ([]models.DowntimeReason, error) {
	c.state.Lock()
	defer c.state.Unlock()

	if c.state.PendingEventID == 0 {
		return nil, ErrNoPendingEvent
	}

	reason, err := c.store.DowntimeReasonByID(reasonID)
	if err != nil {
		return nil, err
	}
	if reason == nil {
		return nil, fmt.Errorf("unknown downtime reason %d", reasonID)
	}

	if reason.IsPrimary() {
		secondaries, err := c.store.SecondaryDowntimeReasons(reason.ID)
		if err != nil {
			return nil, err
		}
		if len(secondaries) > 0 {
			return secondaries, nil
		}
	}

	if err := c.store.AttachDowntimeReason(c.state.PendingEventID, reason.ID); err != nil {
		return nil, err
	}

	// Re-read the joined "primary, secondary" text so the display matches
	// what the store now holds.
	if ev, err := c.store.EventByID(c.state.PendingEventID); err == nil && ev != nil {
		if text, err := c.store.LatestDowntimeReasonText(ev.TagID); err == nil && text != "" {
			c.notifier.SetDowntimeReason(text)
		}
	}
	c.notifier.WaitForResume()
	return nil, nil
}
