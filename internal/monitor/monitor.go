// Package monitor turns the raw running-signal value stream into operator
// workflow transitions and keeps the duration and production displays fresh.
package monitor

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/display"
	"github.com/perceptive-automation/polaris-edge/internal/models"
)

const reasonPlaceholder = "<DOWNTIME REASON>"

// Store is the slice of the local store the monitor reads.
type Store interface {
	RunningSignalTag() (*models.Tag, error)
	TagByName(name string) (*models.Tag, error)
	LatestEventForTag(tagID int64) (*models.TagDataEvent, error)
	UnresolvedStops(tagID int64) ([]models.TagDataEvent, error)
	LatestDowntimeReasonText(tagID int64) (string, error)
	EventHourCount(tagID int64) (int, error)
	AddLogEntry(typ models.LogType, message string) error
}

type Monitor struct {
	store    Store
	state    *device.State
	notifier display.Notifier

	// Lazily resolved tag ids. The running tag is found by flag, the
	// counters by name.
	runningTagID int64
	goodTagID    int64
	rejectTagID  int64

	// elapsed advances every tick regardless of state and is never reset.
	// It feeds both the uptime and the downtime display; only the
	// formatting branch differs. Callers must not assume it resets on a
	// state transition.
	elapsed time.Duration

	previous models.RunningState

	goodCount   int
	rejectCount int
}

func New(st Store, ds *device.State, n display.Notifier) *Monitor {
	return &Monitor{
		store:    st,
		state:    ds,
		notifier: n,
		previous: models.StateUnknown,
	}
}

// Tick runs one monitor cycle: advance the elapsed counter, read the latest
// running-signal value, refresh the displays and detect state transitions.
// Store failures abandon the cycle; the next tick retries.
func (m *Monitor) Tick(dt time.Duration) {
	m.state.Lock()
	defer m.state.Unlock()

	m.elapsed += dt

	if m.runningTagID == 0 {
		tag, err := m.store.RunningSignalTag()
		if err != nil {
			m.logError("looking up running-signal tag", err)
			return
		}
		if tag == nil {
			// Not reconciled yet. The running tag arrives from the server.
			return
		}
		m.runningTagID = tag.ID
	}

	current, err := m.currentState()
	if err != nil {
		m.logError("reading running state", err)
		return
	}

	if current == models.StateRunning {
		m.notifier.SetUptime(formatDuration(m.elapsed))
	} else {
		m.notifier.SetDowntime(formatDuration(m.elapsed))
		m.refreshDowntimeReason()
	}

	if current != m.previous {
		if err = m.transition(current); err != nil {
			// Leave previous as it was so the next tick sees the same
			// transition again and retries.
			m.logError("handling state transition", err)
			return
		}
	}
	m.previous = current

	m.refreshCounters()
}

// currentState maps the latest event value for the running tag to a state.
// No recorded event yet means stopped.
func (m *Monitor) currentState() (models.RunningState, error) {
	latest, err := m.store.LatestEventForTag(m.runningTagID)
	if err != nil {
		return models.StateUnknown, err
	}
	if latest == nil {
		return models.StateStopped, nil
	}
	return models.RunningState(latest.IntValue), nil
}

// transition handles a state change observed between two ticks.
func (m *Monitor) transition(current models.RunningState) error {
	if current == models.StateStopped {
		stops, err := m.store.UnresolvedStops(m.runningTagID)
		if err != nil {
			return err
		}
		if len(stops) > 0 {
			// Most recent stop first; that one gets the operator's reason.
			m.state.PendingEventID = stops[0].ID
			m.notifier.EnterReasonFlow()
		} else {
			m.notifier.ReturnToIdle()
		}
		return nil
	}

	// Machine is running again (minor stops count as running here).
	// Abandon any reason selection in progress; the event stays resolvable
	// later through the server.
	m.state.PendingEventID = 0
	m.notifier.ReturnToIdle()
	return nil
}

func (m *Monitor) refreshDowntimeReason() {
	text, err := m.store.LatestDowntimeReasonText(m.runningTagID)
	if err != nil {
		m.logError("reading downtime reason", err)
		return
	}
	if text == "" {
		text = reasonPlaceholder
	}
	m.notifier.SetDowntimeReason(text)
}

func (m *Monitor) logError(action string, err error) {
	zap.S().Errorf("Monitor tick failed while %s: %s", action, err)
	if logErr := m.store.AddLogEntry(models.LogError, action+": "+err.Error()); logErr != nil {
		zap.S().Errorf("Status log unavailable: %s", logErr)
	}
}

// formatDuration renders an elapsed duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	min := d / time.Minute
	d -= min * time.Minute
	return fmt.Sprintf("%d:%02d:%02d", h, min, d/time.Second)
}
