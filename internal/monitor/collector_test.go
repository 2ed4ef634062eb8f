package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

type reasonFixture struct {
	store     *store.Store
	state     *device.State
	notifier  *fakeNotifier
	collector *Collector
	stopID    int64
	breakdown int64
	conveyor  int64
	setup     int64
}

func newReasonFixture(t *testing.T) *reasonFixture {
	t.Helper()
	s := newTestStore(t)
	tagID := newRunningTag(t, s)

	breakdown, err := s.InsertDowntimeReason(models.DowntimeReason{Name: "Breakdown", SyncID: "D1"})
	require.NoError(t, err)
	conveyor, err := s.InsertDowntimeReason(models.DowntimeReason{Name: "Conveyor Failure", IsSecondaryFor: &breakdown, SyncID: "D2"})
	require.NoError(t, err)
	setup, err := s.InsertDowntimeReason(models.DowntimeReason{Name: "Setup", SyncID: "D3"})
	require.NoError(t, err)

	stopID, err := s.InsertIntEvent(tagID, 0, int64(models.StateStopped))
	require.NoError(t, err)

	state := device.NewState(0, 0, 0)
	state.PendingEventID = stopID
	n := &fakeNotifier{}
	return &reasonFixture{
		store:     s,
		state:     state,
		notifier:  n,
		collector: NewCollector(s, state, n),
		stopID:    stopID,
		breakdown: breakdown,
		conveyor:  conveyor,
		setup:     setup,
	}
}

func TestSelectReasonWithoutPendingEvent(t *testing.T) {
	f := newReasonFixture(t)
	f.state.PendingEventID = 0

	_, err := f.collector.SelectReason(f.setup)
	assert.ErrorIs(t, err, ErrNoPendingEvent)
}

func TestSelectReasonUnknownID(t *testing.T) {
	f := newReasonFixture(t)

	_, err := f.collector.SelectReason(999)
	assert.Error(t, err)
}

func TestSelectPrimaryWithoutChildrenResolves(t *testing.T) {
	f := newReasonFixture(t)

	secondaries, err := f.collector.SelectReason(f.setup)
	require.NoError(t, err)
	assert.Empty(t, secondaries)

	ev, err := f.store.EventByID(f.stopID)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NotNil(t, ev.DowntimeReasonID)
	assert.Equal(t, f.setup, *ev.DowntimeReasonID)
	assert.True(t, ev.NeedsResync)

	assert.Equal(t, 1, f.notifier.waitResumes)
	require.NotEmpty(t, f.notifier.downtimeReason)
	assert.Equal(t, "Setup", f.notifier.downtimeReason[0])
}

func TestSelectPrimaryWithChildrenDescends(t *testing.T) {
	f := newReasonFixture(t)

	secondaries, err := f.collector.SelectReason(f.breakdown)
	require.NoError(t, err)
	require.Len(t, secondaries, 1)
	assert.Equal(t, "Conveyor Failure", secondaries[0].Name)

	// The event is still unresolved until a leaf is chosen.
	ev, err := f.store.EventByID(f.stopID)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Nil(t, ev.DowntimeReasonID)
	assert.Zero(t, f.notifier.waitResumes)

	// Choosing the secondary attaches it and renders it with its primary.
	secondaries, err = f.collector.SelectReason(f.conveyor)
	require.NoError(t, err)
	assert.Empty(t, secondaries)

	ev, err = f.store.EventByID(f.stopID)
	require.NoError(t, err)
	require.NotNil(t, ev.DowntimeReasonID)
	assert.Equal(t, f.conveyor, *ev.DowntimeReasonID)
	require.NotEmpty(t, f.notifier.downtimeReason)
	assert.Equal(t, "Breakdown, Conveyor Failure", f.notifier.downtimeReason[len(f.notifier.downtimeReason)-1])
}

func TestSelectReasonOverwrites(t *testing.T) {
	f := newReasonFixture(t)

	_, err := f.collector.SelectReason(f.setup)
	require.NoError(t, err)
	_, err = f.collector.SelectReason(f.conveyor)
	require.NoError(t, err)

	ev, err := f.store.EventByID(f.stopID)
	require.NoError(t, err)
	require.NotNil(t, ev.DowntimeReasonID)
	assert.Equal(t, f.conveyor, *ev.DowntimeReasonID, "last selection wins")
}

func TestPrimaryReasons(t *testing.T) {
	f := newReasonFixture(t)

	primaries, err := f.collector.PrimaryReasons()
	require.NoError(t, err)
	require.Len(t, primaries, 2)
	assert.Equal(t, "Breakdown", primaries[0].Name)
	assert.Equal(t, "Setup", primaries[1].Name)
}
