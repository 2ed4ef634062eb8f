package signals

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func staticSampler(value *int64) Sampler {
	return func() (int64, error) { return *value, nil }
}

func TestRecorderLevelInput(t *testing.T) {
	s := newTestStore(t)
	tagID, err := s.InsertTag(models.Tag{Name: "Running Status", IsRunningSignal: true})
	require.NoError(t, err)

	var value int64
	state := device.NewState(7, 0, 0)
	r := NewRecorder(s, state, []*Input{{Sampler: staticSampler(&value)}})

	// The initial zero matches the zero-valued previous; nothing records
	// until the first transition.
	r.Tick()
	events, err := s.UnsyncedEvents(25)
	require.NoError(t, err)
	assert.Empty(t, events)

	value = 1
	r.Tick()
	r.Tick() // steady level records nothing new
	value = 0
	r.Tick() // falling edge records for a level input

	events, err = s.UnsyncedEvents(25)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, tagID, events[0].TagID)
	assert.EqualValues(t, 1, events[0].IntValue)
	assert.EqualValues(t, 0, events[1].IntValue)
	assert.EqualValues(t, 7, events[0].ProductID, "events carry the selected product")
}

func TestRecorderRisingOnlyInput(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertTag(models.Tag{Name: "Good Count"})
	require.NoError(t, err)

	var value int64
	r := NewRecorder(s, device.NewState(0, 0, 0), []*Input{{
		TagName:    "Good Count",
		Sampler:    staticSampler(&value),
		RisingOnly: true,
	}})

	// Two pulses: only the rising edges record.
	for _, v := range []int64{1, 0, 1, 0} {
		value = v
		r.Tick()
	}

	events, err := s.UnsyncedEvents(25)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRecorderWaitsForTag(t *testing.T) {
	s := newTestStore(t)

	var value int64 = 1
	r := NewRecorder(s, device.NewState(0, 0, 0), []*Input{{Sampler: staticSampler(&value)}})

	// No running-signal tag reconciled yet; the input stays dormant.
	r.Tick()
	events, err := s.UnsyncedEvents(25)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = s.InsertTag(models.Tag{Name: "Running Status", IsRunningSignal: true})
	require.NoError(t, err)
	r.Tick()
	events, err = s.UnsyncedEvents(25)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFileSampler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpio17")
	sample := FileSampler(path)

	_, err := sample()
	assert.Error(t, err, "missing file")

	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))
	v, err := sample()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, err = sample()
	assert.Error(t, err)
}
