// Package signals records raw input changes as tag-data events. The actual
// hardware I/O stays behind the Sampler type so the module never touches
// pins directly.
package signals

import (
	"go.uber.org/zap"

	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

// Sampler reads the current value of one physical input.
type Sampler func() (int64, error)

// Input binds a sampler to a tag. A level input records every value change;
// an edge input records rising edges only (counter pulses). An empty TagName
// binds to whichever tag carries the running-signal flag.
type Input struct {
	TagName    string
	Sampler    Sampler
	RisingOnly bool

	tagID    int64
	previous int64
}

// Recorder polls the configured inputs on a fast cadence and persists
// changes with the currently selected product.
type Recorder struct {
	store  *store.Store
	state  *device.State
	inputs []*Input
}

func NewRecorder(st *store.Store, ds *device.State, inputs []*Input) *Recorder {
	return &Recorder{store: st, state: ds, inputs: inputs}
}

// Tick samples every input once and records the observed transitions.
func (r *Recorder) Tick() {
	r.state.Lock()
	defer r.state.Unlock()

	for _, in := range r.inputs {
		if in.tagID == 0 {
			var tag *models.Tag
			var err error
			if in.TagName == "" {
				tag, err = r.store.RunningSignalTag()
			} else {
				tag, err = r.store.TagByName(in.TagName)
			}
			if err != nil || tag == nil {
				continue
			}
			in.tagID = tag.ID
		}

		value, err := in.Sampler()
		if err != nil {
			zap.S().Warnf("Sampling %s failed: %s", in.TagName, err)
			continue
		}
		changed := value != in.previous
		record := changed
		if in.RisingOnly {
			record = changed && value != 0
		}
		if record {
			if _, err = r.store.InsertIntEvent(in.tagID, r.state.SelectedProductID, value); err != nil {
				zap.S().Errorf("Recording %s change failed: %s", in.TagName, err)
				// Keep previous unchanged so the transition is retried.
				continue
			}
		}
		in.previous = value
	}
}
