package reconcile

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/perceptive-automation/polaris-edge/internal/models"
)

// HandleDevice adopts the device name and location the server pushed,
// persists them in the settings file and confirms receipt. The device
// announcement is the one message the device answers with an id of its own.
func (e *Engine) HandleDevice(raw []byte) error {
	e.state.Lock()
	defer e.state.Unlock()

	var p models.DevicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		reconcileMalformed.Inc()
		return fmt.Errorf("decode device payload: %w", err)
	}
	if p.Name == "" && p.Location == "" {
		reconcileMalformed.Inc()
		return fmt.Errorf("device payload carries neither name nor location")
	}

	if p.Name != "" {
		e.settings.Device.Name = p.Name
	}
	if p.Location != "" {
		e.settings.Device.Location = p.Location
	}
	if err := e.settings.Save(); err != nil {
		return err
	}

	ack, err := json.Marshal(models.DeviceAck{
		SyncID:    uuid.NewString(),
		UpdatedAt: time.Now().UTC().Format(time.DateTime),
	})
	if err != nil {
		return err
	}
	reconcileApplied.Inc()
	return e.publisher.Publish(e.responseTopic(models.EntityDevice), ack)
}
