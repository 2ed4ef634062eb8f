package reconcile

import (
	"go.uber.org/zap"

	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

// TagDataAcker consumes server acknowledgments for pushed tag-data events.
type TagDataAcker interface {
	HandleAck(payload []byte) error
}

// Dispatcher routes inbound broker messages to the reconciliation engine or
// the outbound batcher's acknowledgment handler. A failing message is logged
// and dropped; it never blocks or crashes the message stream.
type Dispatcher struct {
	engine *Engine
	acker  TagDataAcker
	store  *store.Store
}

func NewDispatcher(engine *Engine, acker TagDataAcker, st *store.Store) *Dispatcher {
	return &Dispatcher{engine: engine, acker: acker, store: st}
}

func (d *Dispatcher) HandleMessage(topic string, payload []byte) {
	// This runs on the broker client's read loop; a panicking handler must
	// not take the subscription down.
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorf("Recovered from panic handling message on %s: %v", topic, r)
		}
	}()

	t, err := models.ParseTopic(topic)
	if err != nil {
		zap.S().Warnf("Dropping message on unrecognized topic: %s", err)
		return
	}

	switch t.Direction {
	case models.DirServerRequest:
		err = d.handleServerRequest(t.Entity, payload)
	case models.DirServerResponse:
		err = d.handleServerResponse(t.Entity, payload)
	default:
		// Our own client_request/client_response messages echo back on
		// wildcard subscriptions of some brokers. Not ours to handle.
		return
	}

	if err != nil {
		zap.S().Errorf("Error handling %s/%s message: %s", t.Direction, t.Entity, err)
		if logErr := d.store.AddLogEntry(models.LogError, t.Entity+": "+err.Error()); logErr != nil {
			zap.S().Errorf("Status log unavailable: %s", logErr)
		}
	}
}

func (d *Dispatcher) handleServerRequest(entity string, payload []byte) error {
	switch entity {
	case models.EntityDevice:
		return d.engine.HandleDevice(payload)
	case models.EntityTag:
		return d.engine.HandleTag(payload)
	case models.EntityProduct:
		return d.engine.HandleProduct(payload)
	case models.EntityUser:
		return d.engine.HandleUser(payload)
	case models.EntityDowntimeReason:
		return d.engine.HandleDowntimeReason(payload)
	default:
		zap.S().Warnf("Unknown server_request entity: %s", entity)
		return nil
	}
}

func (d *Dispatcher) handleServerResponse(entity string, payload []byte) error {
	switch entity {
	case models.EntityTagData:
		return d.acker.HandleAck(payload)
	case models.EntityHeartbeat:
		zap.S().Debugf("Heartbeat acknowledged")
		return nil
	default:
		zap.S().Warnf("Unknown server_response entity: %s", entity)
		return nil
	}
}
