// Package reconcile merges inbound server pushes for reference entities into
// the local store. Every application is idempotent under retransmission: the
// lookup is keyed by the server-assigned sync id and a replayed message ends
// in the same state and the same acknowledgment, never a duplicate row.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/perceptive-automation/polaris-edge/internal/config"
	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/display"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

// Prometheus metrics
var (
	reconcileApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polarisedge_reconcile_applied_total",
			Help: "The total number of inbound entity payloads merged into the local store",
		},
	)
	reconcileDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polarisedge_reconcile_deferred_total",
			Help: "The total number of payloads deferred because a referenced parent is not known yet",
		},
	)
	reconcileMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polarisedge_reconcile_malformed_total",
			Help: "The total number of inbound payloads dropped as malformed",
		},
	)
)

// errDeferred marks an operation whose foreign reference cannot be resolved
// yet. The payload is dropped without acknowledgment; the server retries via
// a later push or resync.
var errDeferred = errors.New("deferred until the referenced entity arrives")

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Engine struct {
	store     *store.Store
	state     *device.State
	notifier  display.Notifier
	settings  *config.Settings
	publisher Publisher
}

func NewEngine(st *store.Store, ds *device.State, n display.Notifier, cfg *config.Settings, pub Publisher) *Engine {
	return &Engine{store: st, state: ds, notifier: n, settings: cfg, publisher: pub}
}

func (e *Engine) responseTopic(entity string) string {
	return models.Topic{
		TeamID:    e.settings.Device.TeamID,
		Serial:    e.settings.Device.SerialNumber,
		Direction: models.DirClientResponse,
		Entity:    entity,
	}.String()
}

func decode[P any](raw []byte, p *P) error {
	return json.Unmarshal(raw, p)
}

// entityOps is the per-entity capability set the generic routine is
// parameterized over.
type entityOps[P any] struct {
	syncID func(P) string
	exists func(e *Engine, syncID string) (bool, error)
	insert func(e *Engine, p P) error
	update func(e *Engine, p P) error
}

// apply is the one reconciliation routine shared by all entity types:
// decode, look up by sync id, merge-update or insert, acknowledge. The
// acknowledgment echoes the received payload bytes verbatim.
func apply[P any](e *Engine, entity string, raw []byte, ops entityOps[P]) error {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		reconcileMalformed.Inc()
		return fmt.Errorf("decode %s payload: %w", entity, err)
	}
	syncID := ops.syncID(p)
	if syncID == "" {
		reconcileMalformed.Inc()
		return fmt.Errorf("%s payload carries no sync id", entity)
	}

	found, err := ops.exists(e, syncID)
	if err != nil {
		return err
	}
	if found {
		err = ops.update(e, p)
	} else {
		err = ops.insert(e, p)
	}
	if errors.Is(err, errDeferred) {
		reconcileDeferred.Inc()
		zap.S().Debugf("Deferred %s %s: %s", entity, syncID, err)
		return nil
	}
	if err != nil {
		return err
	}
	reconcileApplied.Inc()

	return e.publisher.Publish(e.responseTopic(entity), raw)
}
