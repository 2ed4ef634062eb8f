// Package syncer pushes locally recorded tag-data events to the server and
// adopts the sync ids the server assigns. Delivery is at-least-once: nothing
// is marked sent at publish time, only an acknowledgment clears an event
// from the selection, and the server tolerates duplicates.
package syncer

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/perceptive-automation/polaris-edge/internal/config"
	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

const DefaultBatchSize = 25

// Prometheus metrics
var (
	tagDataPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polarisedge_tagdata_published_total",
			Help: "The total number of tag-data events published to the server",
		},
	)
	tagDataAcked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polarisedge_tagdata_acked_total",
			Help: "The total number of tag-data acknowledgments received from the server",
		},
	)
)

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Batcher struct {
	store     *store.Store
	state     *device.State
	settings  *config.Settings
	publisher Publisher
	batchSize int

	// syncIDs memoizes local-id to sync-id translations. Reference data
	// changes rarely; a short TTL keeps renamed sync ids from sticking.
	syncIDs *cache.Cache
}

func NewBatcher(st *store.Store, ds *device.State, cfg *config.Settings, pub Publisher) *Batcher {
	return &Batcher{
		store:     st,
		state:     ds,
		settings:  cfg,
		publisher: pub,
		batchSize: DefaultBatchSize,
		syncIDs:   cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (b *Batcher) requestTopic(entity string) string {
	return models.Topic{
		TeamID:    b.settings.Device.TeamID,
		Serial:    b.settings.Device.SerialNumber,
		Direction: models.DirClientRequest,
		Entity:    entity,
	}.String()
}

// Pass publishes one batch of unacknowledged events. Events whose foreign
// references have no sync id yet are skipped and picked up again once the
// reference is acknowledged. Publish failures leave the events pending; the
// next pass retries.
func (b *Batcher) Pass() {
	b.state.Lock()
	defer b.state.Unlock()

	events, err := b.store.UnsyncedEvents(b.batchSize)
	if err != nil {
		zap.S().Errorf("Selecting unsynced events failed: %s", err)
		return
	}

	for _, ev := range events {
		payload, err := b.translate(ev)
		if err != nil {
			zap.S().Debugf("Skipping event %d this pass: %s", ev.ID, err)
			continue
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			zap.S().Errorf("Encoding event %d failed: %s", ev.ID, err)
			continue
		}
		if err = b.publisher.Publish(b.requestTopic(models.EntityTagData), raw); err != nil {
			zap.S().Warnf("Publishing event %d failed, will retry: %s", ev.ID, err)
			continue
		}
		tagDataPublished.Inc()
	}
}

// translate converts an event's local foreign keys to sync ids and its
// creation timestamp from device-local time to UTC. Local ids and local
// wall-clock values never cross the network boundary.
func (b *Batcher) translate(ev models.TagDataEvent) (models.TagDataPayload, error) {
	tagSyncID, err := b.tagSyncID(ev.TagID)
	if err != nil {
		return models.TagDataPayload{}, err
	}

	// Product id 0 means no product was selected when the event was
	// recorded; the server accepts events without a product.
	var productSyncID string
	if ev.ProductID != 0 {
		productSyncID, err = b.productSyncID(ev.ProductID)
		if err != nil {
			return models.TagDataPayload{}, err
		}
	}

	payload := models.TagDataPayload{
		ID:            ev.ID,
		TagSyncID:     tagSyncID,
		ProductSyncID: productSyncID,
		IntValue:      ev.IntValue,
		FloatValue:    ev.FloatValue,
		StringValue:   ev.StringValue,
		CreatedAt:     ev.CreatedAt.UTC().Format(time.DateTime),
	}

	if ev.DowntimeReasonID != nil {
		reasonSyncID, err := b.reasonSyncID(*ev.DowntimeReasonID)
		if err != nil {
			return models.TagDataPayload{}, err
		}
		payload.DowntimeReasonSyncID = reasonSyncID
	}
	return payload, nil
}

func (b *Batcher) tagSyncID(id int64) (string, error) {
	return b.cachedSyncID("tag", id, func() (string, error) {
		tag, err := b.store.TagByID(id)
		if err != nil || tag == nil {
			return "", fmt.Errorf("tag %d not found: %w", id, err)
		}
		return tag.SyncID, nil
	})
}

func (b *Batcher) productSyncID(id int64) (string, error) {
	return b.cachedSyncID("product", id, func() (string, error) {
		product, err := b.store.ProductByID(id)
		if err != nil || product == nil {
			return "", fmt.Errorf("product %d not found: %w", id, err)
		}
		return product.SyncID, nil
	})
}

func (b *Batcher) reasonSyncID(id int64) (string, error) {
	return b.cachedSyncID("downtimereason", id, func() (string, error) {
		reason, err := b.store.DowntimeReasonByID(id)
		if err != nil || reason == nil {
			return "", fmt.Errorf("downtime reason %d not found: %w", id, err)
		}
		return reason.SyncID, nil
	})
}

func (b *Batcher) cachedSyncID(kind string, id int64, lookup func() (string, error)) (string, error) {
	key := fmt.Sprintf("%s/%d", kind, id)
	if v, ok := b.syncIDs.Get(key); ok {
		return v.(string), nil
	}
	syncID, err := lookup()
	if err != nil {
		return "", err
	}
	if syncID == "" {
		return "", fmt.Errorf("%s %d has no sync id yet", kind, id)
	}
	b.syncIDs.Set(key, syncID, cache.DefaultExpiration)
	return syncID, nil
}

// HandleAck stores the server-assigned sync id on the acknowledged event and
// clears its needs-resync flag. This is the only path that clears the flag.
func (b *Batcher) HandleAck(payload []byte) error {
	b.state.Lock()
	defer b.state.Unlock()

	var ack models.TagDataAck
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decode tagdata acknowledgment: %w", err)
	}
	if ack.ID == 0 || ack.SyncID == "" {
		return fmt.Errorf("tagdata acknowledgment is missing id or sync id")
	}
	if err := b.store.SetEventSyncID(ack.ID, ack.SyncID); err != nil {
		return err
	}
	tagDataAcked.Inc()
	zap.S().Debugf("Event %d acknowledged with sync id %s", ack.ID, ack.SyncID)
	return nil
}

// Heartbeat announces liveness on the sync cadence.
func (b *Batcher) Heartbeat() {
	raw, err := json.Marshal(models.HeartbeatPayload{
		Datetime: time.Now().UTC().Format(time.DateTime),
	})
	if err != nil {
		zap.S().Errorf("Encoding heartbeat failed: %s", err)
		return
	}
	if err = b.publisher.Publish(b.requestTopic(models.EntityHeartbeat), raw); err != nil {
		zap.S().Warnf("Publishing heartbeat failed: %s", err)
	}
}

// AnnounceResync asks the server to push the full reference dataset, used
// once at startup.
func (b *Batcher) AnnounceResync() {
	raw, err := json.Marshal(models.ResyncPayload{
		Datetime: time.Now().UTC().Format(time.DateTime),
		Resync:   true,
	})
	if err != nil {
		zap.S().Errorf("Encoding resync request failed: %s", err)
		return
	}
	if err = b.publisher.Publish(b.requestTopic(models.EntityResync), raw); err != nil {
		zap.S().Warnf("Publishing resync request failed: %s", err)
	}
}
