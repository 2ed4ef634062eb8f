package syncer

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perceptive-automation/polaris-edge/internal/config"
	"github.com/perceptive-automation/polaris-edge/internal/device"
	"github.com/perceptive-automation/polaris-edge/internal/models"
	"github.com/perceptive-automation/polaris-edge/internal/store"
)

type publishedMessage struct {
	Topic   string
	Payload []byte
}

type fakePublisher struct {
	messages []publishedMessage
	fail     bool
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, publishedMessage{Topic: topic, Payload: payload})
	return nil
}

type batcherFixture struct {
	store     *store.Store
	publisher *fakePublisher
	batcher   *Batcher
}

func newBatcherFixture(t *testing.T) *batcherFixture {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg, err := config.Load(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	cfg.Device.TeamID = "acme"
	cfg.Device.SerialNumber = "abc123"

	pub := &fakePublisher{}
	return &batcherFixture{
		store:     s,
		publisher: pub,
		batcher:   NewBatcher(s, device.NewState(0, 0, 0), cfg, pub),
	}
}

func (f *batcherFixture) decodeEvents(t *testing.T) []models.TagDataPayload {
	t.Helper()
	var out []models.TagDataPayload
	for _, m := range f.publisher.messages {
		if m.Topic != "acme/abc123/client_request/tagdata" {
			continue
		}
		var p models.TagDataPayload
		require.NoError(t, json.Unmarshal(m.Payload, &p))
		out = append(out, p)
	}
	return out
}

func TestPassPublishesAndAckExcludes(t *testing.T) {
	f := newBatcherFixture(t)

	tagID, err := f.store.InsertTag(models.Tag{Name: "Good Count", SyncID: "T2"})
	require.NoError(t, err)
	ev1, err := f.store.InsertIntEvent(tagID, 0, 1)
	require.NoError(t, err)
	ev2, err := f.store.InsertIntEvent(tagID, 0, 1)
	require.NoError(t, err)

	f.batcher.Pass()
	payloads := f.decodeEvents(t)
	require.Len(t, payloads, 2)
	assert.Equal(t, ev1, payloads[0].ID)
	assert.Equal(t, "T2", payloads[0].TagSyncID)
	assert.Empty(t, payloads[0].ProductSyncID, "no product selected")

	// Publishing does not mark anything sent; an unacknowledged event is
	// republished on the next pass.
	f.batcher.Pass()
	assert.Len(t, f.decodeEvents(t), 4)

	// The acknowledgment removes the event from the selection.
	require.NoError(t, f.batcher.HandleAck(mustMarshal(t, models.TagDataAck{ID: ev1, SyncID: "S1"})))
	f.publisher.messages = nil
	f.batcher.Pass()
	payloads = f.decodeEvents(t)
	require.Len(t, payloads, 1)
	assert.Equal(t, ev2, payloads[0].ID)
}

func TestPassSkipsEventsWithoutTagSyncID(t *testing.T) {
	f := newBatcherFixture(t)

	// The tag exists locally but was never acknowledged by the server.
	tagID, err := f.store.InsertTag(models.Tag{Name: "Good Count"})
	require.NoError(t, err)
	_, err = f.store.InsertIntEvent(tagID, 0, 1)
	require.NoError(t, err)

	f.batcher.Pass()
	assert.Empty(t, f.decodeEvents(t))

	// Once the tag carries a sync id the event goes out.
	_, err = f.store.DB().Exec(`UPDATE tags SET sync_id='T2' WHERE id=?`, tagID)
	require.NoError(t, err)
	f.batcher.Pass()
	assert.Len(t, f.decodeEvents(t), 1)
}

func TestTranslateForeignKeysAndUTC(t *testing.T) {
	f := newBatcherFixture(t)

	tagID, err := f.store.InsertTag(models.Tag{Name: "Running Status", IsRunningSignal: true, SyncID: "T1"})
	require.NoError(t, err)
	productID, err := f.store.InsertProduct(models.Product{Name: "Widget", SyncID: "P1"})
	require.NoError(t, err)
	reasonID, err := f.store.InsertDowntimeReason(models.DowntimeReason{Name: "Breakdown", SyncID: "D1"})
	require.NoError(t, err)

	evID, err := f.store.InsertIntEvent(tagID, productID, 0)
	require.NoError(t, err)
	require.NoError(t, f.store.AttachDowntimeReason(evID, reasonID))

	ev, err := f.store.EventByID(evID)
	require.NoError(t, err)
	require.NotNil(t, ev)

	payload, err := f.batcher.translate(*ev)
	require.NoError(t, err)
	assert.Equal(t, "T1", payload.TagSyncID)
	assert.Equal(t, "P1", payload.ProductSyncID)
	assert.Equal(t, "D1", payload.DowntimeReasonSyncID)
	assert.Equal(t, ev.CreatedAt.UTC().Format(time.DateTime), payload.CreatedAt)

	// A reason the server has not confirmed yet holds the event back.
	orphanReason, err := f.store.InsertDowntimeReason(models.DowntimeReason{Name: "Unconfirmed"})
	require.NoError(t, err)
	require.NoError(t, f.store.AttachDowntimeReason(evID, orphanReason))
	ev, err = f.store.EventByID(evID)
	require.NoError(t, err)
	_, err = f.batcher.translate(*ev)
	assert.Error(t, err)
}

func TestPassBatchLimit(t *testing.T) {
	f := newBatcherFixture(t)
	f.batcher.batchSize = 2

	tagID, err := f.store.InsertTag(models.Tag{Name: "Good Count", SyncID: "T2"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.store.InsertIntEvent(tagID, 0, 1)
		require.NoError(t, err)
	}

	f.batcher.Pass()
	assert.Len(t, f.decodeEvents(t), 2)
}

func TestPassPublishFailureRetries(t *testing.T) {
	f := newBatcherFixture(t)

	tagID, err := f.store.InsertTag(models.Tag{Name: "Good Count", SyncID: "T2"})
	require.NoError(t, err)
	_, err = f.store.InsertIntEvent(tagID, 0, 1)
	require.NoError(t, err)

	f.publisher.fail = true
	f.batcher.Pass()
	assert.Empty(t, f.publisher.messages)

	f.publisher.fail = false
	f.batcher.Pass()
	assert.Len(t, f.decodeEvents(t), 1)
}

func TestHandleAckValidation(t *testing.T) {
	f := newBatcherFixture(t)

	assert.Error(t, f.batcher.HandleAck([]byte(`{not json`)))
	assert.Error(t, f.batcher.HandleAck(mustMarshal(t, models.TagDataAck{ID: 0, SyncID: "S1"})))
	assert.Error(t, f.batcher.HandleAck(mustMarshal(t, models.TagDataAck{ID: 1})))
}

func TestHeartbeatAndResync(t *testing.T) {
	f := newBatcherFixture(t)

	f.batcher.Heartbeat()
	require.Len(t, f.publisher.messages, 1)
	assert.Equal(t, "acme/abc123/client_request/heartbeat", f.publisher.messages[0].Topic)
	var hb models.HeartbeatPayload
	require.NoError(t, json.Unmarshal(f.publisher.messages[0].Payload, &hb))
	assert.NotEmpty(t, hb.Datetime)

	f.batcher.AnnounceResync()
	require.Len(t, f.publisher.messages, 2)
	assert.Equal(t, "acme/abc123/client_request/resync", f.publisher.messages[1].Topic)
	var rs models.ResyncPayload
	require.NoError(t, json.Unmarshal(f.publisher.messages[1].Payload, &rs))
	assert.True(t, rs.Resync)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
