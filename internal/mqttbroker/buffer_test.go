package mqttbroker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishBufferFIFO(t *testing.T) {
	b, err := openPublishBuffer(t.TempDir())
	require.NoError(t, err)
	defer b.close()

	require.NoError(t, b.enqueue("acme/abc123/client_request/tagdata", []byte(`{"id":1}`)))
	require.NoError(t, b.enqueue("acme/abc123/client_request/heartbeat", []byte(`{}`)))

	topic, payload, ok := b.dequeue()
	require.True(t, ok)
	assert.Equal(t, "acme/abc123/client_request/tagdata", topic)
	assert.Equal(t, []byte(`{"id":1}`), payload)

	topic, _, ok = b.dequeue()
	require.True(t, ok)
	assert.Equal(t, "acme/abc123/client_request/heartbeat", topic)

	_, _, ok = b.dequeue()
	assert.False(t, ok)
}

func TestPublishBufferSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	b, err := openPublishBuffer(dir)
	require.NoError(t, err)
	require.NoError(t, b.enqueue("acme/abc123/client_request/tagdata", []byte(`{"id":7}`)))
	require.NoError(t, b.close())

	b, err = openPublishBuffer(dir)
	require.NoError(t, err)
	defer b.close()

	topic, payload, ok := b.dequeue()
	require.True(t, ok)
	assert.Equal(t, "acme/abc123/client_request/tagdata", topic)
	assert.Equal(t, []byte(`{"id":7}`), payload)
}
