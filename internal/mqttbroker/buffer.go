package mqttbroker

import (
	"errors"
	"fmt"

	"github.com/beeker1121/goque"
	"github.com/goccy/go-json"
)

type bufferedMessage struct {
	Topic   string
	Payload []byte
}

// publishBuffer is a disk-backed FIFO of outbound messages that could not be
// delivered. It survives process restarts.
type publishBuffer struct {
	queue *goque.Queue
}

func openPublishBuffer(path string) (*publishBuffer, error) {
	queue, err := goque.OpenQueue(path)
	if err != nil {
		return nil, fmt.Errorf("open publish buffer: %w", err)
	}
	return &publishBuffer{queue: queue}, nil
}

func (b *publishBuffer) enqueue(topic string, payload []byte) error {
	_, err := b.queue.EnqueueObjectAsJSON(bufferedMessage{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("buffer message for %s: %w", topic, err)
	}
	return nil
}

func (b *publishBuffer) dequeue() (topic string, payload []byte, ok bool) {
	item, err := b.queue.Dequeue()
	if errors.Is(err, goque.ErrEmpty) {
		return "", nil, false
	}
	if err != nil {
		return "", nil, false
	}
	var msg bufferedMessage
	if err = json.Unmarshal(item.Value, &msg); err != nil {
		return "", nil, false
	}
	return msg.Topic, msg.Payload, true
}

func (b *publishBuffer) close() error {
	return b.queue.Close()
}
