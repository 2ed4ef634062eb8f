package main

import (
	"errors"
	"sync"

	"github.com/perceptive-automation/polaris-edge/internal/mqttbroker"
)

var errNotConnected = errors.New("not connected")

// publisherHolder breaks the construction cycle between the broker session
// and the message handlers that publish through it. Publishes before the
// session exists fail fast; the senders all retry on their own cadence.
type publisherHolder struct {
	mu      sync.RWMutex
	session *mqttbroker.Session
}

func (p *publisherHolder) set(s *mqttbroker.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s
}

func (p *publisherHolder) Publish(topic string, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.session == nil {
		return errNotConnected
	}
	return p.session.Publish(topic, payload)
}
