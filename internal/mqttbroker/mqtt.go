// Package mqttbroker owns the broker session: connect, subscribe, publish,
// and a disk-backed buffer that holds outbound messages while the broker is
// unreachable.
package mqttbroker

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Prometheus metrics
var (
	messagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polarisedge_mqtt_received_total",
			Help: "The total number of incoming MQTT messages",
		},
	)
	messagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polarisedge_mqtt_published_total",
			Help: "The total number of outgoing MQTT messages",
		},
	)
	brokerConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polarisedge_mqtt_up",
			Help: "Connection with MQTT broker",
		},
	)
)

// Handler is called for every message received on a subscribed topic.
type Handler func(topic string, payload []byte)

type Options struct {
	BrokerURL string
	ClientID  string
	// CertDir holds ca.crt, tls.crt and tls.key. Empty disables TLS.
	CertDir string
	// SubscribeTopics are (re-)subscribed on every successful connect.
	SubscribeTopics []string
	// QueuePath is the directory of the disk-backed outbound buffer.
	QueuePath string
}

type Session struct {
	client MQTT.Client
	buffer *publishBuffer
	opts   Options
}

// newTLSConfig builds the client TLS config from the certificate directory.
func newTLSConfig(certDir string) (*tls.Config, error) {
	certpool := x509.NewCertPool()
	pemCerts, err := os.ReadFile(certDir + "/ca.crt")
	if err == nil {
		certpool.AppendCertsFromPEM(pemCerts)
	}

	cert, err := tls.LoadX509KeyPair(certDir+"/tls.crt", certDir+"/tls.key")
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	/* #nosec G402 -- Remote verification is not yet implemented */
	return &tls.Config{
		RootCAs:            certpool,
		InsecureSkipVerify: true,
		Certificates:       []tls.Certificate{cert},
	}, nil
}

// Connect establishes the broker session. Subscriptions are installed from
// the OnConnect handler so they survive reconnects, and the outbound buffer
// is drained on every connect.
func Connect(opts Options, handler Handler) (*Session, error) {
	buffer, err := openPublishBuffer(opts.QueuePath)
	if err != nil {
		return nil, err
	}
	s := &Session{buffer: buffer, opts: opts}

	clientOpts := MQTT.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	if opts.CertDir != "" {
		tlsConfig, err := newTLSConfig(opts.CertDir)
		if err != nil {
			return nil, err
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(c MQTT.Client) {
		optionsReader := c.OptionsReader()
		zap.S().Infof("Connected to MQTT broker as %s", optionsReader.ClientID())
		brokerConnected.Set(1)
		s.subscribe(c, handler)
		s.drainBuffer()
	})
	clientOpts.SetConnectionLostHandler(func(c MQTT.Client, err error) {
		zap.S().Warnf("Connection to MQTT broker lost: %s", err)
		brokerConnected.Set(0)
	})

	s.client = MQTT.NewClient(clientOpts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		// The device must keep working offline; paho keeps retrying in the
		// background while publishes land in the buffer.
		zap.S().Warnf("Initial broker connection failed, continuing offline: %s", token.Error())
	}
	return s, nil
}

func (s *Session) subscribe(c MQTT.Client, handler Handler) {
	for _, topic := range s.opts.SubscribeTopics {
		token := c.Subscribe(topic, 1, func(_ MQTT.Client, message MQTT.Message) {
			messagesReceived.Inc()
			handler(message.Topic(), message.Payload())
		})
		if token.Wait() && token.Error() != nil {
			zap.S().Errorf("Subscribing to %s failed: %s", topic, token.Error())
			continue
		}
		zap.S().Infof("MQTT subscribed to %s", topic)
	}
}

// Publish sends one message, QOS 1. While disconnected the message goes to
// the disk buffer instead and is replayed on the next connect.
func (s *Session) Publish(topic string, payload []byte) error {
	if !s.client.IsConnected() {
		return s.buffer.enqueue(topic, payload)
	}
	token := s.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", topic, token.Error())
	}
	messagesPublished.Inc()
	return nil
}

func (s *Session) drainBuffer() {
	n := 0
	for {
		topic, payload, ok := s.buffer.dequeue()
		if !ok {
			break
		}
		token := s.client.Publish(topic, 1, false, payload)
		if token.Wait() && token.Error() != nil {
			// Put it back and stop; the next connect retries.
			_ = s.buffer.enqueue(topic, payload)
			zap.S().Warnf("Replaying buffered message failed: %s", token.Error())
			return
		}
		messagesPublished.Inc()
		n++
	}
	if n > 0 {
		zap.S().Infof("Replayed %d buffered messages", n)
	}
}

// IsConnected reports the broker session state, used as a readiness check.
func (s *Session) IsConnected() bool {
	return s.client.IsConnected()
}

// Disconnect flushes and closes the session and the buffer.
func (s *Session) Disconnect() {
	s.client.Disconnect(1000)
	if err := s.buffer.close(); err != nil {
		zap.S().Errorf("Error closing publish buffer: %s", err)
	}
}
