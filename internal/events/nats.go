package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/cuemby/tca/internal/types"
)

// NATSMirrorConfig configures the best-effort NATS mirror.
type NATSMirrorConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSMirrorConfig returns sane defaults for the mirror connection.
func DefaultNATSMirrorConfig(url string) NATSMirrorConfig {
	return NATSMirrorConfig{
		URL:           url,
		Subject:       "tca.notifications",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSMirror subscribes to a Broker and republishes every notification to
// NATS as a fire-and-forget mirror. It is never the system of record: the
// Broker has already received the notification after it was durably
// written through the writer queue, so a NATS outage never blocks ingest
// or dedupe — it only means operators miss the external mirror until the
// connection recovers.
type NATSMirror struct {
	conn    *nats.Conn
	broker  *Broker
	sub     Subscriber
	subject string
	log     zerolog.Logger
	stopCh  chan struct{}
}

// NewNATSMirror connects to NATS and wires it to broker. Connection
// failures are returned so the caller can decide whether a missing NATS
// URL should be fatal (it should not be, per spec.md §6).
func NewNATSMirror(cfg NATSMirrorConfig, broker *Broker, log zerolog.Logger) (*NATSMirror, error) {
	m := &NATSMirror{
		broker:  broker,
		subject: cfg.Subject,
		log:     log,
		stopCh:  make(chan struct{}),
	}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ConnectHandler(m.connectHandler),
		nats.DisconnectErrHandler(m.disconnectHandler),
		nats.ReconnectHandler(m.reconnectHandler),
		nats.ErrorHandler(m.errorHandler),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	m.conn = conn
	return m, nil
}

// Start begins mirroring broker notifications to NATS in a background
// goroutine.
func (m *NATSMirror) Start() {
	m.sub = m.broker.Subscribe()
	go m.run()
}

// Stop unsubscribes from the broker and closes the NATS connection.
func (m *NATSMirror) Stop() {
	close(m.stopCh)
	m.broker.Unsubscribe(m.sub)
	m.conn.Close()
}

func (m *NATSMirror) run() {
	for {
		select {
		case n, ok := <-m.sub:
			if !ok {
				return
			}
			m.publish(n)
		case <-m.stopCh:
			return
		}
	}
}

func (m *NATSMirror) publish(n *types.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		m.log.Warn().Err(err).Msg("marshal notification for NATS mirror")
		return
	}
	if err := m.conn.Publish(m.subject, data); err != nil {
		m.log.Warn().Err(err).Msg("publish notification to NATS")
	}
}

func (m *NATSMirror) connectHandler(conn *nats.Conn) {
	m.log.Info().Str("url", conn.ConnectedUrl()).Msg("connected to NATS")
}

func (m *NATSMirror) disconnectHandler(_ *nats.Conn, err error) {
	if err != nil {
		m.log.Warn().Err(err).Msg("disconnected from NATS")
	}
}

func (m *NATSMirror) reconnectHandler(conn *nats.Conn) {
	m.log.Info().Str("url", conn.ConnectedUrl()).Msg("reconnected to NATS")
}

func (m *NATSMirror) errorHandler(_ *nats.Conn, _ *nats.Subscription, err error) {
	m.log.Warn().Err(err).Msg("NATS error")
}
