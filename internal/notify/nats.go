// Package notify publishes document lifecycle events to NATS so downstream
// consumers (labeling bots, dashboards) can react without polling.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event is one document lifecycle notification.
type Event struct {
	DocumentID string    `json:"document_id"`
	State      string    `json:"state"`
	Review     bool      `json:"requires_review"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Config configures the NATS publisher.
type Config struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Publisher publishes events to NATS. Connection loss is handled by the
// client's reconnect loop; publishes during an outage are buffered by the
// client up to its pending limit.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher connects to NATS and returns a Publisher.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	log := logger.With("system", "notify")

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "documents"
	}

	return &Publisher{conn: conn, prefix: prefix, logger: log}, nil
}

// Notify publishes the event on <prefix>.<state>.
func (p *Publisher) Notify(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, event.State)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug("event published", "subject", subject, "document", event.DocumentID)
	return nil
}

// Close drains the connection, flushing buffered publishes.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
