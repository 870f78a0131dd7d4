// Package events publishes assistant telemetry to NATS JetStream.
// Publishing is fire-and-forget; it never fails a request.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/jsonx"
)

// DetectionEvent records one index-type detection outcome.
type DetectionEvent struct {
	ID           string    `json:"id"`
	Index        string    `json:"index"`
	DataSourceID string    `json:"dataSourceId"`
	IsRelated    bool      `json:"isRelated"`
	Timestamp    time.Time `json:"timestamp"`
}

// QueryEvent records one routed assistant query.
type QueryEvent struct {
	ID        string    `json:"id"`
	Intent    string    `json:"intent"`
	Cached    bool      `json:"cached"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits events to JetStream. A nil Publisher is a no-op, so
// callers never need to branch on whether NATS is configured.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
}

// Connect dials NATS and returns a publisher, or nil when url is empty.
func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	logger.Info("Telemetry publisher connected", zap.String("url", url))
	return &Publisher{
		conn:   conn,
		js:     js,
		logger: logger.Named("events"),
	}, nil
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}

// PublishDetection emits a detection event on assistant.detection.{index}.
func (p *Publisher) PublishDetection(index, dataSourceID string, isRelated bool) {
	if p == nil {
		return
	}
	event := DetectionEvent{
		ID:           uuid.New().String(),
		Index:        index,
		DataSourceID: dataSourceID,
		IsRelated:    isRelated,
		Timestamp:    time.Now().UTC(),
	}
	p.publish(fmt.Sprintf("assistant.detection.%s", index), event)
}

// PublishQuery emits a query event on assistant.query.{intent}.
func (p *Publisher) PublishQuery(intent string, cached bool) {
	if p == nil {
		return
	}
	event := QueryEvent{
		ID:        uuid.New().String(),
		Intent:    intent,
		Cached:    cached,
		Timestamp: time.Now().UTC(),
	}
	p.publish(fmt.Sprintf("assistant.query.%s", intent), event)
}

func (p *Publisher) publish(subject string, event interface{}) {
	data, err := jsonx.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to marshal event", zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("subject", subject),
			zap.Error(err))
	}
}
