package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// TypeVersionCreated is the event type emitted after a version commits.
const TypeVersionCreated = "evaluation.created"

// #region event
// VersionCreated announces a committed evaluation version. It carries the
// summary only; consumers fetch the snapshot through the read API.
type VersionCreated struct {
	Type          string    `json:"type"`
	OutputID      string    `json:"outputId"`
	ProjectID     string    `json:"projectId"`
	ZoneID        string    `json:"zoneId"`
	StandardID    string    `json:"standardId"`
	VersionNumber int       `json:"versionNumber"`
	Total         int       `json:"total"`
	Class         string    `json:"class"`
	Stress        string    `json:"stress"`
	Digest        string    `json:"digest"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}
// #endregion event

// #region publisher
// Publisher delivers domain events. Publishing happens after the version is
// durable, so a failed publish never rolls anything back.
type Publisher interface {
	PublishVersionCreated(ctx context.Context, ev VersionCreated) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishVersionCreated(context.Context, VersionCreated) error { return nil }
func (Noop) Close() error                                             { return nil }
// #endregion publisher

// #region kafka
// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic, keyed by output id
// so every version of one output lands on the same partition in order.
type KafkaPublisher struct {
	w     messageWriter
	topic string
	log   *slog.Logger
}

// NewKafkaPublisher builds a synchronous publisher for brokers/topic.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 2 * time.Second,
		MaxAttempts:  3,
	}
	return newKafkaPublisher(w, topic, log)
}

func newKafkaPublisher(w messageWriter, topic string, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{w: w, topic: topic, log: log.With(slog.String("component", "events"))}
}

func (p *KafkaPublisher) PublishVersionCreated(ctx context.Context, ev VersionCreated) error {
	if ev.Type == "" {
		ev.Type = TypeVersionCreated
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{Key: []byte(ev.OutputID), Value: b, Time: time.Now()}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.Type, p.topic, err)
	}
	p.log.Debug("event published",
		slog.String("topic", p.topic),
		slog.String("output", ev.OutputID),
		slog.Int("version", ev.VersionNumber))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
// #endregion kafka
