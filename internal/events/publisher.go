package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/comment-moderation-api/internal/config"
	"github.com/comment-moderation-api/internal/models"
	"github.com/rs/zerolog"
	kgo "github.com/segmentio/kafka-go"
)

// Publisher delivers committed moderation changes to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event models.ModerationEvent) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaPublisher writes moderation events as JSON, keyed by article id so
// that all changes to one article's counter land on the same partition.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	log    zerolog.Logger
}

// New returns a Kafka publisher when brokers are configured, otherwise a
// publisher that drops events.
func New(cfg config.KafkaConfig, log zerolog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka brokers not configured, moderation events disabled")
		return NopPublisher{}
	}

	w := &kgo.Writer{
		Addr:         kgo.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewKafkaPublisher(w, cfg.Topic, log)
}

// NewKafkaPublisher wraps an existing writer
func NewKafkaPublisher(w MessageWriter, topic string, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		log:    log.With().Str("component", "events").Str("topic", topic).Logger(),
	}
}

// Publish encodes and writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, event models.ModerationEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode moderation event: %w", err)
	}

	msg := kgo.Message{
		Key:   []byte(event.ArticleID),
		Value: value,
		Time:  event.At,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish moderation event: %w", err)
	}

	p.log.Debug().
		Str("comment_id", event.CommentID).
		Str("action", string(event.Action)).
		Msg("Published moderation event")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event models.ModerationEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
