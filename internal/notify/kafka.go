package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	logpkg "github.com/rzbill/scribe/pkg/log"
)

// KafkaPublisher forwards events to a Kafka topic, keyed by stream so one
// stream's commands land on one partition. Publishing is fire-and-forget:
// produce errors are logged, never returned.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger logpkg.Logger
}

// NewKafkaPublisher builds a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger logpkg.Logger) *KafkaPublisher {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("notify.kafka"))
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		logger: logger,
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal event", logpkg.Err(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.StreamID), Value: b}); err != nil {
			p.logger.Warn("publish event",
				logpkg.F("kind", string(ev.Kind)), logpkg.F("stream", ev.StreamID), logpkg.Err(err))
		}
	}()
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }
