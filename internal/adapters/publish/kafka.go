package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// MessageWriter is the subset of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer that hashes on the message key, so the
// changes of one competition stay ordered within a partition.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher publishes one message per change, keyed by competition.
type KafkaPublisher struct {
	writer MessageWriter
	logger logger.Logger
}

// NewKafkaPublisher creates a publisher over w.
func NewKafkaPublisher(w MessageWriter, opts ...Option) *KafkaPublisher {
	o := newOptions("kafka-publisher", opts)
	return &KafkaPublisher{writer: w, logger: o.logger}
}

// Name implements notify.Named.
func (*KafkaPublisher) Name() string { return SinkKafka }

// OnUpdate implements notify.Listener. Updates without changes publish
// nothing.
func (p *KafkaPublisher) OnUpdate(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error {
	if len(changes) == 0 {
		return nil
	}
	msgs, err := Messages(competitionID, snap.FetchedAt, changes)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.RecordPublishError(SinkKafka)
		return fmt.Errorf("%w: kafka write: %w", ErrPublish, err)
	}
	p.logger.Debug(ctx, "changes published",
		logger.String("competition", competitionID),
		logger.Int("messages", len(msgs)),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Messages encodes changes as Kafka messages keyed by competition id.
func Messages(competitionID string, fetchedAt time.Time, changes []model.Change) ([]kafka.Message, error) {
	events := Events(competitionID, fetchedAt, changes)
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal change: %w", ErrPublish, err)
		}
		msgs[i] = kafka.Message{
			Key:   []byte(competitionID),
			Value: data,
			Time:  fetchedAt,
		}
	}
	return msgs, nil
}
