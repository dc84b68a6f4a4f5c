// Package publish holds the listeners that forward leaderboard updates to
// logs, metrics, Redis and Kafka.
package publish

import (
	"errors"
	"time"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
)

// ErrPublish is returned when a sink rejects an update.
var ErrPublish = errors.New("publish failed")

// Sink names used in logs and metrics.
const (
	SinkLog     = "log"
	SinkMetrics = "metrics"
	SinkRedis   = "redis"
	SinkKafka   = "kafka"
)

// ChangeEvent is the wire form of one change, as written to Redis and Kafka.
type ChangeEvent struct {
	Competition string    `json:"competition"`
	FetchedAt   time.Time `json:"fetched_at"`
	model.Change
}

// Events wraps changes with their competition and fetch time.
func Events(competitionID string, fetchedAt time.Time, changes []model.Change) []ChangeEvent {
	out := make([]ChangeEvent, len(changes))
	for i, c := range changes {
		out[i] = ChangeEvent{Competition: competitionID, FetchedAt: fetchedAt, Change: c}
	}
	return out
}

// Option configures a listener.
type Option func(*options)

type options struct {
	logger logger.Logger
	prefix string
	ttl    time.Duration
}

func newOptions(name string, opts []Option) options {
	o := options{logger: logger.Default().Named(name)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the listener logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeyPrefix prefixes every Redis key.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithTTL expires mirrored Redis keys. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}
