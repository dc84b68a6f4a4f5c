package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// KV is the subset of a Redis client the mirror needs.
type KV interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// NewRedisClient connects to a single Redis node.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisMirror keeps the latest snapshot and change batch of every
// competition in Redis for other processes to read.
type RedisMirror struct {
	kv     KV
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisMirror creates a mirror writing through kv.
func NewRedisMirror(kv KV, opts ...Option) *RedisMirror {
	o := newOptions("redis-mirror", opts)
	return &RedisMirror{kv: kv, prefix: o.prefix, ttl: o.ttl, logger: o.logger}
}

// Name implements notify.Named.
func (*RedisMirror) Name() string { return SinkRedis }

// SnapshotKey is the key holding the latest snapshot of a competition.
func (m *RedisMirror) SnapshotKey(competitionID string) string {
	return m.prefix + "snapshot:" + competitionID
}

// ChangesKey is the key holding the latest change batch of a competition.
func (m *RedisMirror) ChangesKey(competitionID string) string {
	return m.prefix + "changes:" + competitionID
}

// OnUpdate implements notify.Listener.
func (m *RedisMirror) OnUpdate(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error {
	data, err := json.Marshal(snapshotDoc(snap))
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %w", ErrPublish, err)
	}
	if err := m.kv.Set(ctx, m.SnapshotKey(competitionID), data, m.ttl).Err(); err != nil {
		metrics.RecordPublishError(SinkRedis)
		return fmt.Errorf("%w: redis set: %w", ErrPublish, err)
	}

	events, err := json.Marshal(Events(competitionID, snap.FetchedAt, changes))
	if err != nil {
		return fmt.Errorf("%w: marshal changes: %w", ErrPublish, err)
	}
	if err := m.kv.Set(ctx, m.ChangesKey(competitionID), events, m.ttl).Err(); err != nil {
		metrics.RecordPublishError(SinkRedis)
		return fmt.Errorf("%w: redis set: %w", ErrPublish, err)
	}

	m.logger.Debug(ctx, "snapshot mirrored",
		logger.String("competition", competitionID),
		logger.Int("rows", snap.Len()),
		logger.Int("changes", len(changes)),
	)
	return nil
}

type rowDoc struct {
	Position       int        `json:"position"`
	TeamID         string     `json:"team_id"`
	TeamName       string     `json:"team"`
	SubmissionDate *time.Time `json:"submission_date,omitempty"`
	Score          float64    `json:"score"`
	RawScore       float64    `json:"raw_score"`
}

type snapshotJSON struct {
	Competition string    `json:"competition"`
	FetchedAt   time.Time `json:"fetched_at"`
	Rows        []rowDoc  `json:"rows"`
}

func snapshotDoc(s model.Snapshot) snapshotJSON {
	doc := snapshotJSON{Competition: s.CompetitionID, FetchedAt: s.FetchedAt, Rows: make([]rowDoc, len(s.Rows))}
	for i, r := range s.Rows {
		doc.Rows[i] = rowDoc{
			Position:       i + 1,
			TeamID:         r.TeamID,
			TeamName:       r.TeamName,
			SubmissionDate: r.SubmissionDate,
			Score:          r.Score,
			RawScore:       r.RawScore,
		}
	}
	return doc
}
