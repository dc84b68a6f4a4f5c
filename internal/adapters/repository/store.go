// Package repository holds the latest leaderboard snapshot per competition.
package repository

import (
	"context"

	"github.com/okian/standings/internal/domain/model"
)

// Store provides read/write access to the cached snapshots. The poller is
// its only writer; HTTP handlers and the aggregator read concurrently.
type Store interface {
	// Put replaces the snapshot of a competition and returns the previous
	// one. ok is false on the first observation.
	Put(ctx context.Context, competitionID string, snap model.Snapshot) (prev model.Snapshot, ok bool)

	// Get returns the cached snapshot of a competition.
	Get(ctx context.Context, competitionID string) (model.Snapshot, bool)

	// Snapshot returns the cached snapshot or ErrNotFound.
	Snapshot(ctx context.Context, competitionID string) (model.Snapshot, error)

	// Competitions lists the competitions with a cached snapshot, sorted.
	Competitions(ctx context.Context) []string

	// Count returns the number of cached competitions.
	Count(ctx context.Context) int
}
