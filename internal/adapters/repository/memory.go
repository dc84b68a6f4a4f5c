package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an RWMutex-guarded map of snapshots. Snapshots are cloned
// on the way in and out so no caller can alias cached rows.
type MemoryStore struct {
	mu     sync.RWMutex
	snaps  map[string]model.Snapshot
	logger logger.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		snaps:  make(map[string]model.Snapshot),
		logger: logger.Default().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, competitionID string, snap model.Snapshot) (model.Snapshot, bool) {
	snap = snap.Clone()
	snap.CompetitionID = competitionID

	s.mu.Lock()
	prev, ok := s.snaps[competitionID]
	s.snaps[competitionID] = snap
	count := len(s.snaps)
	s.mu.Unlock()

	metrics.UpdateSnapshotRows(competitionID, snap.Len())
	metrics.UpdateCachedCompetitions(count)
	s.logger.Debug(ctx, "snapshot cached",
		logger.String("competition", competitionID),
		logger.Int("rows", snap.Len()),
		logger.Bool("replaced", ok),
	)
	// prev is no longer reachable from the map, so it needs no copy.
	return prev, ok
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, competitionID string) (model.Snapshot, bool) {
	s.mu.RLock()
	snap, ok := s.snaps[competitionID]
	s.mu.RUnlock()
	if !ok {
		return model.Snapshot{}, false
	}
	return snap.Clone(), true
}

// Snapshot implements Store and ranking.Source.
func (s *MemoryStore) Snapshot(ctx context.Context, competitionID string) (model.Snapshot, error) {
	snap, ok := s.Get(ctx, competitionID)
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, competitionID)
	}
	return snap, nil
}

// Competitions implements Store.
func (s *MemoryStore) Competitions(_ context.Context) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}
