// Package service wires the snapshot cache, poller, notifier and aggregator
// into the facade used by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/standings/internal/adapters/repository"
	"github.com/okian/standings/internal/domain/changes"
	"github.com/okian/standings/internal/domain/identity"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/notify"
	"github.com/okian/standings/internal/domain/ranking"
	"github.com/okian/standings/pkg/logger"
)

// Service implements the API dependencies for the standings system.
type Service struct {
	weights         model.Weights
	store           repository.Store
	detector        Detector
	resolver        *identity.Resolver
	notifier        *notify.Notifier
	aggregator      *ranking.Aggregator
	poller          *Poller
	sourceKind      func(id string) string
	similarDistance int
	pollerOpts      []PollerOption
	group           singleflight.Group
	startedAt       time.Time

	mu     sync.RWMutex
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore replaces the in-memory snapshot cache.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithDetector sets the change detector used by the poller.
func WithDetector(d Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithResolver sets how team names are merged across competitions.
func WithResolver(r *identity.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithSourceKind labels competitions by backend in listings.
func WithSourceKind(fn func(id string) string) Option {
	return func(s *Service) {
		if fn != nil {
			s.sourceKind = fn
		}
	}
}

// WithSimilarNameDistance enables the similar team name report in stats.
func WithSimilarNameDistance(d int) Option {
	return func(s *Service) {
		if d > 0 {
			s.similarDistance = d
		}
	}
}

// WithPollerOptions forwards options to the poller.
func WithPollerOptions(opts ...PollerOption) Option {
	return func(s *Service) {
		s.pollerOpts = append(s.pollerOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service polling the competitions in weights through
// fetcher.
func New(fetcher Fetcher, weights model.Weights, opts ...Option) *Service {
	s := &Service{
		weights:    make(model.Weights, len(weights)),
		detector:   changes.NewDetector(),
		resolver:   identity.NewResolver(),
		sourceKind: func(string) string { return "" },
		logger:     logger.Default().Named("service"),
	}
	for id, w := range weights {
		s.weights[id] = w
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithLogger(s.logger.Named("store")))
	}

	s.notifier = notify.New(notify.WithLogger(s.logger.Named("notifier")))
	s.aggregator = ranking.New(ranking.SourceFunc(s.cached),
		ranking.WithResolver(s.resolver),
		ranking.WithLogger(s.logger.Named("aggregator")),
	)
	pollerOpts := append([]PollerOption{WithPollerLogger(s.logger.Named("poller"))}, s.pollerOpts...)
	s.poller = NewPoller(fetcher, s.store, s.detector, s.notifier, s.weights.IDs(), pollerOpts...)
	return s
}

// cached reads a competition for aggregation. A competition that has not
// been fetched yet counts as empty.
func (s *Service) cached(ctx context.Context, id string) (model.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Snapshot{CompetitionID: id}, nil
	}
	return snap, err
}

// Subscribe registers a listener for competition updates.
func (s *Service) Subscribe(l notify.Listener) string {
	return s.notifier.Subscribe(l)
}

// Unsubscribe removes a listener.
func (s *Service) Unsubscribe(token string) bool {
	return s.notifier.Unsubscribe(token)
}

// Start launches the poller. It is safe to call more than once.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	s.mu.Unlock()
	s.poller.Start(ctx)
}

// Stop stops the poller and waits for it.
func (s *Service) Stop() {
	s.poller.Stop()
}

// RunOnce runs a single poll cycle synchronously.
func (s *Service) RunOnce(ctx context.Context) CycleResult {
	return s.poller.RunOnce(ctx)
}

// Leaderboard aggregates the cached snapshots. Concurrent callers share one
// aggregation.
func (s *Service) Leaderboard(ctx context.Context) model.Board {
	v, _, _ := s.group.Do("leaderboard", func() (any, error) {
		return s.aggregator.Aggregate(ctx, s.weights), nil
	})
	return v.(model.Board)
}

// Competitions lists the configured competitions in identifier order.
func (s *Service) Competitions(ctx context.Context) []model.CompetitionInfo {
	ids := s.weights.IDs()
	out := make([]model.CompetitionInfo, 0, len(ids))
	for _, id := range ids {
		snap, ok := s.store.Get(ctx, id)
		out = append(out, s.info(id, snap, ok))
	}
	return out
}

// Competition returns the cached breakdown of one competition. Rows are
// empty until the first successful fetch. ok is false for identifiers that
// are not configured.
func (s *Service) Competition(ctx context.Context, id string) (view model.CompetitionView, ok bool) {
	w, ok := s.weights[id]
	if !ok {
		return model.CompetitionView{}, false
	}
	snap, err := s.store.Snapshot(ctx, id)
	cached := err == nil

	view = model.CompetitionView{
		CompetitionInfo: s.info(id, snap, cached),
		Entries:         make([]model.RowView, 0, snap.Len()),
	}
	for i, r := range snap.Rows {
		view.Entries = append(view.Entries, model.RowView{
			Position:       i + 1,
			TeamID:         r.TeamID,
			Team:           r.TeamName,
			SubmissionDate: r.SubmissionDate,
			RawScore:       r.RawScore,
			Points:         r.Score,
			Weighted:       r.Score * w,
		})
	}
	return view, true
}

func (s *Service) info(id string, snap model.Snapshot, cached bool) model.CompetitionInfo {
	ci := model.CompetitionInfo{
		ID:     id,
		Weight: s.weights[id],
		Source: s.sourceKind(id),
		Rows:   snap.Len(),
	}
	if cached && !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt
		ci.FetchedAt = &t
	}
	return ci
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	cycles, last := s.poller.Cycles()
	stats := map[string]interface{}{
		"poller":       s.poller.State().String(),
		"competitions": len(s.weights),
		"cached":       s.store.Count(ctx),
		"listeners":    s.notifier.Len(),
		"cycles":       cycles,
	}
	if !last.IsZero() {
		stats["lastCycleAt"] = last.UTC()
	}
	if !startedAt.IsZero() {
		stats["uptimeSeconds"] = int64(time.Since(startedAt).Seconds())
	}

	if s.similarDistance > 0 {
		var snaps []model.Snapshot
		for _, id := range s.store.Competitions(ctx) {
			if snap, ok := s.store.Get(ctx, id); ok {
				snaps = append(snaps, snap)
			}
		}
		pairs := s.resolver.Similar(ranking.Names(snaps...), s.similarDistance)
		if pairs == nil {
			pairs = []identity.Pair{}
		}
		stats["similarNames"] = pairs
	}
	return stats
}
