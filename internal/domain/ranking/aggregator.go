// Package ranking combines weighted per-competition points into one
// leaderboard.
package ranking

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/okian/standings/internal/domain/identity"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

const defaultConcurrency = 4

// Source provides the current snapshot of a competition.
type Source interface {
	Snapshot(ctx context.Context, competitionID string) (model.Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, competitionID string) (model.Snapshot, error)

// Snapshot calls f.
func (f SourceFunc) Snapshot(ctx context.Context, competitionID string) (model.Snapshot, error) {
	return f(ctx, competitionID)
}

// Aggregator builds the composite leaderboard.
type Aggregator struct {
	source      Source
	resolver    *identity.Resolver
	concurrency int
	logger      logger.Logger
	tracer      trace.Tracer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithResolver sets how team names are grouped across competitions.
func WithResolver(r *identity.Resolver) Option {
	return func(a *Aggregator) {
		if r != nil {
			a.resolver = r
		}
	}
}

// WithConcurrency bounds parallel snapshot reads.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Aggregator reading snapshots from src.
func New(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:      src,
		resolver:    identity.NewResolver(),
		concurrency: defaultConcurrency,
		logger:      logger.Default().Named("aggregator"),
		tracer:      otel.Tracer("standings/ranking"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type tally struct {
	display string
	scores  []float64
	total   float64
	order   int
}

// Aggregate ranks teams by the sum of their weighted positional points.
//
// Competitions are visited in ascending identifier order, so the result
// does not depend on how the weights map was built. A competition whose
// snapshot cannot be read contributes nothing. Ties on total are broken by
// display name, then by first appearance.
func (a *Aggregator) Aggregate(ctx context.Context, weights model.Weights) model.Board {
	ctx, span := a.tracer.Start(ctx, "Aggregator.Aggregate",
		trace.WithAttributes(attribute.Int("competitions", len(weights))),
	)
	defer span.End()
	start := time.Now()

	ids := weights.IDs()
	snaps := a.read(ctx, ids)

	byKey := make(map[string]*tally)
	var order []*tally
	for ci, id := range ids {
		w := weights[id]
		for _, r := range snaps[ci].Rows {
			name := r.TeamName
			if strings.TrimSpace(name) == "" {
				name = r.TeamID
			}
			key, display := a.resolver.Canonical(name)
			t, ok := byKey[key]
			if !ok {
				t = &tally{display: display, scores: make([]float64, len(ids)), order: len(order)}
				byKey[key] = t
				order = append(order, t)
			}
			pts := r.Score * w
			t.scores[ci] += pts
			t.total += pts
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].total != order[j].total {
			return order[i].total > order[j].total
		}
		if order[i].display != order[j].display {
			return order[i].display < order[j].display
		}
		return order[i].order < order[j].order
	})

	board := model.Board{
		Competitions: append(make([]string, 0, len(ids)), ids...),
		Entries:      make([]model.Standing, 0, len(order)),
	}
	for i, t := range order {
		board.Entries = append(board.Entries, model.Standing{
			Rank:   i + 1,
			Team:   t.display,
			Scores: t.scores,
			Total:  t.total,
		})
	}

	span.SetAttributes(attribute.Int("teams", len(board.Entries)))
	metrics.RecordAggregation(float64(time.Since(start).Milliseconds()), len(board.Entries))
	return board
}

// read loads every snapshot concurrently. Failed reads yield an empty
// snapshot at the same index.
func (a *Aggregator) read(ctx context.Context, ids []string) []model.Snapshot {
	snaps := make([]model.Snapshot, len(ids))
	if a.source == nil {
		return snaps
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			s, err := a.source.Snapshot(gctx, id)
			if err != nil {
				metrics.RecordAggregationFailure(id)
				trace.SpanFromContext(ctx).SetStatus(codes.Error, "partial aggregation")
				a.logger.Warn(ctx, "competition skipped in aggregation",
					logger.String("competition", id),
					logger.Error(err),
				)
				return nil
			}
			snaps[i] = s
			return nil
		})
	}
	_ = g.Wait()
	return snaps
}

// Names returns every distinct team display name in the given snapshots,
// in first-seen order.
func Names(snaps ...model.Snapshot) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range snaps {
		for _, r := range s.Rows {
			if _, ok := seen[r.TeamName]; ok {
				continue
			}
			seen[r.TeamName] = struct{}{}
			out = append(out, r.TeamName)
		}
	}
	return out
}
