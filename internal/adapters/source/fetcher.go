package source

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/scoring"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// Fetch outcomes recorded in metrics.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Fetcher turns a competition identifier into a scored snapshot. It never
// fails: any routing, transport or parse error yields an empty snapshot.
type Fetcher struct {
	router *Router
	scorer scoring.Scorer
	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l logger.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithClock overrides the time source used for FetchedAt.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFetcher creates a Fetcher. A nil scorer falls back to the default
// exponential policy.
func NewFetcher(router *Router, scorer scoring.Scorer, opts ...FetcherOption) *Fetcher {
	if scorer == nil {
		scorer = scoring.Exponential{Base: scoring.DefaultExponentialBase, DecayRate: scoring.DefaultDecayRate}
	}
	f := &Fetcher{
		router: router,
		scorer: scorer,
		logger: logger.Default().Named("fetcher"),
		tracer: otel.Tracer("standings/source"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch loads and scores one competition. Score of each row is replaced by
// the positional points of its index; RawScore is kept as reported. On
// failure the snapshot is empty and marked Failed.
func (f *Fetcher) Fetch(ctx context.Context, competitionID string) model.Snapshot {
	ctx, span := f.tracer.Start(ctx, "Fetcher.Fetch",
		trace.WithAttributes(attribute.String("competition", competitionID)),
	)
	defer span.End()

	start := f.now()
	snap := model.Snapshot{CompetitionID: competitionID, FetchedAt: start.UTC(), Rows: []model.Row{}}

	rows, kind, err := f.load(ctx, competitionID)
	latency := float64(f.now().Sub(start).Milliseconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		metrics.RecordFetch(competitionID, string(kind), outcomeError, latency)
		f.logger.Error(ctx, "failed to fetch leaderboard",
			logger.String("competition", competitionID),
			logger.String("source", string(kind)),
			logger.Error(err),
		)
		snap.Failed = true
		return snap
	}

	for i := range rows {
		rows[i].Score = f.scorer.Score(i)
	}
	if rows != nil {
		snap.Rows = rows
	}

	span.SetAttributes(attribute.Int("rows", len(rows)))
	metrics.RecordFetch(competitionID, string(kind), outcomeOK, latency)
	f.logger.Debug(ctx, "leaderboard fetched",
		logger.String("competition", competitionID),
		logger.String("source", string(kind)),
		logger.Int("rows", len(rows)),
	)
	return snap
}

func (f *Fetcher) load(ctx context.Context, competitionID string) ([]model.Row, Kind, error) {
	if f.router == nil {
		return nil, KindAPI, ErrUnknownSource
	}
	kind, name, loader, err := f.router.Route(competitionID)
	if err != nil {
		return nil, kind, err
	}
	if err := ctx.Err(); err != nil {
		return nil, kind, err
	}
	rows, err := loader.Load(ctx, name)
	if err != nil {
		return nil, kind, err
	}
	if rows == nil {
		rows = []model.Row{}
	}
	return rows, kind, nil
}
