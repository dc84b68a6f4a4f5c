package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/standings/internal/adapters/repository"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// Default poller configuration.
const (
	defaultInterval         = 30 * time.Second
	defaultFetchConcurrency = 1
)

// Fetcher produces the current snapshot of a competition. It never fails;
// a failed fetch is an empty snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, competitionID string) model.Snapshot
}

// Detector compares two snapshots of one competition.
type Detector interface {
	Detect(prev, next model.Snapshot) []model.Change
}

// Publisher delivers an update to listeners and returns how many failed.
type Publisher interface {
	Notify(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) int
}

// State is the lifecycle state of a Poller.
type State int

// Poller states. A stopped poller cannot be restarted.
const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	ID       string
	Fetched  int
	Stored   int
	Skipped  int
	Changes  int
	Failed   int
	Duration time.Duration
}

// Poller refreshes every configured competition on a fixed interval.
// Fetches may run in parallel; storing, change detection and notification
// happen on the poller goroutine in identifier order.
type Poller struct {
	fetcher     Fetcher
	store       repository.Store
	detector    Detector
	publisher   Publisher
	ids         []string
	interval    time.Duration
	concurrency int
	logger      logger.Logger

	mu       sync.Mutex
	state    State
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	cycles   int64
	last     time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the pause between cycles.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithFetchConcurrency bounds parallel fetches within one cycle.
func WithFetchConcurrency(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPollerLogger sets the poller logger.
func WithPollerLogger(l logger.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller creates an idle Poller for the given competitions.
func NewPoller(fetcher Fetcher, store repository.Store, detector Detector, publisher Publisher, ids []string, opts ...PollerOption) *Poller {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	p := &Poller{
		fetcher:     fetcher,
		store:       store,
		detector:    detector,
		publisher:   publisher,
		ids:         sorted,
		interval:    defaultInterval,
		concurrency: defaultFetchConcurrency,
		logger:      logger.Default().Named("poller"),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cycles returns the number of completed cycles and when the last one ended.
func (p *Poller) Cycles() (int64, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycles, p.last
}

// Start launches the polling loop. Calling Start on a running or stopped
// poller does nothing. The loop ends when ctx is cancelled or Stop is
// called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return
	}
	p.state = StateRunning
	metrics.SetPollerRunning(true)
	p.logger.Info(ctx, "poller started",
		logger.Int("competitions", len(p.ids)),
		logger.Duration("interval", p.interval),
		logger.Int("fetchConcurrency", p.concurrency),
	)
	go p.loop(ctx)
}

// Stop ends the loop and waits for an in-flight cycle to finish. Stopping
// an idle poller moves it straight to stopped.
func (p *Poller) Stop() {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.state = StateStopped
		p.mu.Unlock()
		return
	case StateStopped:
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer func() {
		p.mu.Lock()
		p.state = StateStopped
		p.mu.Unlock()
		metrics.SetPollerRunning(false)
		p.logger.Info(context.Background(), "poller stopped")
		close(p.done)
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-timer.C:
		}

		p.RunOnce(ctx)
		timer.Reset(p.interval)
	}
}

// RunOnce performs a single cycle: fetch every competition, then store,
// diff and notify in identifier order. Failed fetches are not stored, so
// the previous standings survive; a successful empty read replaces them.
func (p *Poller) RunOnce(ctx context.Context) CycleResult {
	start := time.Now()
	res := CycleResult{ID: uuid.NewString()}
	log := p.logger.With(logger.String("cycle", res.ID))

	snaps := make([]model.Snapshot, len(p.ids))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, id := range p.ids {
		g.Go(func() error {
			snaps[i] = p.fetcher.Fetch(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	res.Fetched = len(snaps)

	for i, id := range p.ids {
		snap := snaps[i]
		if snap.Failed {
			res.Skipped++
			log.Warn(ctx, "fetch failed, keeping previous standings",
				logger.String("competition", id),
			)
			continue
		}

		prev, _ := p.store.Put(ctx, id, snap)
		res.Stored++

		var changes []model.Change
		if p.detector != nil {
			changes = p.detector.Detect(prev, snap)
		}
		res.Changes += len(changes)
		if p.publisher != nil {
			res.Failed += p.publisher.Notify(ctx, id, snap, changes)
		}
		log.Debug(ctx, "competition refreshed",
			logger.String("competition", id),
			logger.Int("rows", snap.Len()),
			logger.Int("changes", len(changes)),
		)
	}

	res.Duration = time.Since(start)
	p.mu.Lock()
	p.cycles++
	p.last = time.Now()
	p.mu.Unlock()

	metrics.RecordPollCycle(float64(res.Duration.Milliseconds()))
	log.Info(ctx, "poll cycle finished",
		logger.Int("stored", res.Stored),
		logger.Int("skipped", res.Skipped),
		logger.Int("changes", res.Changes),
		logger.Int("listenerFailures", res.Failed),
		logger.Duration("duration", res.Duration),
	)
	return res
}
