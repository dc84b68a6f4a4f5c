package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/standings/internal/adapters/http/api"
	"github.com/okian/standings/internal/adapters/publish"
	"github.com/okian/standings/internal/adapters/source"
	service "github.com/okian/standings/internal/app"
	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/internal/domain/changes"
	"github.com/okian/standings/internal/domain/identity"
	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/internal/domain/scoring"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	redisPingTimeout          = 3 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// app holds every long-lived component so shutdown can release them.
type app struct {
	svc     *service.Service
	hub     *api.Hub
	handler http.Handler
	closers []func() error
}

func main() {
	// Only the custom registry is exposed; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Credentials are commonly kept in .env next to the binary.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Get().Warn(ctx, "failed to read .env", logger.Error(err))
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Fatal(ctx, "failed to load config", logger.Error(err))
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		logger.Get().Warn(ctx, "invalid log_format; keeping text", logger.Error(err))
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log := logger.Get()

	a, err := build(ctx, cfg, log)
	if err != nil {
		log.Fatal(ctx, "failed to build service", logger.Error(err))
	}
	if len(cfg.Competitions) == 0 {
		log.Warn(ctx, "no competitions configured; the leaderboard will stay empty")
	}

	a.svc.Start(ctx)
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.svc.Stop()
	a.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Warn(shutdownCtx, "failed to close publisher", logger.Error(err))
		}
	}
	log.Info(shutdownCtx, "server stopped")
}

// build wires the service, its listeners and the HTTP handler from cfg.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	scorer, err := scoring.New(cfg.ScoringMode,
		scoring.WithBase(cfg.ScoringBase),
		scoring.WithDecayRate(cfg.ScoringDecayRate),
	)
	if err != nil {
		return nil, err
	}

	var apiLoader source.Loader
	if cfg.NeedsCredentials() {
		apiLoader = source.NewKaggleClient(cfg.KaggleUsername, cfg.KaggleKey,
			source.WithBaseURL(cfg.APIBaseURL),
			source.WithTimeout(cfg.APITimeout),
			source.WithRateLimit(cfg.APIRateLimit, cfg.APIBurst),
		)
	}
	router := source.NewRouter(cfg.FilePrefix, source.NewCSVLoader(cfg.DataDir), apiLoader)
	fetcher := source.NewFetcher(router, scorer, source.WithFetcherLogger(log.Named("fetcher")))

	var detectorOpts []changes.Option
	if cfg.ReportRemovals {
		detectorOpts = append(detectorOpts, changes.WithRemovals())
	}

	svc := service.New(fetcher, model.Weights(cfg.Competitions),
		service.WithLogger(log),
		service.WithDetector(changes.NewDetector(detectorOpts...)),
		service.WithResolver(identity.NewResolver(
			identity.WithAliases(cfg.TeamAliases),
			identity.WithCaseFolding(cfg.FoldTeamNames),
		)),
		service.WithSourceKind(func(id string) string { return string(router.Kind(id)) }),
		service.WithSimilarNameDistance(cfg.SimilarNameDistance),
		service.WithPollerOptions(
			service.WithInterval(cfg.RefreshInterval),
			service.WithFetchConcurrency(cfg.FetchConcurrency),
		),
	)

	a := &app{svc: svc}
	a.hub = api.NewHub(api.WithBoard(svc.Leaderboard), api.WithHubLogger(log.Named("websocket")))

	svc.Subscribe(publish.NewLogListener(publish.WithLogger(log.Named("changes"))))
	svc.Subscribe(publish.NewMetricsListener())
	svc.Subscribe(a.hub)

	if cfg.RedisAddr != "" {
		client := publish.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn(ctx, "redis not reachable; mirror will retry on every update",
				logger.String("addr", cfg.RedisAddr), logger.Error(err))
		}
		cancel()
		svc.Subscribe(publish.NewRedisMirror(client,
			publish.WithKeyPrefix(cfg.RedisPrefix),
			publish.WithTTL(cfg.RedisTTL),
			publish.WithLogger(log.Named("redis-mirror")),
		))
		a.closers = append(a.closers, client.Close)
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub := publish.NewKafkaPublisher(publish.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic),
			publish.WithLogger(log.Named("kafka-publisher")),
		)
		svc.Subscribe(pub)
		a.closers = append(a.closers, pub.Close)
	}

	srv := api.NewServer(svc,
		api.WithHub(a.hub),
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins...),
		api.WithLogger(log.Named("http")),
	)
	a.handler = srv.Handler(ctx)

	log.Info(ctx, "service configured",
		logger.Int("competitions", len(cfg.Competitions)),
		logger.String("scoring", cfg.ScoringMode),
		logger.Bool("redis", cfg.RedisAddr != ""),
		logger.Bool("kafka", len(cfg.KafkaBrokers) > 0),
	)
	return a, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
