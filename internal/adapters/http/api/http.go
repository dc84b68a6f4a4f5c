// Package api serves the aggregated standings over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Leaderboard(ctx context.Context) model.Board
	Competitions(ctx context.Context) []model.CompetitionInfo
	Competition(ctx context.Context, id string) (model.CompetitionView, bool)
	StatsProvider
}

const defaultMaxLimit = 1000

// Server wires HTTP routes for the read API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	leaderboardHandler  *LeaderboardHandler
	competitionsHandler *CompetitionsHandler
	hub                 *Hub
	allowedOrigins      []string
	logger              logger.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	maxLimit int
	hub      *Hub
	origins  []string
	logger   logger.Logger
}

// WithMaxLimit caps GET /leaderboard?limit.
func WithMaxLimit(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithHub serves websocket updates on /ws.
func WithHub(h *Hub) Option {
	return func(o *serverOptions) { o.hub = h }
}

// WithAllowedOrigins sets the CORS origins. Defaults to "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(o *serverOptions) {
		if len(origins) > 0 {
			o.origins = origins
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{
		maxLimit: defaultMaxLimit,
		origins:  []string{"*"},
		logger:   logger.Default().Named("http"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(deps),
		leaderboardHandler:  NewLeaderboardHandler(deps, o.maxLimit),
		competitionsHandler: NewCompetitionsHandler(deps),
		hub:                 o.hub,
		allowedOrigins:      o.origins,
		logger:              o.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(http.HandlerFunc(s.healthHandler.HandleHealth), "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(http.HandlerFunc(s.statsHandler.HandleStats), "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(http.HandlerFunc(s.leaderboardHandler.HandleGetLeaderboard), "leaderboard"))
	mux.HandleFunc("/competitions", MetricsMiddleware(http.HandlerFunc(s.competitionsHandler.HandleList), "competitions"))
	mux.HandleFunc("/competitions/", MetricsMiddleware(http.HandlerFunc(s.competitionsHandler.HandleGet), "competition"))
	if s.hub != nil {
		mux.HandleFunc("/ws", MetricsMiddleware(s.hub, "ws"))
	}
	s.logger.Debug(ctx, "routes registered", logger.Bool("websocket", s.hub != nil))
}

// Handler returns the registered routes behind the CORS middleware.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	s.Register(ctx, mux)
	return cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(mux)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before touching the response so an encode failure
// becomes a 500 instead of an empty body behind a success status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Default().Error(context.Background(), "failed to encode response",
			logger.Int("status", status), logger.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "encode_failed", Message: http.StatusText(status)})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
