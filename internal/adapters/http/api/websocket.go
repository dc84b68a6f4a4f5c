package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// MessageUpdateLeaderboard is the type of every message pushed on /ws.
const MessageUpdateLeaderboard = "update_leaderboard"

const writeWait = 5 * time.Second

// Update is the message pushed to websocket clients after a competition
// refresh.
type Update struct {
	Type        string         `json:"type"`
	Competition string         `json:"competition"`
	FetchedAt   time.Time      `json:"fetched_at"`
	Changes     []model.Change `json:"changes"`
	Leaderboard *model.Board   `json:"leaderboard,omitempty"`
}

// Hub accepts websocket clients and broadcasts leaderboard updates to all
// of them. It is a notify.Listener.
type Hub struct {
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	board    func(ctx context.Context) model.Board
	logger   logger.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBoard attaches the aggregated leaderboard to every update.
func WithBoard(fn func(ctx context.Context) model.Board) HubOption {
	return func(h *Hub) { h.board = fn }
}

// WithHubLogger sets the hub logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates a hub with no clients.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger.Default().Named("websocket"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements notify.Named.
func (h *Hub) Name() string { return "websocket" }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// OnUpdate implements notify.Listener. Clients that cannot be written to
// are dropped.
func (h *Hub) OnUpdate(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error {
	if h.Clients() == 0 {
		return nil
	}
	msg := Update{
		Type:        MessageUpdateLeaderboard,
		Competition: competitionID,
		FetchedAt:   snap.FetchedAt,
		Changes:     changes,
	}
	if msg.Changes == nil {
		msg.Changes = []model.Change{}
	}
	if h.board != nil {
		b := h.board(ctx)
		msg.Leaderboard = &b
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.broadcast(ctx, data)
	return nil
}

func (h *Hub) broadcast(ctx context.Context, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn(ctx, "dropping websocket client", logger.Error(err))
			_ = c.Close()
			delete(h.clients, c)
			continue
		}
		metrics.RecordWebsocketMessage()
	}
	metrics.UpdateWebsocketClients(len(h.clients))
}

// ServeHTTP upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	metrics.UpdateWebsocketClients(len(h.clients))
	h.mu.Unlock()

	// Reads only detect disconnects; clients never send anything.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	metrics.UpdateWebsocketClients(len(h.clients))
	h.mu.Unlock()
	_ = conn.Close()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = c.Close()
		delete(h.clients, c)
	}
	metrics.UpdateWebsocketClients(0)
}
