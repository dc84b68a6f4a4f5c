package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/standings/internal/domain/model"
)

// CompetitionsDependencies defines the interface for competition reads.
type CompetitionsDependencies interface {
	Competitions(ctx context.Context) []model.CompetitionInfo
	Competition(ctx context.Context, id string) (model.CompetitionView, bool)
}

// CompetitionsHandler serves the per-competition breakdown.
type CompetitionsHandler struct {
	deps CompetitionsDependencies
}

// NewCompetitionsHandler creates a new competitions handler.
func NewCompetitionsHandler(deps CompetitionsDependencies) *CompetitionsHandler {
	return &CompetitionsHandler{deps: deps}
}

// HandleList handles GET /competitions.
func (h *CompetitionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	list := h.deps.Competitions(r.Context())
	if list == nil {
		list = []model.CompetitionInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// HandleGet handles GET /competitions/{id}.
func (h *CompetitionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/competitions/")
	if id == "" {
		h.HandleList(w, r)
		return
	}
	view, ok := h.deps.Competition(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("%w: %s", ErrNotConfigured, id))
		return
	}
	if view.Entries == nil {
		view.Entries = []model.RowView{}
	}
	writeJSON(w, http.StatusOK, view)
}
