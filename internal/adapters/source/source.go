// Package source retrieves raw competition standings from local CSV files
// and the Kaggle leaderboard API and turns them into scored snapshots.
package source

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/standings/internal/domain/model"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	ErrFetch         = errors.New("source fetch failed")
	ErrParse         = errors.New("source parse failed")
	ErrUnknownSource = errors.New("no source for competition")
)

// Kind names the backend of a competition.
type Kind string

// Source kinds.
const (
	KindFile Kind = "file"
	KindAPI  Kind = "api"
)

// Loader reads the ranked rows of one competition. Rows come back in rank
// order; Score is left for the Fetcher to assign.
type Loader interface {
	Load(ctx context.Context, name string) ([]model.Row, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, name string) ([]model.Row, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, name string) ([]model.Row, error) {
	return f(ctx, name)
}

// teamNamespace scopes synthetic team ids.
var teamNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/okian/standings/team"))

// SyntheticTeamID derives a stable id from a team name for sources that do
// not provide one. The same name always yields the same id.
func SyntheticTeamID(teamName string) string {
	return uuid.NewSHA1(teamNamespace, []byte(teamName)).String()
}

// parseScore parses a raw metric. NaN and infinities are rejected so they
// never reach the cache or the JSON encoders.
func parseScore(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
