// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"time"
)

// Row is one line of a competition leaderboard.
type Row struct {
	TeamID         string     // unique within one snapshot
	TeamName       string     // display name, not unique across competitions
	SubmissionDate *time.Time // optional
	Score          float64    // positional points assigned by the scorer
	RawScore       float64    // metric reported by the source, display only
}

// Snapshot is the full ranked standings of one competition at one point in
// time. Rows[0] is first place. Snapshots are replaced, never edited.
type Snapshot struct {
	CompetitionID string
	FetchedAt     time.Time
	Rows          []Row
	// Failed marks the empty placeholder returned when a source could not
	// be read. Failed snapshots are never cached.
	Failed        bool
}

// Len returns the number of rows.
func (s Snapshot) Len() int { return len(s.Rows) }

// Empty reports whether the snapshot has no rows.
func (s Snapshot) Empty() bool { return len(s.Rows) == 0 }

// Clone returns a copy that shares no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{CompetitionID: s.CompetitionID, FetchedAt: s.FetchedAt, Failed: s.Failed}
	if s.Rows == nil {
		return out
	}
	out.Rows = make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		if r.SubmissionDate != nil {
			d := *r.SubmissionDate
			r.SubmissionDate = &d
		}
		out.Rows[i] = r
	}
	return out
}

// ChangeKind discriminates change events.
type ChangeKind string

// Change kinds.
const (
	NewEntry       ChangeKind = "new_entry"
	PositionChange ChangeKind = "position_change"
	Removed        ChangeKind = "removed"
)

// Change is a detected difference between two consecutive snapshots of one
// competition. Positions are 0-based; fields that do not apply to a kind
// are -1 (positions) or 0 (scores).
type Change struct {
	Kind        ChangeKind `json:"kind"`
	TeamID      string     `json:"team_id"`
	TeamName    string     `json:"team"`
	OldPosition int        `json:"old_position"`
	NewPosition int        `json:"new_position"`
	OldScore    float64    `json:"old_score"`
	NewScore    float64    `json:"new_score"`
}

// Weights maps competition identifiers to their weight in the aggregate.
type Weights map[string]float64

// IDs returns the competition identifiers in ascending order.
func (w Weights) IDs() []string {
	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Standing is one line of the aggregated leaderboard. Scores holds the
// weighted points per competition, aligned with Board.Competitions.
type Standing struct {
	Rank   int       `json:"rank"`
	Team   string    `json:"team"`
	Scores []float64 `json:"scores"`
	Total  float64   `json:"total"`
}

// Board is the aggregated ranking across competitions.
type Board struct {
	Competitions []string   `json:"competitions"`
	Entries      []Standing `json:"data"`
}

// Limit returns a copy of b holding at most n entries. n < 1 keeps all.
func (b Board) Limit(n int) Board {
	if n < 1 || n >= len(b.Entries) {
		return b
	}
	return Board{Competitions: b.Competitions, Entries: b.Entries[:n]}
}

// CompetitionInfo describes one configured competition.
type CompetitionInfo struct {
	ID        string     `json:"id"`
	Weight    float64    `json:"weight"`
	Source    string     `json:"source"`
	Rows      int        `json:"rows"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// RowView is one line of a competition breakdown. Position is 1-based.
type RowView struct {
	Position       int        `json:"position"`
	TeamID         string     `json:"team_id"`
	Team           string     `json:"team"`
	SubmissionDate *time.Time `json:"submission_date,omitempty"`
	RawScore       float64    `json:"raw_score"`
	Points         float64    `json:"points"`
	Weighted       float64    `json:"weighted"`
}

// CompetitionView is the cached breakdown of one competition.
type CompetitionView struct {
	CompetitionInfo
	Entries []RowView `json:"data"`
}
