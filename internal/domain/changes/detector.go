// Package changes compares consecutive snapshots of one competition.
package changes

import (
	"github.com/okian/standings/internal/domain/model"
)

// Detector computes change events between two snapshots.
type Detector struct {
	removals bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithRemovals makes Detect emit a Removed event for every team present in
// the old snapshot and missing from the new one. Without it dropouts are
// silent.
func WithRemovals() Option {
	return func(d *Detector) {
		d.removals = true
	}
}

// NewDetector creates a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ReportsRemovals tells whether dropouts produce events.
func (d *Detector) ReportsRemovals() bool { return d.removals }

type seen struct {
	pos int
	row model.Row
}

// Detect returns the changes that turn prev into next, in next's row order.
// Removed events, when enabled, follow in prev's row order.
func (d *Detector) Detect(prev, next model.Snapshot) []model.Change {
	index := make(map[string]seen, len(prev.Rows))
	for i, r := range prev.Rows {
		if _, dup := index[r.TeamID]; !dup {
			index[r.TeamID] = seen{pos: i, row: r}
		}
	}

	var out []model.Change
	present := make(map[string]struct{}, len(next.Rows))
	for i, r := range next.Rows {
		present[r.TeamID] = struct{}{}
		old, ok := index[r.TeamID]
		switch {
		case !ok:
			out = append(out, model.Change{
				Kind:        model.NewEntry,
				TeamID:      r.TeamID,
				TeamName:    r.TeamName,
				OldPosition: -1,
				NewPosition: i,
				NewScore:    r.Score,
			})
		case old.pos != i || old.row.Score != r.Score:
			out = append(out, model.Change{
				Kind:        model.PositionChange,
				TeamID:      r.TeamID,
				TeamName:    r.TeamName,
				OldPosition: old.pos,
				NewPosition: i,
				OldScore:    old.row.Score,
				NewScore:    r.Score,
			})
		}
	}

	if !d.removals {
		return out
	}
	for i, r := range prev.Rows {
		if _, ok := present[r.TeamID]; ok {
			continue
		}
		if index[r.TeamID].pos != i {
			continue // duplicate id in prev
		}
		out = append(out, model.Change{
			Kind:        model.Removed,
			TeamID:      r.TeamID,
			TeamName:    r.TeamName,
			OldPosition: i,
			NewPosition: -1,
			OldScore:    r.Score,
		})
	}
	return out
}
