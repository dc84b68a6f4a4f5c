package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/standings/internal/domain/model"
)

// CSV column names, matched case-insensitively.
const (
	colTeamID         = "teamid"
	colTeamName       = "teamname"
	colSubmissionDate = "submissiondate"
	colScore          = "score"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVLoader reads <dir>/<name>.csv. File order is rank order.
type CSVLoader struct {
	dir string
}

// NewCSVLoader creates a loader rooted at dir.
func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{dir: dir}
}

// Path returns the file read for a competition name.
func (l *CSVLoader) Path(name string) string {
	return filepath.Join(l.dir, filepath.Base(name)+".csv")
}

// Load implements Loader.
func (l *CSVLoader) Load(ctx context.Context, name string) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	f, err := os.Open(l.Path(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = f.Close() }()
	return ParseCSV(f)
}

// ParseCSV decodes a leaderboard table. teamName and score columns are
// required; teamId and submissionDate are optional. Rows with a score that
// does not parse are dropped. Missing ids are synthesized from the name.
func ParseCSV(r io.Reader) ([]model.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrParse, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	nameIdx, ok := cols[colTeamName]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q column", ErrParse, "teamName")
	}
	scoreIdx, ok := cols[colScore]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q column", ErrParse, "score")
	}
	idIdx, hasID := cols[colTeamID]
	dateIdx, hasDate := cols[colSubmissionDate]

	var out []model.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}

		name := strings.TrimSpace(field(rec, nameIdx))
		raw, ok := parseScore(field(rec, scoreIdx))
		if name == "" || !ok {
			continue
		}

		row := model.Row{TeamName: name, RawScore: raw}
		if hasID {
			row.TeamID = strings.TrimSpace(field(rec, idIdx))
		}
		if row.TeamID == "" {
			row.TeamID = SyntheticTeamID(name)
		}
		if hasDate {
			row.SubmissionDate = parseDate(field(rec, dateIdx))
		}
		out = append(out, row)
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
