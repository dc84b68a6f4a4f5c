// Package identity resolves team display names to a canonical key shared
// across competitions.
package identity

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Resolver maps display names to canonical identities. It is immutable
// after construction and safe for concurrent use.
type Resolver struct {
	aliases map[string]string // normalized alias -> canonical display name
	fold    bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAliases registers explicit name -> canonical name mappings.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for from, to := range aliases {
			to = strings.TrimSpace(to)
			if to == "" {
				continue
			}
			r.aliases[strings.TrimSpace(from)] = to
		}
	}
}

// WithCaseFolding treats names that differ only in case as the same team.
func WithCaseFolding(enabled bool) Option {
	return func(r *Resolver) {
		r.fold = enabled
	}
}

// NewResolver builds a Resolver. Without options it groups by exact
// (whitespace-trimmed) display name.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		aliases: make(map[string]string),
	}
	raw := make(map[string]string)
	for _, opt := range opts {
		opt(r)
	}
	// Re-key aliases once folding is known.
	for from, to := range r.aliases {
		raw[r.normalize(from)] = to
	}
	r.aliases = raw
	return r
}

func (r *Resolver) normalize(name string) string {
	name = strings.TrimSpace(name)
	if r.fold {
		return fold(name)
	}
	return name
}

// fold applies Unicode case folding. Casers are stateful, so each call gets
// its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Canonical returns the grouping key and the display name for a team.
func (r *Resolver) Canonical(name string) (key, display string) {
	n := r.normalize(name)
	if to, ok := r.aliases[n]; ok {
		return r.normalize(to), to
	}
	return n, strings.TrimSpace(name)
}

// Key returns only the grouping key for name.
func (r *Resolver) Key(name string) string {
	k, _ := r.Canonical(name)
	return k
}

// Pair is two distinct team names that look alike.
type Pair struct {
	A        string `json:"a"`
	B        string `json:"b"`
	Distance int    `json:"distance"`
}

// Similar reports pairs of distinct canonical names whose Levenshtein
// distance is at most maxDistance. Comparison is case-insensitive. Results
// are ordered by distance, then by name. maxDistance < 1 disables the check.
func (r *Resolver) Similar(names []string, maxDistance int) []Pair {
	if maxDistance < 1 {
		return nil
	}

	uniq := make(map[string]string, len(names))
	for _, n := range names {
		k, display := r.Canonical(n)
		if _, ok := uniq[k]; !ok {
			uniq[k] = display
		}
	}
	keys := make([]string, 0, len(uniq))
	for k := range uniq {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	folded := make([]string, len(keys))
	for i, k := range keys {
		folded[i] = fold(uniq[k])
	}

	var out []Pair
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			d := levenshtein.ComputeDistance(folded[i], folded[j])
			if d <= maxDistance {
				out = append(out, Pair{A: uniq[keys[i]], B: uniq[keys[j]], Distance: d})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
