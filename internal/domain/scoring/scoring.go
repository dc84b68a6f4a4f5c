// Package scoring maps a leaderboard position to points.
//
// The default policy is exponential decay: first place earns Base points and
// every following position earns exp(-DecayRate) times the previous one, so
// top positions are rewarded heavily and the tail approaches zero. The
// linear policy (Base - position) is kept for leaderboards that were scored
// that way historically.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Scoring policy names accepted by New.
const (
	ModeExponential = "exponential"
	ModeLinear      = "linear"
)

// Defaults for the scoring policies.
const (
	DefaultExponentialBase = 36.0
	DefaultDecayRate       = 0.2
	DefaultLinearBase      = 30.0
)

// ErrUnknownMode is returned by New for an unsupported policy name.
var ErrUnknownMode = errors.New("unknown scoring mode")

// Scorer converts a 0-based rank position into points. Implementations are
// pure and safe for concurrent use.
type Scorer interface {
	Score(position int) float64
}

// Exponential implements base * exp(-decayRate * position).
type Exponential struct {
	Base      float64
	DecayRate float64
}

// Score returns the points for position. Negative positions score as 0.
func (e Exponential) Score(position int) float64 {
	if position < 0 {
		position = 0
	}
	return e.Base * math.Exp(-e.DecayRate*float64(position))
}

// Linear implements base - position.
type Linear struct {
	Base float64
}

// Score returns the points for position. Negative positions score as 0.
func (l Linear) Score(position int) float64 {
	if position < 0 {
		position = 0
	}
	return l.Base - float64(position)
}

// Option tunes the policy built by New.
type Option func(*params)

type params struct {
	base      float64
	baseSet   bool
	decayRate float64
}

// WithBase overrides the policy's base points. Non-positive values are ignored.
func WithBase(base float64) Option {
	return func(p *params) {
		if base > 0 {
			p.base = base
			p.baseSet = true
		}
	}
}

// WithDecayRate overrides the exponential decay rate. Non-positive values are ignored.
func WithDecayRate(rate float64) Option {
	return func(p *params) {
		if rate > 0 {
			p.decayRate = rate
		}
	}
}

// New builds the scorer for mode. An empty mode selects exponential decay.
func New(mode string, opts ...Option) (Scorer, error) {
	p := params{decayRate: DefaultDecayRate}
	for _, opt := range opts {
		opt(&p)
	}

	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeExponential:
		base := DefaultExponentialBase
		if p.baseSet {
			base = p.base
		}
		return Exponential{Base: base, DecayRate: p.decayRate}, nil
	case ModeLinear:
		base := DefaultLinearBase
		if p.baseSet {
			base = p.base
		}
		return Linear{Base: base}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
