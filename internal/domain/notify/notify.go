// Package notify fans change events out to registered listeners.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/standings/internal/domain/model"
	"github.com/okian/standings/pkg/logger"
	"github.com/okian/standings/pkg/metrics"
)

// ErrListenerPanic wraps a panic recovered from a listener.
var ErrListenerPanic = errors.New("listener panicked")

// Listener receives the new snapshot of a competition together with the
// changes detected against the previous one.
type Listener interface {
	OnUpdate(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error

// OnUpdate calls f.
func (f ListenerFunc) OnUpdate(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) error {
	return f(ctx, competitionID, snap, changes)
}

// Named is implemented by listeners that want a stable label in logs and
// metrics.
type Named interface {
	Name() string
}

type subscription struct {
	token    string
	name     string
	listener Listener
}

// Notifier is a registry of listeners. Notify runs every listener
// synchronously, in subscription order, on the caller's goroutine.
type Notifier struct {
	mu     sync.RWMutex
	subs   []subscription
	logger logger.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger used to report listener failures.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates an empty Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{logger: logger.Default().Named("notifier")}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers l and returns the token needed to unsubscribe it.
func (n *Notifier) Subscribe(l Listener) string {
	if l == nil {
		return ""
	}
	token := uuid.NewString()
	name := fmt.Sprintf("%T", l)
	if nl, ok := l.(Named); ok {
		name = nl.Name()
	}

	n.mu.Lock()
	n.subs = append(n.subs, subscription{token: token, name: name, listener: l})
	count := len(n.subs)
	n.mu.Unlock()

	metrics.UpdateListenersRegistered(count)
	return token
}

// Unsubscribe removes the listener registered under token. It reports
// whether a listener was removed.
func (n *Notifier) Unsubscribe(token string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, s := range n.subs {
		if s.token != token {
			continue
		}
		subs := make([]subscription, 0, len(n.subs)-1)
		subs = append(subs, n.subs[:i]...)
		subs = append(subs, n.subs[i+1:]...)
		n.subs = subs
		metrics.UpdateListenersRegistered(len(n.subs))
		return true
	}
	return false
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Notify delivers one update to every listener. A listener that returns an
// error or panics is logged and counted; the remaining listeners still run.
// It returns the number of listeners that failed.
func (n *Notifier) Notify(ctx context.Context, competitionID string, snap model.Snapshot, changes []model.Change) int {
	n.mu.RLock()
	subs := n.subs
	n.mu.RUnlock()

	failed := 0
	for _, s := range subs {
		if err := deliver(ctx, s.listener, competitionID, snap, changes); err != nil {
			failed++
			metrics.RecordListenerError(s.name)
			n.logger.Error(ctx, "listener failed",
				logger.String("listener", s.name),
				logger.String("competition", competitionID),
				logger.Error(err),
			)
		}
	}
	return failed
}

func deliver(ctx context.Context, l Listener, competitionID string, snap model.Snapshot, changes []model.Change) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()
	return l.OnUpdate(ctx, competitionID, snap, changes)
}
