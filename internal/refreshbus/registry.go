// Package refreshbus lets commands ask every live synchronizer to refetch
// without holding references to them.
package refreshbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/metrics"
)

// Reason says why a refresh was requested. It is informational only.
type Reason string

const (
	ReasonManual           Reason = "manual"
	ReasonProjectCreated   Reason = "project-created"
	ReasonProjectUpdated   Reason = "project-updated"
	ReasonProjectCompleted Reason = "project-completed"
)

// Default hint token bucket.
const (
	DefaultHintRate  = 2
	DefaultHintBurst = 5
)

// RefreshFunc refetches the subscriber's state.
type RefreshFunc func(ctx context.Context, reason Reason) error

type subscription struct {
	name string
	fn   RefreshFunc
}

// Registry is an ordered set of refresh subscribers.
type Registry struct {
	mu     sync.Mutex
	subs   map[int]subscription
	order  []int
	nextID int

	limiter *rate.Limiter
	logger  logging.Logger
	metrics *metrics.Recorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithHintLimit sets the hint token bucket.
func WithHintLimit(r rate.Limit, burst int) Option {
	return func(reg *Registry) { reg.limiter = rate.NewLimiter(r, burst) }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(reg *Registry) { reg.logger = l }
}

// WithMetrics counts triggers on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(reg *Registry) { reg.metrics = m }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{
		subs:    make(map[int]subscription),
		limiter: rate.NewLimiter(DefaultHintRate, DefaultHintBurst),
	}
	for _, opt := range opts {
		opt(reg)
	}
	reg.logger = logging.Component(reg.logger, "refreshbus")
	return reg
}

// Subscribe adds fn under name. The returned disposer removes it and may be
// called more than once.
func (r *Registry) Subscribe(name string, fn RefreshFunc) (dispose func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.subs[id] = subscription{name: name, fn: fn}
	r.order = append(r.order, id)
	r.logger.Debug("subscriber added", "name", name)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			r.order = removeID(r.order, id)
			r.logger.Debug("subscriber removed", "name", name)
		})
	}
}

// Len returns the number of subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Trigger runs every subscriber in registration order, waiting for each.
// Failures do not stop the remaining subscribers; they are joined into the
// returned error. Without subscribers Trigger does nothing.
func (r *Registry) Trigger(ctx context.Context, reason Reason) error {
	r.mu.Lock()
	subs := make([]subscription, 0, len(r.order))
	for _, id := range r.order {
		subs = append(subs, r.subs[id])
	}
	r.mu.Unlock()

	if len(subs) == 0 {
		r.logger.Debug("refresh requested without subscribers", "reason", reason)
		return nil
	}
	r.metrics.RefreshTriggered(string(reason))
	r.logger.Info("refresh triggered", "reason", reason, "subscribers", len(subs))

	var errs []error
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := sub.fn(ctx, reason); err != nil {
			r.logger.Warn("refresh failed", "name", sub.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	return errors.Join(errs...)
}

// Hint forwards a best-effort refresh request to Trigger. Hints beyond the
// token bucket are dropped; Hint then returns false and a nil error.
func (r *Registry) Hint(ctx context.Context, reason Reason) (bool, error) {
	if !r.limiter.Allow() {
		r.logger.Debug("hint dropped by rate limit", "reason", reason)
		return false, nil
	}
	return true, r.Trigger(ctx, reason)
}

func removeID(ids []int, id int) []int {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
