// Package notifications keeps the notification list in sync with the server
// and applies optimistic mark-as-read and delete with rollback.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/metrics"
	"github.com/cristianoliveira/dashsync/internal/refreshbus"
	"github.com/cristianoliveira/dashsync/internal/stream"
	"github.com/cristianoliveira/dashsync/internal/syncer"
)

// Source is the notification REST API. *api.Client implements it.
type Source interface {
	Notifications(ctx context.Context) ([]domain.Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []string) error
	DeleteNotification(ctx context.Context, id string) error
}

// DesktopNotifier shows native desktop notifications.
type DesktopNotifier interface {
	Available() bool
	Notify(ctx context.Context, title, body string) error
}

// Observer receives every new state.
type Observer func(domain.NotificationState)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithDesktop forwards newly arrived unread notifications to n once
// RequestDesktopPermission succeeded.
func WithDesktop(n DesktopNotifier) Option {
	return func(s *Synchronizer) { s.desktop = n }
}

// Synchronizer owns the notification state.
type Synchronizer struct {
	core    *syncer.Core[[]domain.Notification]
	source  Source
	bus     *refreshbus.Registry
	name    string
	logger  logging.Logger
	metrics *metrics.Recorder

	desktop        DesktopNotifier
	desktopGranted atomic.Bool
	desktopWG      sync.WaitGroup
	life           context.Context
	kill           context.CancelFunc

	mu       sync.Mutex
	deleting map[string]struct{}
	seen     map[string]struct{}
	seeded   bool
	closed   bool
	dispose  []func()
}

// New creates a synchronizer. bus may be nil.
func New(source Source, settings syncer.Settings, bus *refreshbus.Registry, opts ...Option) *Synchronizer {
	if settings.Name == "" {
		settings.Name = "notifications"
	}
	life, kill := context.WithCancel(context.Background())
	s := &Synchronizer{
		source:   source,
		bus:      bus,
		name:     settings.Name,
		logger:   logging.Component(settings.Logger, "notifications"),
		metrics:  settings.Metrics,
		life:     life,
		kill:     kill,
		deleting: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.core = syncer.New(source.Notifications, extract, settings)
	s.dispose = append(s.dispose, s.core.Subscribe(s.forwardNew))
	return s
}

func extract(msg stream.Message) ([]domain.Notification, bool) {
	if m, ok := msg.(stream.NotificationsUpdate); ok {
		return slices.Clone(m.Notifications), true
	}
	return nil, false
}

// Start connects the push channel, starts the fallback scheduler and joins
// the refresh bus.
func (s *Synchronizer) Start(ctx context.Context) error {
	if err := s.core.Start(ctx); err != nil {
		return err
	}
	if s.bus != nil {
		dispose := s.bus.Subscribe(s.name, func(ctx context.Context, _ refreshbus.Reason) error {
			return s.Refresh(ctx)
		})
		s.mu.Lock()
		s.dispose = append(s.dispose, dispose)
		s.mu.Unlock()
	}
	return nil
}

// Close leaves the refresh bus and stops all background work.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	s.closed = true
	dispose := s.dispose
	s.dispose = nil
	s.mu.Unlock()

	for _, fn := range dispose {
		fn()
	}
	err := s.core.Close()
	s.kill()
	s.desktopWG.Wait()
	return err
}

// Refresh refetches the list. On failure the last good list stays in place
// and the error is surfaced in State().Error.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	return s.core.Refresh(ctx)
}

// Nudge asks for a reconnect, e.g. when the terminal regains focus.
func (s *Synchronizer) Nudge() bool {
	return s.core.Nudge()
}

// Polling reports whether fallback polling is active.
func (s *Synchronizer) Polling() bool {
	return s.core.Polling()
}

// MarkAsRead marks the given notifications read, or all of them when ids is
// empty. The local state changes before the request is sent; if the server
// rejects it, exactly the entries flipped here are made unread again and the
// error is returned.
func (s *Synchronizer) MarkAsRead(ctx context.Context, ids ...string) error {
	var flipped []string
	s.core.Mutate(func(list []domain.Notification) ([]domain.Notification, bool) {
		next, changed := domain.MarkRead(list, ids)
		flipped = changed
		return next, len(changed) > 0
	})

	if err := s.source.MarkNotificationsRead(ctx, ids); err != nil {
		if len(flipped) > 0 {
			s.core.Mutate(func(list []domain.Notification) ([]domain.Notification, bool) {
				next, restored := domain.MarkUnread(list, flipped)
				return next, len(restored) > 0
			})
			s.metrics.Rollback(s.name, "mark_read")
			s.logger.Warn("mark as read rolled back", "ids", flipped, "error", err)
		}
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// Delete hides the notification at once and deletes it on the server. On
// failure it becomes visible again. Deleting an id that is already being
// deleted or is not visible does nothing.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, busy := s.deleting[id]; busy || s.closed {
		s.mu.Unlock()
		return nil
	}
	if _, ok := domain.FindNotification(s.core.State().Data, id); !ok {
		s.mu.Unlock()
		return nil
	}
	s.deleting[id] = struct{}{}
	s.mu.Unlock()
	s.core.Touch()

	err := s.source.DeleteNotification(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug("notification already gone", "id", id)
		err = nil
	}
	if err == nil {
		s.core.Mutate(func(list []domain.Notification) ([]domain.Notification, bool) {
			next := domain.WithoutNotification(list, id)
			return next, len(next) != len(list)
		})
	}

	s.mu.Lock()
	delete(s.deleting, id)
	s.mu.Unlock()
	s.core.Touch()

	if err != nil {
		s.metrics.Rollback(s.name, "delete")
		s.logger.Warn("delete rolled back", "id", id, "error", err)
		return fmt.Errorf("failed to delete notification %s: %w", id, err)
	}
	return nil
}

// IsDeleting reports whether a delete of id is in flight.
func (s *Synchronizer) IsDeleting(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.deleting[id]
	return ok
}

// RequestDesktopPermission asks the host whether native notifications can be
// shown and remembers the answer.
func (s *Synchronizer) RequestDesktopPermission() bool {
	granted := s.desktop != nil && s.desktop.Available()
	s.desktopGranted.Store(granted)
	s.logger.Info("desktop notifications", "granted", granted)
	return granted
}

// State returns a copy of the visible state.
func (s *Synchronizer) State() domain.NotificationState {
	return s.toState(s.core.State())
}

// Subscribe registers fn for state changes and returns its disposer.
func (s *Synchronizer) Subscribe(fn Observer) func() {
	return s.core.Subscribe(func(st syncer.State[[]domain.Notification]) {
		fn(s.toState(st))
	})
}

// toState hides in-flight deletes and recomputes the unread count from what
// is left.
func (s *Synchronizer) toState(st syncer.State[[]domain.Notification]) domain.NotificationState {
	s.mu.Lock()
	visible := make([]domain.Notification, 0, len(st.Data))
	for _, n := range st.Data {
		if _, hidden := s.deleting[n.ID]; !hidden {
			visible = append(visible, n)
		}
	}
	s.mu.Unlock()

	return domain.NotificationState{
		Notifications:    visible,
		UnreadCount:      domain.CountUnread(visible),
		Loading:          st.Loading,
		Error:            st.Err,
		ConnectionStatus: st.Status,
		Version:          st.Version,
		UpdatedAt:        st.UpdatedAt,
	}
}

// forwardNew sends unread notifications not seen before to the desktop. The
// first loaded list only seeds the seen set.
func (s *Synchronizer) forwardNew(st syncer.State[[]domain.Notification]) {
	if !st.HasData {
		return
	}
	s.mu.Lock()
	var fresh []domain.Notification
	for _, n := range st.Data {
		if _, ok := s.seen[n.ID]; ok {
			continue
		}
		s.seen[n.ID] = struct{}{}
		if s.seeded && n.Unread {
			fresh = append(fresh, n)
		}
	}
	s.seeded = true
	forward := len(fresh) > 0 && !s.closed && s.desktopGranted.Load()
	if forward {
		s.desktopWG.Add(1)
	}
	s.mu.Unlock()

	if !forward {
		return
	}
	go func() {
		defer s.desktopWG.Done()
		for _, n := range fresh {
			if err := s.desktop.Notify(s.life, n.Title, n.Message); err != nil {
				s.logger.Warn("desktop notification failed", "id", n.ID, "error", err)
			}
		}
	}()
}
