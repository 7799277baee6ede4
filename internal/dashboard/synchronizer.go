// Package dashboard keeps the dashboard statistics in sync with the server.
package dashboard

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/refreshbus"
	"github.com/cristianoliveira/dashsync/internal/stream"
	"github.com/cristianoliveira/dashsync/internal/syncer"
)

// Source loads the dashboard snapshot. *api.Client implements it.
type Source interface {
	DashboardStats(ctx context.Context) (domain.DashboardSnapshot, error)
}

// Observer receives every new state.
type Observer func(domain.DashboardState)

// Synchronizer owns the dashboard state.
type Synchronizer struct {
	core *syncer.Core[domain.DashboardSnapshot]
	bus  *refreshbus.Registry
	name string

	mu      sync.Mutex
	dispose func()
}

// New creates a synchronizer. bus may be nil.
func New(source Source, settings syncer.Settings, bus *refreshbus.Registry) *Synchronizer {
	if settings.Name == "" {
		settings.Name = "dashboard"
	}
	return &Synchronizer{
		core: syncer.New(source.DashboardStats, extract, settings),
		bus:  bus,
		name: settings.Name,
	}
}

func extract(msg stream.Message) (domain.DashboardSnapshot, bool) {
	if m, ok := msg.(stream.DashboardUpdate); ok {
		return m.Snapshot.Clone(), true
	}
	return domain.DashboardSnapshot{}, false
}

// Start connects the push channel, starts the fallback scheduler and joins
// the refresh bus.
func (s *Synchronizer) Start(ctx context.Context) error {
	if err := s.core.Start(ctx); err != nil {
		return err
	}
	if s.bus != nil {
		s.mu.Lock()
		s.dispose = s.bus.Subscribe(s.name, func(ctx context.Context, _ refreshbus.Reason) error {
			return s.Refresh(ctx)
		})
		s.mu.Unlock()
	}
	return nil
}

// Close leaves the refresh bus and stops all background work.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	dispose := s.dispose
	s.dispose = nil
	s.mu.Unlock()
	if dispose != nil {
		dispose()
	}
	return s.core.Close()
}

// Refresh refetches the dashboard. On failure the last good data stays in
// place and the error is surfaced in State().Error.
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

// LastHeartbeat returns when the server last signalled liveness.
func (s *Synchronizer) LastHeartbeat() time.Time {
	return s.core.LastHeartbeat()
}

// State returns a copy of the current state.
func (s *Synchronizer) State() domain.DashboardState {
	return toState(s.core.State())
}

// Subscribe registers fn for state changes and returns its disposer.
func (s *Synchronizer) Subscribe(fn Observer) func() {
	return s.core.Subscribe(func(st syncer.State[domain.DashboardSnapshot]) {
		fn(toState(st))
	})
}

func toState(st syncer.State[domain.DashboardSnapshot]) domain.DashboardState {
	out := domain.DashboardState{
		Loading:          st.Loading,
		Error:            st.Err,
		ConnectionStatus: st.Status,
		Version:          st.Version,
		UpdatedAt:        st.UpdatedAt,
	}
	if st.HasData {
		stats := st.Data.Stats
		out.Stats = &stats
		out.RecentProjects = slices.Clone(st.Data.RecentProjects)
		out.ProjectsByStatus = slices.Clone(st.Data.ProjectsByStatus)
		out.MonthlyEarnings = slices.Clone(st.Data.MonthlyEarnings)
	}
	return out
}
