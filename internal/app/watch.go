package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/cristianoliveira/dashsync/internal/refreshbus"
	"github.com/cristianoliveira/dashsync/internal/tui"
)

// WatchOptions holds parameters for the watch dashboard.
type WatchOptions struct {
	// ServeMetrics runs alongside the dashboard when set and must return
	// once its context is done.
	ServeMetrics func(ctx context.Context) error
	// ProgramOptions are passed to the bubbletea program.
	ProgramOptions []tea.ProgramOption
}

// WatchUseCase runs the interactive dashboard.
type WatchUseCase struct {
	dashboard     DashboardFeed
	notifications NotificationFeed
	bus           *refreshbus.Registry
	run           func(ctx context.Context, opts ...tea.ProgramOption) error
}

// NewWatchUseCase creates a watch use-case. The refresh key goes through bus,
// which both synchronizers join when they start.
func NewWatchUseCase(d DashboardFeed, n NotificationFeed, bus *refreshbus.Registry) *WatchUseCase {
	if d == nil || n == nil {
		panic("NewWatchUseCase: synchronizer dependencies cannot be nil")
	}
	if bus == nil {
		panic("NewWatchUseCase: refresh bus cannot be nil")
	}
	u := &WatchUseCase{
		dashboard:     d,
		notifications: n,
		bus:           bus,
	}
	u.run = func(ctx context.Context, opts ...tea.ProgramOption) error {
		return tui.Run(ctx, u.dashboard, u.notifications, u.bus, opts...)
	}
	return u
}

// Execute starts both synchronizers and shows the dashboard until the user
// quits or ctx is cancelled. Everything started here is stopped before it
// returns.
func (u *WatchUseCase) Execute(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := u.dashboard.Start(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer u.dashboard.Close()
	if err := u.notifications.Start(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer u.notifications.Close()

	g, gctx := errgroup.WithContext(ctx)
	if opts.ServeMetrics != nil {
		g.Go(func() error { return opts.ServeMetrics(gctx) })
	}
	g.Go(func() error {
		// Quitting the dashboard ends the whole group.
		defer cancel()
		return u.run(gctx, opts.ProgramOptions...)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
