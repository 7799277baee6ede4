package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianoliveira/dashsync/internal/dashboard"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/notifications"
	"github.com/cristianoliveira/dashsync/internal/refreshbus"
)

// lifecycle records Start and Close calls of a fake synchronizer.
type lifecycle struct {
	mu       sync.Mutex
	started  int
	closed   int
	startErr error
}

func (l *lifecycle) Start(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started++
	return l.startErr
}

func (l *lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed++
	return nil
}

func (l *lifecycle) counts() (started, closed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started, l.closed
}

type stubDashboard struct{ lifecycle }

func (s *stubDashboard) State() domain.DashboardState        { return domain.DashboardState{} }
func (s *stubDashboard) Subscribe(dashboard.Observer) func() { return func() {} }
func (s *stubDashboard) Nudge() bool                         { return false }
func (s *stubDashboard) Polling() bool                       { return false }
func (s *stubDashboard) LastHeartbeat() time.Time            { return time.Time{} }

type stubNotifications struct{ lifecycle }

func (s *stubNotifications) State() domain.NotificationState             { return domain.NotificationState{} }
func (s *stubNotifications) Subscribe(notifications.Observer) func()     { return func() {} }
func (s *stubNotifications) MarkAsRead(context.Context, ...string) error { return nil }
func (s *stubNotifications) Delete(context.Context, string) error        { return nil }
func (s *stubNotifications) IsDeleting(string) bool                      { return false }
func (s *stubNotifications) Nudge() bool                                 { return false }

func newStubWatch(run func(ctx context.Context) error) (*WatchUseCase, *stubDashboard, *stubNotifications) {
	d, n := &stubDashboard{}, &stubNotifications{}
	uc := NewWatchUseCase(d, n, refreshbus.NewRegistry())
	uc.run = func(ctx context.Context, _ ...tea.ProgramOption) error {
		return run(ctx)
	}
	return uc, d, n
}

func TestWatchUseCaseQuitStopsEverything(t *testing.T) {
	metricsStopped := make(chan struct{})
	uc, d, n := newStubWatch(func(context.Context) error { return nil })

	err := uc.Execute(context.Background(), WatchOptions{
		ServeMetrics: func(ctx context.Context) error {
			<-ctx.Done()
			close(metricsStopped)
			return nil
		},
	})
	require.NoError(t, err)

	select {
	case <-metricsStopped:
	case <-time.After(time.Second):
		t.Fatal("metrics server kept running after quit")
	}
	started, closed := d.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, closed)
	started, closed = n.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, closed)
}

func TestWatchUseCaseMetricsFailureEndsDashboard(t *testing.T) {
	uc, _, _ := newStubWatch(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := uc.Execute(context.Background(), WatchOptions{
		ServeMetrics: func(context.Context) error { return errors.New("metrics: address in use") },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestWatchUseCaseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	uc, _, _ := newStubWatch(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	assert.NoError(t, uc.Execute(ctx, WatchOptions{}))
}

func TestNewWatchUseCaseRequiresBus(t *testing.T) {
	assert.Panics(t, func() { NewWatchUseCase(&stubDashboard{}, &stubNotifications{}, nil) })
}

func TestWatchUseCaseStartFailure(t *testing.T) {
	uc, d, n := newStubWatch(func(context.Context) error {
		t.Fatal("dashboard should not run")
		return nil
	})
	n.startErr = errors.New("boom")

	err := uc.Execute(context.Background(), WatchOptions{})
	require.Error(t, err)
	_, closed := d.counts()
	assert.Equal(t, 1, closed)
}
