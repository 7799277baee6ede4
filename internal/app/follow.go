package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cristianoliveira/dashsync/internal/colors"
	"github.com/cristianoliveira/dashsync/internal/dashboard"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/format"
	"github.com/cristianoliveira/dashsync/internal/notifications"
)

// DashboardFeed is the dashboard synchronizer as seen by follow and watch.
type DashboardFeed interface {
	Start(ctx context.Context) error
	Close() error
	State() domain.DashboardState
	Subscribe(fn dashboard.Observer) func()
	Nudge() bool
	Polling() bool
	LastHeartbeat() time.Time
}

// NotificationFeed is the notification synchronizer as seen by follow and watch.
type NotificationFeed interface {
	Start(ctx context.Context) error
	Close() error
	State() domain.NotificationState
	Subscribe(fn notifications.Observer) func()
	MarkAsRead(ctx context.Context, ids ...string) error
	Delete(ctx context.Context, id string) error
	IsDeleting(id string) bool
	Nudge() bool
}

// FollowOptions holds parameters for follow behavior.
type FollowOptions struct {
	Output io.Writer
	Now    func() time.Time
}

// FollowUseCase prints every dashboard and notification change until the
// context is cancelled.
type FollowUseCase struct {
	dashboard     DashboardFeed
	notifications NotificationFeed
}

// NewFollowUseCase creates a follow use-case.
func NewFollowUseCase(d DashboardFeed, n NotificationFeed) *FollowUseCase {
	if d == nil || n == nil {
		panic("NewFollowUseCase: synchronizer dependencies cannot be nil")
	}
	return &FollowUseCase{dashboard: d, notifications: n}
}

// Execute starts both synchronizers and blocks until ctx is done.
func (u *FollowUseCase) Execute(ctx context.Context, opts FollowOptions) error {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &followPrinter{out: opts.Output, now: opts.Now, seen: make(map[string]struct{})}

	// Subscribe first so the initial transitions are printed too.
	unsubDash := u.dashboard.Subscribe(p.dashboard)
	defer unsubDash()
	unsubNotif := u.notifications.Subscribe(p.notifications)
	defer unsubNotif()

	colors.Info("Following dashboard (Ctrl+C to stop)...")
	if err := u.dashboard.Start(ctx); err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	if err := u.notifications.Start(ctx); err != nil {
		_ = u.dashboard.Close()
		return fmt.Errorf("follow: %w", err)
	}

	<-ctx.Done()
	return errors.Join(u.dashboard.Close(), u.notifications.Close())
}

// followPrinter turns state changes into one line each. Observers of the two
// synchronizers may run concurrently.
type followPrinter struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time

	dashStatus domain.ConnectionStatus
	dashError  string
	dashStats  *domain.Stats

	notifStatus domain.ConnectionStatus
	notifError  string
	unread      int
	loaded      bool
	seen        map[string]struct{}
}

func (p *followPrinter) printf(stream, msg string, args ...any) {
	_, _ = fmt.Fprintf(p.out, "%s [%s] %s\n", p.now().Format(time.TimeOnly), stream, fmt.Sprintf(msg, args...))
}

func (p *followPrinter) dashboard(st domain.DashboardState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.ConnectionStatus != p.dashStatus {
		p.printf("dashboard", "connection %s -> %s", statusName(p.dashStatus), st.ConnectionStatus)
		p.dashStatus = st.ConnectionStatus
	}
	if st.Error != p.dashError {
		if st.Error != "" {
			p.printf("dashboard", "error: %s", st.Error)
		}
		p.dashError = st.Error
	}
	if st.Stats != nil && (p.dashStats == nil || *st.Stats != *p.dashStats) {
		s := *st.Stats
		p.printf("dashboard", "projects %d (active %d, completed %d) clients %d earned %s pending %s",
			s.TotalProjects, s.ActiveProjects, s.CompletedProjects, s.TotalClients,
			format.Money(s.TotalEarnings), format.Money(s.PendingPayments))
		p.dashStats = &s
	}
}

func (p *followPrinter) notifications(st domain.NotificationState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.ConnectionStatus != p.notifStatus {
		p.printf("notifications", "connection %s -> %s", statusName(p.notifStatus), st.ConnectionStatus)
		p.notifStatus = st.ConnectionStatus
	}
	if st.Error != p.notifError {
		if st.Error != "" {
			p.printf("notifications", "error: %s", st.Error)
		}
		p.notifError = st.Error
	}
	if st.Loading {
		return
	}

	// The first list is a baseline; later ones print only what is new.
	for i := len(st.Notifications) - 1; i >= 0; i-- {
		n := st.Notifications[i]
		if _, ok := p.seen[n.ID]; ok {
			continue
		}
		p.seen[n.ID] = struct{}{}
		if p.loaded && n.Unread {
			p.printf("notifications", "new %s: %s", n.Type, displayTitle(n))
		}
	}
	if !p.loaded || st.UnreadCount != p.unread {
		p.printf("notifications", "%d unread of %d", st.UnreadCount, len(st.Notifications))
		p.unread = st.UnreadCount
	}
	p.loaded = true
}

func statusName(s domain.ConnectionStatus) string {
	if s == "" {
		return "none"
	}
	return s.String()
}

func displayTitle(n domain.Notification) string {
	if n.Title == "" {
		return n.Message
	}
	return n.Title
}
