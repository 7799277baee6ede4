package notifications

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cristianoliveira/dashsync/internal/api"
	"github.com/cristianoliveira/dashsync/internal/connection"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/refreshbus"
	"github.com/cristianoliveira/dashsync/internal/stream"
	"github.com/cristianoliveira/dashsync/internal/stream/streamtest"
	"github.com/cristianoliveira/dashsync/internal/syncer"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func note(id string, unread bool, age time.Duration) domain.Notification {
	return domain.Notification{
		ID:      id,
		Title:   "Notification " + id,
		Message: "message " + id,
		Time:    base.Add(-age),
		Unread:  unread,
		Type:    domain.TypeInfo,
	}
}

func settings(url string) syncer.Settings {
	if url == "" {
		url = "http://127.0.0.1:1/stream"
	}
	return syncer.Settings{
		StreamURL: url,
		Scheduler: connection.Config{PollInterval: time.Hour},
	}
}

// loaded returns a synchronizer whose state holds list.
func loaded(t *testing.T, src Source, opts ...Option) *Synchronizer {
	t.Helper()
	s := New(src, settings(""), nil, opts...)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Refresh(context.Background()))
	return s
}

func ids(list []domain.Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

func TestMarkAsRead_SingleEntry(t *testing.T) {
	src := new(MockSource)
	src.On("Notifications", mock.Anything).Return([]domain.Notification{note("1", true, 0)}, nil)
	src.On("MarkNotificationsRead", mock.Anything, []string{"1"}).Return(nil)
	s := loaded(t, src)
	require.Equal(t, 1, s.State().UnreadCount)

	require.NoError(t, s.MarkAsRead(context.Background(), "1"))

	st := s.State()
	require.Len(t, st.Notifications, 1)
	assert.Equal(t, "1", st.Notifications[0].ID)
	assert.False(t, st.Notifications[0].Unread)
	assert.Equal(t, 0, st.UnreadCount)
	src.AssertExpectations(t)
}

func TestMarkAsRead_AllTwiceIsIdempotent(t *testing.T) {
	src := new(MockSource)
	src.On("Notifications", mock.Anything).Return([]domain.Notification{
		note("1", true, 0), note("2", true, time.Minute), note("3", false, time.Hour),
	}, nil)
	src.On("MarkNotificationsRead", mock.Anything, []string(nil)).Return(nil)
	s := loaded(t, src)

	for range 2 {
		require.NoError(t, s.MarkAsRead(context.Background()))
		st := s.State()
		assert.Equal(t, 0, st.UnreadCount)
		assert.Zero(t, domain.CountUnread(st.Notifications))
	}
	src.AssertNumberOfCalls(t, "MarkNotificationsRead", 2)
}

func TestMarkAsRead_RollsBackOnFailure(t *testing.T) {
	src := new(MockSource)
	src.On("Notifications", mock.Anything).Return([]domain.Notification{
		note("1", true, 0), note("2", false, time.Minute), note("3", true, time.Hour),
	}, nil)
	boom := api.NewHTTPError(500, "/api/notifications", "Internal Server Error")
	src.On("MarkNotificationsRead", mock.Anything, []string{"1", "2"}).Return(boom)
	s := loaded(t, src)

	err := s.MarkAsRead(context.Background(), "1", "2")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	st := s.State()
	unread := map[string]bool{}
	for _, n := range st.Notifications {
		unread[n.ID] = n.Unread
	}
	assert.Equal(t, map[string]bool{"1": true, "2": false, "3": true}, unread)
	assert.Equal(t, 2, st.UnreadCount)
}

// hookSource runs hooks inside the mutation calls.
type hookSource struct {
	list     []domain.Notification
	onMark   func() error
	onDelete func(id string) error
}

func (h *hookSource) Notifications(context.Context) ([]domain.Notification, error) {
	return slices.Clone(h.list), nil
}

func (h *hookSource) MarkNotificationsRead(_ context.Context, _ []string) error {
	if h.onMark != nil {
		return h.onMark()
	}
	return nil
}

func (h *hookSource) DeleteNotification(_ context.Context, id string) error {
	if h.onDelete != nil {
		return h.onDelete(id)
	}
	return nil
}

func TestMarkAsRead_RollbackSkipsEntriesThatChangedMeanwhile(t *testing.T) {
	src := &hookSource{list: []domain.Notification{note("1", true, 0), note("2", true, time.Minute)}}
	s := loaded(t, src)

	src.onMark = func() error {
		// a push arrives while the request is in flight: 2 is gone
		s.core.Mutate(func(list []domain.Notification) ([]domain.Notification, bool) {
			return domain.WithoutNotification(list, "2"), true
		})
		return errors.New("network down")
	}

	require.Error(t, s.MarkAsRead(context.Background()))
	st := s.State()
	assert.Equal(t, []string{"1"}, ids(st.Notifications))
	assert.True(t, st.Notifications[0].Unread)
	assert.Equal(t, 1, st.UnreadCount)
}

func TestDelete_HidesImmediatelyAndRemovesOnSuccess(t *testing.T) {
	src := &hookSource{list: []domain.Notification{note("1", true, 0), note("2", true, time.Minute)}}
	s := loaded(t, src)

	var during domain.NotificationState
	var deleting bool
	src.onDelete = func(id string) error {
		during = s.State()
		deleting = s.IsDeleting(id)
		return nil
	}

	require.NoError(t, s.Delete(context.Background(), "1"))

	assert.Equal(t, []string{"2"}, ids(during.Notifications))
	assert.Equal(t, 1, during.UnreadCount)
	assert.True(t, deleting)

	st := s.State()
	assert.Equal(t, []string{"2"}, ids(st.Notifications))
	assert.Equal(t, 1, st.UnreadCount)
	assert.False(t, s.IsDeleting("1"))
}

func TestDelete_RollsBackOnFailure(t *testing.T) {
	src := &hookSource{
		list:     []domain.Notification{note("1", true, 0), note("2", false, time.Minute)},
		onDelete: func(string) error { return errors.New("HTTP 500") },
	}
	s := loaded(t, src)

	err := s.Delete(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")

	st := s.State()
	assert.Equal(t, []string{"1", "2"}, ids(st.Notifications))
	assert.Equal(t, 1, st.UnreadCount)
	assert.False(t, s.IsDeleting("1"))
}

func TestDelete_NotFoundCountsAsSuccess(t *testing.T) {
	src := &hookSource{
		list:     []domain.Notification{note("1", true, 0)},
		onDelete: func(string) error { return api.NewHTTPError(404, "/api/notifications/1", "Not Found") },
	}
	s := loaded(t, src)

	require.NoError(t, s.Delete(context.Background(), "1"))
	assert.Empty(t, s.State().Notifications)
}

func TestDelete_InFlightOrUnknownIsNoop(t *testing.T) {
	release := make(chan struct{})
	calls := 0
	src := &hookSource{
		list: []domain.Notification{note("1", true, 0)},
		onDelete: func(string) error {
			calls++
			<-release
			return nil
		},
	}
	s := loaded(t, src)

	done := make(chan error, 1)
	go func() { done <- s.Delete(context.Background(), "1") }()
	assert.Eventually(t, func() bool { return s.IsDeleting("1") }, waitFor, tick)

	assert.NoError(t, s.Delete(context.Background(), "1"))
	assert.NoError(t, s.Delete(context.Background(), "missing"))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)
}

func TestUnreadCountConsistency_RandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var list []domain.Notification
	for i := range 12 {
		list = append(list, note(fmt.Sprint(i), rng.IntN(2) == 0, time.Duration(i)*time.Minute))
	}
	src := &hookSource{
		list: list,
		onMark: func() error {
			if rng.IntN(3) == 0 {
				return errors.New("flaky")
			}
			return nil
		},
		onDelete: func(string) error {
			if rng.IntN(3) == 0 {
				return errors.New("flaky")
			}
			return nil
		},
	}
	s := loaded(t, src)

	for range 200 {
		id := fmt.Sprint(rng.IntN(14))
		switch rng.IntN(3) {
		case 0:
			_ = s.MarkAsRead(context.Background(), id)
		case 1:
			_ = s.MarkAsRead(context.Background())
		default:
			_ = s.Delete(context.Background(), id)
		}
		st := s.State()
		require.Equal(t, domain.CountUnread(st.Notifications), st.UnreadCount)
		require.GreaterOrEqual(t, st.UnreadCount, 0)
	}
}

func TestPushUpdateDuringDeleteStaysHidden(t *testing.T) {
	srv := streamtest.NewServer(t)
	release := make(chan struct{})
	src := &hookSource{
		list: []domain.Notification{note("1", true, 0), note("2", true, time.Minute)},
		onDelete: func(string) error {
			<-release
			return errors.New("rejected")
		},
	}
	s := New(src, settings(srv.URL), nil)
	defer s.Close()
	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(s.State().Notifications) == 2 }, waitFor, tick)

	done := make(chan error, 1)
	go func() { done <- s.Delete(context.Background(), "1") }()
	assert.Eventually(t, func() bool { return s.IsDeleting("1") }, waitFor, tick)

	srv.Send(stream.NotificationsUpdate{
		Notifications: []domain.Notification{note("0", true, -time.Minute), note("1", true, 0), note("2", true, time.Minute)},
		UnreadCount:   3,
	})
	assert.Eventually(t, func() bool { return slices.Equal([]string{"0", "2"}, ids(s.State().Notifications)) }, waitFor, tick)
	assert.Equal(t, 2, s.State().UnreadCount)

	close(release)
	require.Error(t, <-done)
	assert.Equal(t, []string{"0", "1", "2"}, ids(s.State().Notifications))
	assert.Equal(t, 3, s.State().UnreadCount)
}

func TestPushUpdateRecomputesUnreadCount(t *testing.T) {
	srv := streamtest.NewServer(t)
	src := &hookSource{}
	s := New(src, settings(srv.URL), nil)
	defer s.Close()
	require.NoError(t, s.Start(context.Background()))
	<-srv.Opened()

	srv.Send(stream.NotificationsUpdate{
		Notifications: []domain.Notification{note("1", true, 0), note("2", false, time.Minute)},
		UnreadCount:   7,
	})
	assert.Eventually(t, func() bool { return len(s.State().Notifications) == 2 }, waitFor, tick)
	assert.Equal(t, 1, s.State().UnreadCount)
}

func TestDesktopForwardingOfNewUnread(t *testing.T) {
	srv := streamtest.NewServer(t)
	desktop := new(MockDesktop)
	desktop.On("Available").Return(true)
	notified := make(chan struct{}, 1)
	desktop.On("Notify", mock.Anything, "Invoice paid", "Acme paid #42").Return(nil).Once().
		Run(func(mock.Arguments) { notified <- struct{}{} })

	src := &hookSource{list: []domain.Notification{note("1", true, 0)}}
	s := New(src, settings(srv.URL), nil, WithDesktop(desktop))
	defer s.Close()
	require.True(t, s.RequestDesktopPermission())
	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(s.State().Notifications) == 1 }, waitFor, tick)

	paid := note("2", true, -time.Minute)
	paid.Title, paid.Message, paid.Type = "Invoice paid", "Acme paid #42", domain.TypeInvoice
	read := note("3", false, time.Hour)
	srv.Send(stream.NotificationsUpdate{Notifications: []domain.Notification{paid, note("1", true, 0), read}})

	select {
	case <-notified:
	case <-time.After(waitFor):
		t.Fatal("desktop notification not sent")
	}
	require.NoError(t, s.Close())
	desktop.AssertExpectations(t)
}

func TestRequestDesktopPermission(t *testing.T) {
	s := New(&hookSource{}, settings(""), nil)
	defer s.Close()
	assert.False(t, s.RequestDesktopPermission())

	desktop := new(MockDesktop)
	desktop.On("Available").Return(false)
	s2 := New(&hookSource{}, settings(""), nil, WithDesktop(desktop))
	defer s2.Close()
	assert.False(t, s2.RequestDesktopPermission())
}

func TestRefreshBusAndClose(t *testing.T) {
	srv := streamtest.NewServer(t)
	srv.Greet(false)
	src := &hookSource{list: []domain.Notification{note("1", true, 0)}}
	bus := refreshbus.NewRegistry()
	s := New(src, settings(srv.URL), bus)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, bus.Trigger(context.Background(), refreshbus.ReasonManual))
	assert.Equal(t, 1, s.State().UnreadCount)

	require.NoError(t, s.Close())
	assert.Zero(t, bus.Len())
	assert.ErrorIs(t, s.Refresh(context.Background()), syncer.ErrClosed)
	assert.NoError(t, s.Delete(context.Background(), "1"))
}
