//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianoliveira/dashsync/internal/app"
	"github.com/cristianoliveira/dashsync/internal/connection"
	"github.com/cristianoliveira/dashsync/internal/devserver"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/storage/sqlite"
)

const waitFor = 5 * time.Second

type env struct {
	srv   *devserver.Server
	store *sqlite.Storage
	rt    *app.Runtime
}

func fastPolling(reconnect bool) connection.Config {
	return connection.Config{
		PollInterval:     100 * time.Millisecond,
		ReconnectEnabled: reconnect,
		ReconnectInitial: 50 * time.Millisecond,
		ReconnectMax:     200 * time.Millisecond,
	}
}

func setup(t *testing.T, sched connection.Config) *env {
	t.Helper()

	store, err := sqlite.NewStorage(filepath.Join(t.TempDir(), "integration.db"))
	require.NoError(t, err)
	var seq atomic.Int64
	srv := devserver.NewServer(store,
		devserver.WithHeartbeat(50*time.Millisecond),
		devserver.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.CloseClientConnections()
		ts.Close()
		_ = store.Close()
	})

	rt, err := app.NewRuntime(app.Settings{
		ServerURL:               ts.URL,
		DashboardStreamPath:     "/api/dashboard/stream",
		NotificationsStreamPath: "/api/notifications/stream",
		RequestTimeout:          5 * time.Second,
		Scheduler:               sched,
		HintRate:                100,
		HintBurst:               10,
	}, logging.Nop())
	require.NoError(t, err)
	return &env{srv: srv, store: store, rt: rt}
}

func TestPushUpdatesReachBothSynchronizers(t *testing.T) {
	e := setup(t, fastPolling(true))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dash := e.rt.Dashboard()
	notif := e.rt.Notifications()
	require.NoError(t, dash.Start(ctx))
	defer dash.Close()
	require.NoError(t, notif.Start(ctx))
	defer notif.Close()

	require.Eventually(t, func() bool {
		d, n := dash.State(), notif.State()
		return d.ConnectionStatus == domain.StatusConnected && d.Stats != nil &&
			n.ConnectionStatus == domain.StatusConnected
	}, waitFor, 10*time.Millisecond)

	_, err := e.rt.Client.CreateProject(ctx, domain.NewProject{Name: "Website", ClientName: "Acme", Budget: 900})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		st := dash.State()
		return st.Stats != nil && st.Stats.TotalProjects == 1 && len(st.RecentProjects) == 1
	}, waitFor, 10*time.Millisecond)

	_, err = e.store.AddNotification(ctx, domain.Notification{
		ID: "n-1", Title: "Invoice paid", Time: time.Now().UTC(), Unread: true, Type: domain.TypeInvoice,
	})
	require.NoError(t, err)
	require.NoError(t, notif.Refresh(ctx))
	require.Equal(t, 1, notif.State().UnreadCount)

	require.NoError(t, notif.MarkAsRead(ctx, "n-1"))
	assert.Equal(t, 0, notif.State().UnreadCount)

	list, err := e.store.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Unread)

	require.NoError(t, notif.Delete(ctx, "n-1"))
	assert.Empty(t, notif.State().Notifications)
}

func TestPollingTakesOverWhenStreamsClose(t *testing.T) {
	e := setup(t, fastPolling(false))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notif := e.rt.Notifications()
	require.NoError(t, notif.Start(ctx))
	defer notif.Close()
	require.Eventually(t, func() bool {
		return notif.State().ConnectionStatus == domain.StatusConnected
	}, waitFor, 10*time.Millisecond)

	e.srv.Close()
	require.Eventually(t, notif.Polling, waitFor, 10*time.Millisecond)
	assert.NotEqual(t, domain.StatusConnected, notif.State().ConnectionStatus)

	_, err := e.store.AddNotification(ctx, domain.Notification{
		ID: "late", Title: "Deadline tomorrow", Time: time.Now().UTC(), Unread: true, Type: domain.TypeDeadline,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		st := notif.State()
		return len(st.Notifications) == 1 && st.Notifications[0].ID == "late"
	}, waitFor, 20*time.Millisecond)
}

func TestRefreshBusReachesEverySubscriber(t *testing.T) {
	e := setup(t, connection.Config{PollInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dash := e.rt.Dashboard()
	require.NoError(t, dash.Start(ctx))
	defer dash.Close()
	require.Eventually(t, func() bool { return dash.State().Stats != nil }, waitFor, 10*time.Millisecond)

	// Stop the streams so only an explicit refresh can deliver the change.
	e.srv.Close()
	_, err := e.store.CreateProject(ctx, "p-1", domain.NewProject{Name: "Logo", ClientName: "Globex"})
	require.NoError(t, err)

	uc := app.NewProjectUseCase(e.rt.Client, e.rt.Bus)
	_, err = uc.Complete(ctx, "p-1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		st := dash.State()
		return st.Stats != nil && st.Stats.CompletedProjects == 1
	}, waitFor, 10*time.Millisecond)
}
