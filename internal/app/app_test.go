package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cristianoliveira/dashsync/internal/api"
	"github.com/cristianoliveira/dashsync/internal/devserver"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/storage/sqlite"
)

type testServer struct {
	url    string
	client *api.Client
	store  *sqlite.Storage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.NewStorage(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)

	var seq atomic.Int64
	srv := devserver.NewServer(store, devserver.WithIDGenerator(func() string {
		return fmt.Sprintf("id-%d", seq.Add(1))
	}))
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.CloseClientConnections()
		ts.Close()
		_ = store.Close()
	})

	client, err := api.NewClient(ts.URL)
	require.NoError(t, err)
	return &testServer{url: ts.URL, client: client, store: store}
}

func (s *testServer) addNotification(t *testing.T, id, title string, unread bool, at time.Time) {
	t.Helper()
	_, err := s.store.AddNotification(context.Background(), domain.Notification{
		ID:     id,
		Title:  title,
		Time:   at,
		Unread: unread,
		Type:   domain.TypeInfo,
	})
	require.NoError(t, err)
}

// captureStdout returns what fn printed to stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	require.NoError(t, w.Close())

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
