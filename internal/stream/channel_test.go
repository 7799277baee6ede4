package stream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cristianoliveira/dashsync/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// sseServer streams whatever frames the test pushes. An empty frame ends the
// response, which the client sees as a dropped stream.
type sseServer struct {
	*httptest.Server
	frames   chan string
	opened   chan string
	finished chan struct{}
}

func newSSEServer(t *testing.T) *sseServer {
	t.Helper()
	s := &sseServer{
		frames:   make(chan string, 16),
		opened:   make(chan string, 8),
		finished: make(chan struct{}, 8),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		s.opened <- r.Header.Get("Authorization")
		defer func() { s.finished <- struct{}{} }()
		for {
			select {
			case <-r.Context().Done():
				return
			case frame := <-s.frames:
				if frame == "" {
					return
				}
				_, _ = io.WriteString(w, frame)
				w.(http.Flusher).Flush()
			}
		}
	}))
	t.Cleanup(func() {
		s.CloseClientConnections()
		s.Close()
	})
	return s
}

func (s *sseServer) send(t *testing.T, msg Message) {
	t.Helper()
	data, err := Encode(msg)
	require.NoError(t, err)
	s.frames <- "data: " + string(data) + "\n\n"
}

type recorder struct {
	mu        sync.Mutex
	calls     []string
	messages  chan Message
	protocol  chan error
	transport chan error
}

func newRecorder() *recorder {
	return &recorder{
		messages:  make(chan Message, 16),
		protocol:  make(chan error, 4),
		transport: make(chan error, 4),
	}
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) OnConnecting() { r.record("connecting") }
func (r *recorder) OnOpen()       { r.record("open") }

func (r *recorder) OnMessage(m Message) {
	r.record("message")
	r.messages <- m
}

func (r *recorder) OnProtocolError(err error) {
	r.record("protocol")
	r.protocol <- err
}

func (r *recorder) OnTransportError(err error) {
	r.record("transport")
	r.transport <- err
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for channel event")
	}
	var zero T
	return zero
}

func newTestChannel(t *testing.T, url string, strict bool) (*Channel, *recorder) {
	t.Helper()
	rec := newRecorder()
	header := http.Header{}
	header.Set("Authorization", "Bearer s3cret")
	ch := NewChannel(Options{URL: url, Header: header, Strict: strict}, rec)
	t.Cleanup(func() { _ = ch.Close() })
	return ch, rec
}

func TestChannel_OpenDeliversMessagesInOrder(t *testing.T) {
	srv := newSSEServer(t)
	ch, rec := newTestChannel(t, srv.URL, false)

	require.NoError(t, ch.Open(context.Background()))
	assert.Equal(t, "Bearer s3cret", receive(t, srv.opened))
	assert.True(t, ch.Connected())

	srv.send(t, Connected{Reason: "hi"})
	srv.send(t, ServerError{Message: "slow db"})
	srv.send(t, Heartbeat{})

	assert.Equal(t, Connected{Reason: "hi"}, receive(t, rec.messages))
	assert.Equal(t, ServerError{Message: "slow db"}, receive(t, rec.messages))
	assert.Equal(t, Heartbeat{}, receive(t, rec.messages))
	assert.False(t, ch.LastHeartbeat().IsZero())
	assert.Equal(t, []string{"connecting", "open", "message", "message", "message"}, rec.Calls())
}

func TestChannel_DroppedStreamReportsTransportError(t *testing.T) {
	srv := newSSEServer(t)
	ch, rec := newTestChannel(t, srv.URL, false)

	require.NoError(t, ch.Open(context.Background()))
	receive(t, srv.opened)
	srv.frames <- ""

	err := receive(t, rec.transport)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, ch.Connected())
}

func TestChannel_RejectedHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	ch, rec := newTestChannel(t, srv.URL, false)

	err := ch.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, api.StatusCode(err))
	assert.Equal(t, err, receive(t, rec.transport))
	assert.False(t, ch.Connected())
	assert.NotContains(t, rec.Calls(), "open")
}

func TestChannel_WrongContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()
	ch, _ := newTestChannel(t, srv.URL, false)

	err := ch.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application/json")
}

func TestChannel_HandshakeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	rec := newRecorder()
	ch := NewChannel(Options{URL: srv.URL, HandshakeTimeout: 50 * time.Millisecond}, rec)
	defer ch.Close()

	err := ch.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	receive(t, rec.transport)
}

func TestChannel_UnknownKindSkippedWhenLenient(t *testing.T) {
	srv := newSSEServer(t)
	ch, rec := newTestChannel(t, srv.URL, false)

	require.NoError(t, ch.Open(context.Background()))
	receive(t, srv.opened)
	srv.frames <- "data: {\"type\":\"invoice_paid\"}\n\n"
	srv.frames <- "data: not json\n\n"
	srv.send(t, Heartbeat{})

	assert.Equal(t, Heartbeat{}, receive(t, rec.messages))
	assert.Empty(t, rec.protocol)
	assert.True(t, ch.Connected())
}

func TestChannel_UnknownKindReportedWhenStrict(t *testing.T) {
	srv := newSSEServer(t)
	ch, rec := newTestChannel(t, srv.URL, true)

	require.NoError(t, ch.Open(context.Background()))
	receive(t, srv.opened)
	srv.frames <- "data: {\"type\":\"invoice_paid\"}\n\n"

	err := receive(t, rec.protocol)
	var unknown *UnknownKindError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "invoice_paid", unknown.Kind)
	assert.True(t, ch.Connected())
}

func TestChannel_CloseIsSilentAndFinal(t *testing.T) {
	srv := newSSEServer(t)
	ch, rec := newTestChannel(t, srv.URL, false)

	require.NoError(t, ch.Open(context.Background()))
	receive(t, srv.opened)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	receive(t, srv.finished)
	assert.False(t, ch.Connected())
	assert.Empty(t, rec.transport)

	assert.ErrorIs(t, ch.Open(context.Background()), ErrChannelClosed)
}

func TestChannel_ReopenReplacesPriorHandle(t *testing.T) {
	srv := newSSEServer(t)
	ch, rec := newTestChannel(t, srv.URL, false)

	require.NoError(t, ch.Open(context.Background()))
	receive(t, srv.opened)

	require.NoError(t, ch.Open(context.Background()))
	receive(t, srv.finished)
	receive(t, srv.opened)

	assert.True(t, ch.Connected())
	assert.Empty(t, rec.transport)

	srv.send(t, Heartbeat{})
	assert.Equal(t, Heartbeat{}, receive(t, rec.messages))
	assert.Equal(t, []string{"connecting", "open", "connecting", "open", "message"}, rec.Calls())
}

func TestChannel_ParentContextCancelIsSilent(t *testing.T) {
	srv := newSSEServer(t)
	ch, rec := newTestChannel(t, srv.URL, false)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ch.Open(ctx))
	receive(t, srv.opened)

	cancel()
	receive(t, srv.finished)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.transport)
}
