// Package streamtest provides an in-process push channel server for tests.
package streamtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cristianoliveira/dashsync/internal/stream"
)

// Server accepts stream requests and writes whatever the test sends to the
// most recent one.
type Server struct {
	*httptest.Server

	frames chan string
	opened chan struct{}

	mu       sync.Mutex
	status   int
	greeting bool
}

// NewServer starts a server that greets every stream with a connected
// message. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		frames:   make(chan string, 32),
		opened:   make(chan struct{}, 32),
		status:   http.StatusOK,
		greeting: true,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(func() {
		s.CloseClientConnections()
		s.Close()
	})
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, greeting := s.status, s.greeting
	s.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if greeting {
		_, _ = io.WriteString(w, frame(stream.Connected{Reason: "ready"}))
	}
	w.(http.Flusher).Flush()
	select {
	case s.opened <- struct{}{}:
	default:
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case f := <-s.frames:
			if f == "" {
				return
			}
			_, _ = io.WriteString(w, f)
			w.(http.Flusher).Flush()
		}
	}
}

func frame(msg stream.Message) string {
	data, err := stream.Encode(msg)
	if err != nil {
		panic(err)
	}
	return "data: " + string(data) + "\n\n"
}

// Send writes msg to the open stream.
func (s *Server) Send(msg stream.Message) {
	s.frames <- frame(msg)
}

// SendRaw writes an arbitrary data line.
func (s *Server) SendRaw(data string) {
	s.frames <- "data: " + data + "\n\n"
}

// Drop ends the open stream.
func (s *Server) Drop() {
	s.frames <- ""
}

// Reject makes later handshakes fail with status. Pass http.StatusOK to accept again.
func (s *Server) Reject(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Greet sets whether new streams start with a connected message.
func (s *Server) Greet(greeting bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greeting = greeting
}

// Opened receives once per accepted stream.
func (s *Server) Opened() <-chan struct{} {
	return s.opened
}
