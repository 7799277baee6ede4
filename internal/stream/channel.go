package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/cristianoliveira/dashsync/internal/api"
	"github.com/cristianoliveira/dashsync/internal/logging"
)

// ErrChannelClosed is returned by Open after Close.
var ErrChannelClosed = errors.New("push channel closed")

// DefaultHandshakeTimeout bounds the wait for the stream response headers.
const DefaultHandshakeTimeout = 15 * time.Second

// Handler receives channel events. OnConnecting and OnOpen run on the caller
// of Open; the other callbacks run on the reader goroutine, in stream order.
// Callbacks must not call Open or Close.
type Handler interface {
	// OnConnecting is called once any prior handle is closed, before dialing.
	OnConnecting()
	// OnOpen is called when the server accepted the stream.
	OnOpen()
	// OnMessage is called for every decoded message, heartbeats included.
	OnMessage(Message)
	// OnProtocolError is called for undecodable messages in strict mode.
	OnProtocolError(error)
	// OnTransportError is called when dialing fails or an open stream breaks.
	// The handle is already closed when it runs.
	OnTransportError(error)
}

// Options configures a Channel.
type Options struct {
	URL    string
	Client *http.Client
	Header http.Header
	// Strict reports unknown or malformed messages to the handler instead of
	// logging and skipping them.
	Strict           bool
	HandshakeTimeout time.Duration
	Logger           logging.Logger
}

// Channel owns at most one live push stream.
type Channel struct {
	opts    Options
	handler Handler
	logger  logging.Logger

	// openMu serializes Open and Close.
	openMu sync.Mutex

	mu            sync.Mutex
	gen           uint64
	cancel        context.CancelFunc
	dialCancel    context.CancelFunc
	done          chan struct{}
	connected     bool
	closed        bool
	lastHeartbeat time.Time
}

// NewChannel creates a closed channel; call Open to connect.
func NewChannel(opts Options, handler Handler) *Channel {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Channel{
		opts:    opts,
		handler: handler,
		logger:  logging.Component(opts.Logger, "stream").With("url", opts.URL),
	}
}

// Open closes any prior handle and dials a new stream. Dial failures are
// reported to OnTransportError and returned. Open never retries.
func (c *Channel) Open(ctx context.Context) error {
	c.openMu.Lock()
	defer c.openMu.Unlock()

	if c.isClosed() {
		return ErrChannelClosed
	}
	c.teardown()
	c.handler.OnConnecting()

	streamCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.dialCancel = cancel
	c.mu.Unlock()
	resp, err := c.dial(streamCtx, cancel)
	c.mu.Lock()
	c.dialCancel = nil
	c.mu.Unlock()
	if err != nil {
		cancel()
		if ctx.Err() == nil && !c.isClosed() {
			c.logger.Warn("push channel unavailable", "error", err)
			c.handler.OnTransportError(err)
		}
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = resp.Body.Close()
		return ErrChannelClosed
	}
	c.gen++
	gen := c.gen
	done := make(chan struct{})
	c.cancel, c.done, c.connected = cancel, done, true
	c.mu.Unlock()

	c.logger.Info("push channel open")
	c.handler.OnOpen()
	go c.read(streamCtx, gen, resp.Body, done)
	return nil
}

func (c *Channel) dial(ctx context.Context, cancel context.CancelFunc) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	for k, v := range c.opts.Header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	timer := time.AfterFunc(c.opts.HandshakeTimeout, cancel)
	resp, err := c.opts.Client.Do(req)
	if !timer.Stop() && err != nil {
		return nil, fmt.Errorf("push channel handshake timed out after %s: %w", c.opts.HandshakeTimeout, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open push channel: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, api.NewHTTPError(resp.StatusCode, c.opts.URL, resp.Status)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "text/event-stream" {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("push channel returned content type %q, want text/event-stream", mediaType)
	}
	return resp, nil
}

func (c *Channel) read(ctx context.Context, gen uint64, body io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer func() {
		_ = body.Close()
	}()

	reader := newEventReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			if c.release(gen) {
				c.logger.Warn("push channel dropped", "error", err)
				c.handler.OnTransportError(fmt.Errorf("push channel dropped: %w", err))
			}
			return
		}
		if !c.current(gen) {
			return
		}
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev Event) {
	msg, err := Decode(ev.Data)
	if err != nil {
		var unknown *UnknownKindError
		if errors.As(err, &unknown) {
			c.logger.Warn("ignoring unknown push message", "kind", unknown.Kind)
		} else {
			c.logger.Warn("dropping malformed push message", "error", err)
		}
		if c.opts.Strict {
			c.handler.OnProtocolError(err)
		}
		return
	}
	if _, ok := msg.(Heartbeat); ok {
		c.mu.Lock()
		c.lastHeartbeat = time.Now()
		c.mu.Unlock()
	}
	c.handler.OnMessage(msg)
}

// release marks the handle of gen as gone after a transport error. It reports
// false when the handle was already replaced or closed.
func (c *Channel) release(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.connected {
		return false
	}
	c.connected = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return true
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen && c.connected && !c.closed
}

// teardown closes the current handle and waits for its reader.
func (c *Channel) teardown() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done, c.connected = nil, nil, false
	c.gen++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close tears down the handle and waits for the reader. Messages read after
// Close are discarded. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.dialCancel != nil {
		c.dialCancel()
	}
	c.mu.Unlock()

	c.openMu.Lock()
	defer c.openMu.Unlock()
	c.teardown()
	return nil
}

// Connected reports whether a stream is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastHeartbeat returns when the last heartbeat arrived, or the zero time.
func (c *Channel) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}
