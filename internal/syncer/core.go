// Package syncer holds the machinery shared by the dashboard and notification
// synchronizers: one push channel, one connection machine, one scheduler and
// a sequence-stamped state slot.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cristianoliveira/dashsync/internal/connection"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/logging"
	"github.com/cristianoliveira/dashsync/internal/metrics"
	"github.com/cristianoliveira/dashsync/internal/stream"
)

// ErrClosed is returned by operations on a closed synchronizer.
var ErrClosed = errors.New("synchronizer closed")

// FetchFunc loads the full state from the REST API.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// ExtractFunc picks the state carried by a push message, if any.
type ExtractFunc[T any] func(msg stream.Message) (T, bool)

// Settings configure a Core.
type Settings struct {
	// Name labels logs and metrics, e.g. "dashboard".
	Name         string
	StreamURL    string
	StreamClient *http.Client
	StreamHeader http.Header
	Strict       bool
	// HandshakeTimeout bounds the push channel dial.
	HandshakeTimeout time.Duration
	Scheduler        connection.Config
	Logger           logging.Logger
	Metrics          *metrics.Recorder
}

// State is a snapshot of a Core. Data is shared with the Core and must be
// treated as read-only.
type State[T any] struct {
	Data    T
	HasData bool
	// Loading is true until the first fetch or push resolves.
	Loading   bool
	Err       string
	Status    domain.ConnectionStatus
	Version   uint64
	UpdatedAt time.Time
}

// Observer receives every new state. Observers run outside the state lock but
// must not mutate the Core synchronously.
type Observer[T any] func(State[T])

// Core keeps one piece of server state in sync.
type Core[T any] struct {
	name    string
	fetch   FetchFunc[T]
	extract ExtractFunc[T]
	logger  logging.Logger
	metrics *metrics.Recorder

	machine   *connection.Machine
	channel   *stream.Channel
	scheduler *connection.Scheduler

	life context.Context
	kill context.CancelFunc
	wg   sync.WaitGroup

	// notifyMu serializes state changes with their notifications.
	notifyMu sync.Mutex

	mu        sync.Mutex
	state     State[T]
	seq       uint64
	applied   uint64
	started   bool
	closed    bool
	observers map[int]Observer[T]
	order     []int
	nextID    int

	unsubscribeMachine func()
	stopAfter          func() bool
}

// New creates a stopped Core. Call Start to connect. Every fetched or pushed
// value replaces the data wholesale.
func New[T any](fetch FetchFunc[T], extract ExtractFunc[T], opts Settings) *Core[T] {
	life, kill := context.WithCancel(context.Background())
	c := &Core[T]{
		name:      opts.Name,
		fetch:     fetch,
		extract:   extract,
		logger:    logging.Component(opts.Logger, "syncer").With("stream", opts.Name),
		metrics:   opts.Metrics,
		machine:   connection.NewMachine(),
		life:      life,
		kill:      kill,
		observers: make(map[int]Observer[T]),
	}
	c.state = State[T]{Loading: true, Status: domain.StatusDisconnected}
	c.channel = stream.NewChannel(stream.Options{
		URL:              opts.StreamURL,
		Client:           opts.StreamClient,
		Header:           opts.StreamHeader,
		Strict:           opts.Strict,
		HandshakeTimeout: opts.HandshakeTimeout,
		Logger:           opts.Logger,
	}, handler[T]{c})
	c.scheduler = connection.NewScheduler(c.machine, opts.Scheduler, c.poll, c.connect,
		connection.WithLogger(opts.Logger))
	c.unsubscribeMachine = c.machine.Subscribe(c.onTransition)
	c.metrics.SetStatus(c.name, domain.StatusDisconnected)
	return c
}

// Start opens the push channel and starts the scheduler. It returns once the
// first connect attempt resolved; a failed attempt is not an error, the
// scheduler falls back to polling. Cancelling ctx is equivalent to Close
// without waiting.
func (c *Core[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("%s synchronizer already started", c.name)
	}
	c.started = true
	c.stopAfter = context.AfterFunc(ctx, c.kill)
	c.mu.Unlock()

	c.logger.Info("starting synchronizer")
	c.connect(c.life)

	// Close may have run during the first dial and already stopped the scheduler.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.scheduler.Start(c.life); err != nil {
		return fmt.Errorf("failed to start %s scheduler: %w", c.name, err)
	}
	return nil
}

// Close stops every timer, closes the push channel and waits for background
// work. Results arriving afterwards are dropped. Safe to call more than once.
func (c *Core[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stopAfter := c.stopAfter
	c.mu.Unlock()

	c.kill()
	if stopAfter != nil {
		stopAfter()
	}
	c.scheduler.Stop()
	err := c.channel.Close()
	c.wg.Wait()
	c.unsubscribeMachine()
	c.logger.Info("synchronizer closed")
	return err
}

// Refresh fetches the full state and applies it. On failure the last good
// data is kept, the error is surfaced in State().Err and returned.
func (c *Core[T]) Refresh(ctx context.Context) error {
	if !c.track() {
		return ErrClosed
	}
	defer c.wg.Done()
	return c.refresh(ctx, c.nextStamp(), true)
}

// refresh fetches and applies under stamp, which the caller takes when the
// fetch is issued.
func (c *Core[T]) refresh(ctx context.Context, stamp uint64, surface bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.life, cancel)
	defer stop()

	v, err := c.fetch(ctx)
	if err != nil {
		err = fmt.Errorf("failed to fetch %s: %w", c.name, err)
		if surface {
			c.fail(stamp, err)
		}
		return err
	}
	c.apply(stamp, v)
	return nil
}

// poll is the scheduler's fallback tick. Failures are logged only.
func (c *Core[T]) poll(ctx context.Context) {
	if !c.track() {
		return
	}
	defer c.wg.Done()

	err := c.refresh(ctx, c.nextStamp(), false)
	c.metrics.Poll(c.name, err)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("fallback poll failed", "error", err)
	}
}

// bootstrap fetches once in the background, surfacing errors.
func (c *Core[T]) bootstrap(reason string) {
	if !c.track() {
		return
	}
	stamp := c.nextStamp()
	go func() {
		defer c.wg.Done()
		c.logger.Debug("bootstrap refresh", "reason", reason)
		if err := c.refresh(c.life, stamp, true); err != nil && c.life.Err() == nil {
			c.logger.Warn("bootstrap refresh failed", "error", err)
		}
	}()
}

// connect is the single place a push channel is opened.
func (c *Core[T]) connect(ctx context.Context) {
	err := c.channel.Open(ctx)
	if err == nil || errors.Is(err, stream.ErrChannelClosed) || ctx.Err() != nil {
		return
	}
	if !c.State().HasData {
		c.bootstrap("connect failed")
	}
}

// Nudge asks for a reconnect soon. It reports false when already connected.
func (c *Core[T]) Nudge() bool {
	if c.isClosed() {
		return false
	}
	return c.machine.Nudge()
}

// Polling reports whether the fallback poller is armed.
func (c *Core[T]) Polling() bool {
	return c.scheduler.Polling()
}

// LastHeartbeat returns when the push channel last saw a heartbeat, or the
// zero time.
func (c *Core[T]) LastHeartbeat() time.Time {
	return c.channel.LastHeartbeat()
}

// State returns the current snapshot.
func (c *Core[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for state changes. The returned function unsubscribes
// and may be called more than once.
func (c *Core[T]) Subscribe(fn Observer[T]) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Mutate applies a local edit to the current data. fn returns false to leave
// the state untouched. Mutate reports whether the edit was applied; edits on
// a closed Core or before any data arrived are refused.
func (c *Core[T]) Mutate(fn func(T) (T, bool)) bool {
	return c.update(func(s *State[T]) bool {
		if !s.HasData {
			return false
		}
		next, ok := fn(s.Data)
		if !ok {
			return false
		}
		s.Data = next
		return true
	})
}

// Touch re-notifies observers with a bumped version. Wrappers use it when
// state they keep outside the Core changed.
func (c *Core[T]) Touch() bool {
	return c.update(func(*State[T]) bool { return true })
}

// SetError surfaces msg in State().Err.
func (c *Core[T]) SetError(msg string) {
	c.update(func(s *State[T]) bool {
		s.Err = msg
		return true
	})
}

func (c *Core[T]) nextStamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// apply stores v when stamp is newer than the last applied payload.
func (c *Core[T]) apply(stamp uint64, v T) {
	stale := false
	c.update(func(s *State[T]) bool {
		if stamp <= c.applied {
			stale = true
			return false
		}
		c.applied = stamp
		s.Data = v
		s.HasData = true
		s.Loading = false
		s.Err = ""
		return true
	})
	if stale {
		c.metrics.StaleDropped(c.name)
		c.logger.Debug("discarded stale payload", "stamp", stamp)
	}
}

// fail records a fetch error unless a newer payload already landed.
func (c *Core[T]) fail(stamp uint64, err error) {
	c.update(func(s *State[T]) bool {
		if stamp <= c.applied {
			return false
		}
		s.Loading = false
		s.Err = err.Error()
		return true
	})
}

// update runs fn under the state lock and, when it reports a change, bumps
// the version and notifies observers in order.
func (c *Core[T]) update(fn func(*State[T]) bool) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if !fn(&c.state) {
		c.mu.Unlock()
		return false
	}
	c.state.Version++
	c.state.UpdatedAt = time.Now()
	snapshot := c.state
	observers := make([]Observer[T], 0, len(c.observers))
	live := c.order[:0]
	for _, id := range c.order {
		if obs, ok := c.observers[id]; ok {
			observers = append(observers, obs)
			live = append(live, id)
		}
	}
	c.order = live
	c.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
	return true
}

func (c *Core[T]) onTransition(from, to domain.ConnectionStatus) {
	c.logger.Info("connection status changed", "from", from, "to", to)
	c.metrics.SetStatus(c.name, to)
	c.update(func(s *State[T]) bool {
		s.Status = to
		return true
	})
}

// track registers background work; it fails once the Core is closed.
func (c *Core[T]) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

func (c *Core[T]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// handler adapts push channel callbacks to the Core.
type handler[T any] struct {
	c *Core[T]
}

func (h handler[T]) OnConnecting() {
	m := h.c.machine
	if m.Status() == domain.StatusConnected {
		m.Dropped()
	}
	if err := m.BeginConnect(true); err != nil {
		h.c.logger.Warn("connect attempt rejected", "error", err)
	}
}

func (h handler[T]) OnOpen() {
	if err := h.c.machine.Opened(); err != nil {
		h.c.logger.Warn("open event rejected", "error", err)
		return
	}
	h.c.metrics.Connected(h.c.name)
}

func (h handler[T]) OnMessage(msg stream.Message) {
	c := h.c
	switch m := msg.(type) {
	case stream.Connected:
		c.logger.Debug("push channel acknowledged", "reason", m.Reason)
		if !c.State().HasData {
			c.bootstrap("connected")
		}
	case stream.ServerError:
		c.logger.Warn("server reported error", "message", m.Message)
		c.SetError(m.Message)
	case stream.Heartbeat:
	default:
		if v, ok := c.extract(msg); ok {
			c.apply(c.nextStamp(), v)
			return
		}
		c.logger.Debug("ignoring message for another stream", "kind", msg.Kind())
	}
}

func (h handler[T]) OnProtocolError(err error) {
	h.c.SetError(err.Error())
}

func (h handler[T]) OnTransportError(err error) {
	h.c.logger.Debug("transport error", "error", err)
	h.c.metrics.TransportFailure(h.c.name)
	h.c.machine.Dropped()
}
