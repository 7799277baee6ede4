package connection

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cristianoliveira/dashsync/internal/domain"
	"github.com/cristianoliveira/dashsync/internal/logging"
)

const minPollDelay = 10 * time.Millisecond

// Config holds the timer settings of a Scheduler.
type Config struct {
	// PollInterval is the fallback refetch interval while disconnected.
	PollInterval time.Duration
	// PollJitter spreads each poll by a random offset in [-PollJitter, +PollJitter].
	PollJitter time.Duration
	// ReconnectEnabled arms a reconnect nudge with exponential backoff while disconnected.
	ReconnectEnabled bool
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

// DefaultConfig returns the default timer settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:     5 * time.Minute,
		ReconnectEnabled: true,
		ReconnectInitial: 30 * time.Second,
		ReconnectMax:     5 * time.Minute,
	}
}

// Scheduler owns every timer of a synchronizer. The poll timer only runs
// while the machine is disconnected and pauses during connect attempts; its
// deadline is kept until the machine connects. Reconnect nudges are armed in
// the same place and both are torn down by Stop.
type Scheduler struct {
	machine   *Machine
	cfg       Config
	poll      func(context.Context)
	reconnect func(context.Context)
	logger    logging.Logger
	backoff   *backoff.ExponentialBackOff

	changed chan struct{}
	polling atomic.Bool

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler for m. poll runs on every fallback tick;
// reconnect runs whenever connect intent is recorded on the machine.
func NewScheduler(m *Machine, cfg Config, poll, reconnect func(context.Context), opts ...Option) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	b := backoff.NewExponentialBackOff()
	if cfg.ReconnectInitial > 0 {
		b.InitialInterval = cfg.ReconnectInitial
	}
	if cfg.ReconnectMax > 0 {
		b.MaxInterval = cfg.ReconnectMax
	}
	b.Reset()

	s := &Scheduler{
		machine:   m,
		cfg:       cfg,
		poll:      poll,
		reconnect: reconnect,
		backoff:   b,
		changed:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Component(s.logger, "scheduler")
	return s
}

// Start runs the scheduler until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("scheduler already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.unsubscribe = s.machine.Subscribe(func(_, _ domain.ConnectionStatus) {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	})
	go s.run(ctx, s.done)
	return nil
}

// Stop cancels every timer and waits for the loop to exit. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done, unsubscribe := s.cancel, s.done, s.unsubscribe
	s.cancel, s.unsubscribe = nil, nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Polling reports whether the fallback poll timer is armed.
func (s *Scheduler) Polling() bool {
	return s.polling.Load()
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		pollTimer      *time.Timer
		reconnectTimer *time.Timer
		// pollDue is the next poll deadline. It survives attempts in flight so
		// a refused reconnect does not push the next poll back.
		pollDue time.Time
	)
	pausePoll := func() {
		if pollTimer != nil {
			pollTimer.Stop()
			pollTimer = nil
			s.polling.Store(false)
		}
	}
	stopPoll := func() {
		pausePoll()
		if !pollDue.IsZero() {
			pollDue = time.Time{}
			s.logger.Info("fallback polling stopped")
		}
	}
	stopReconnect := func() {
		if reconnectTimer != nil {
			reconnectTimer.Stop()
			reconnectTimer = nil
		}
	}
	defer stopPoll()
	defer stopReconnect()

	reconcile := func() {
		switch s.machine.Status() {
		case domain.StatusDisconnected:
			if pollTimer == nil {
				var delay time.Duration
				if pollDue.IsZero() {
					delay = s.nextPollDelay()
					pollDue = time.Now().Add(delay)
					s.logger.Info("fallback polling started", "interval", delay)
				} else {
					delay = max(time.Until(pollDue), 0)
				}
				pollTimer = time.NewTimer(delay)
				s.polling.Store(true)
			}
			if s.cfg.ReconnectEnabled && reconnectTimer == nil {
				if delay := s.backoff.NextBackOff(); delay != backoff.Stop {
					reconnectTimer = time.NewTimer(delay)
					s.logger.Debug("reconnect scheduled", "in", delay)
				}
			}
		case domain.StatusConnected:
			stopPoll()
			stopReconnect()
			s.backoff.Reset()
		default:
			pausePoll()
			stopReconnect()
		}
	}
	reconcile()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.changed:
			reconcile()
		case <-timerC(pollTimer):
			if s.machine.Status() != domain.StatusDisconnected {
				// overdue; fires as soon as the attempt fails
				pausePoll()
				continue
			}
			s.logger.Debug("fallback poll")
			s.poll(ctx)
			if ctx.Err() != nil {
				return
			}
			delay := s.nextPollDelay()
			pollDue = time.Now().Add(delay)
			if s.machine.Status() == domain.StatusDisconnected {
				pollTimer.Reset(delay)
			} else {
				pausePoll()
			}
		case <-timerC(reconnectTimer):
			reconnectTimer = nil
			if s.machine.Status() == domain.StatusDisconnected {
				s.machine.Nudge()
			}
		case <-s.machine.Intent():
			if s.machine.Status() == domain.StatusConnected {
				continue
			}
			s.logger.Debug("connect intent")
			s.reconnect(ctx)
		}
	}
}

// nextPollDelay returns the poll interval with jitter applied.
func (s *Scheduler) nextPollDelay() time.Duration {
	delay := s.cfg.PollInterval
	if jitter := s.cfg.PollJitter; jitter > 0 {
		//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
		delay += time.Duration(rand.Int64N(int64(2*jitter)+1)) - jitter
	}
	return max(delay, minPollDelay)
}

// timerC returns t's channel, or nil (blocks forever in a select) when t is nil.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
