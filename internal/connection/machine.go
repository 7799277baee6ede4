// Package connection tracks the push channel state of a synchronizer and owns
// the timers that react to it: the fallback poll timer and reconnect nudges.
package connection

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid connection transition")

// TransitionError describes a rejected transition.
type TransitionError struct {
	From domain.ConnectionStatus
	To   domain.ConnectionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Listener is called after every transition, in transition order.
// A listener must not trigger another transition.
type Listener func(from, to domain.ConnectionStatus)

// Machine is the connection state machine of one synchronizer.
type Machine struct {
	// notifyMu serializes transitions together with their notifications so
	// listeners observe them in order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	status    domain.ConnectionStatus
	attempted bool
	listeners map[int]Listener
	order     []int
	nextID    int
	intent    chan struct{}
}

// NewMachine returns a machine in the disconnected state.
func NewMachine() *Machine {
	return &Machine{
		status:    domain.StatusDisconnected,
		listeners: make(map[int]Listener),
		intent:    make(chan struct{}, 1),
	}
}

// Status returns the current status.
func (m *Machine) Status() domain.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers fn for transitions. The returned function unsubscribes
// and may be called more than once.
func (m *Machine) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.order = append(m.order, id)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// BeginConnect marks the start of a connect attempt. When reconnect is true
// and an attempt already happened, the status becomes reconnecting instead of
// connecting. Starting an attempt while one is in flight is allowed; starting
// one while connected is not.
func (m *Machine) BeginConnect(reconnect bool) error {
	m.mu.Lock()
	target := domain.StatusConnecting
	if reconnect && m.attempted {
		target = domain.StatusReconnecting
	}
	m.attempted = true
	m.mu.Unlock()
	return m.transition(target, true)
}

// Opened records that the channel reported its open event.
func (m *Machine) Opened() error {
	return m.transition(domain.StatusConnected, false)
}

// Dropped records a channel error or an explicit close. It is a no-op when
// already disconnected.
func (m *Machine) Dropped() {
	_ = m.transition(domain.StatusDisconnected, true)
}

// Nudge signals that a connect attempt is wanted soon, e.g. because the
// terminal regained focus. It moves a disconnected machine to reconnecting
// and records the intent; it never opens a connection itself. Nudging a
// connected machine does nothing and returns false.
func (m *Machine) Nudge() bool {
	if m.Status() == domain.StatusConnected {
		return false
	}
	if err := m.transition(domain.StatusReconnecting, true); err != nil {
		return false
	}
	select {
	case m.intent <- struct{}{}:
	default:
	}
	return true
}

// Intent delivers one value per pending Nudge, coalesced.
func (m *Machine) Intent() <-chan struct{} {
	return m.intent
}

func (m *Machine) transition(to domain.ConnectionStatus, allowSame bool) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	from := m.status
	if from == to && allowSame {
		m.mu.Unlock()
		return nil
	}
	if !domain.CanTransition(from, to) {
		m.mu.Unlock()
		return &TransitionError{From: from, To: to}
	}
	m.status = to
	listeners := make([]Listener, 0, len(m.listeners))
	live := m.order[:0]
	for _, id := range m.order {
		if fn, ok := m.listeners[id]; ok {
			listeners = append(listeners, fn)
			live = append(live, id)
		}
	}
	m.order = live
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
	return nil
}
