package devserver

import (
	"sync"

	"github.com/cristianoliveira/dashsync/internal/stream"
)

const subscriberBuffer = 16

// Broadcaster fans stream messages out to every connected SSE client.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan stream.Message]struct{}
	closed  bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan stream.Message]struct{})}
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close; after Close it is returned already closed.
func (b *Broadcaster) Subscribe() chan stream.Message {
	ch := make(chan stream.Message, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan stream.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
}

// Publish sends msg to all clients. Slow clients miss the message.
func (b *Broadcaster) Publish(msg stream.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Len returns the number of connected clients.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
}
