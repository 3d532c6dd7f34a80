// Package eventbus distributes notification lifecycle events to any number
// of independent subscribers.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"pushkit/internal/message"
)

// Type tags the event variants downstream consumers observe.
type Type string

const (
	// Received: an inbound payload was decoded, regardless of whether it
	// was rendered.
	Received Type = "received"
	// Tapped: the user selected a displayed notification.
	Tapped Type = "tapped"
	// Added: a push call finished its fan-out (best-effort dispatched,
	// not a per-target success guarantee).
	Added Type = "added"
)

// Event is an immutable, fire-and-forget signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//   - Late subscribers miss past events; nothing is queued for them.
type Event struct {
	Type    Type
	Time    time.Time
	Message *message.Message
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	// Close tears the bus down exactly once. Publishing afterwards is a
	// no-op, not an error.
	Close()
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	seq    atomic.Uint64
	closed bool
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If subscriber is slow, we drop.
		// If a subscriber unsubscribes concurrently and the channel closes,
		// recover from a possible panic (send on closed channel).
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.seq.Add(1)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			_, ok := b.subs[id]
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			if ok {
				close(ch)
			}
		})
	}
	return ch, unsub
}

func (b *memBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	chs := b.subs
	b.subs = map[uint64]chan Event{}
	b.mu.Unlock()

	for _, ch := range chs {
		close(ch)
	}
}
