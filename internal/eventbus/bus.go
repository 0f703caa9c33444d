package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is an in-memory notification fanned out to API clients and other
// in-process consumers. Data must be JSON-serializable; it is what WebSocket
// subscribers receive on the wire.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus is a non-blocking fan-out bus. Publish never blocks; subscribers with
// a full buffer lose events rather than stalling the publisher, so the
// scheduler's timer loop can treat Publish as fire-and-forget.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory bus. It owns no background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		// Non-blocking delivery; a concurrently closed channel is tolerated
		// because unsubscribe can race with a publish in flight.
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
		buffer = 16
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}
