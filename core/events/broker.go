package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// Broker fans emitted events out to an arbitrary number of subscribers. Slow
// subscribers are skipped rather than blocking the emitting operation.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewBroker constructs an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

// Emit implements the Emitter interface.
func (b *Broker) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned channel is closed when the
// supplied context is cancelled or the cancel function is invoked.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel
}
