package events

import (
	"context"
	"sync"
)

// Bus is an in-process Publisher and Subscriber. Handlers run synchronously
// on the publishing goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]func(Event)
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]func(Event))}
}

func (b *Bus) Publish(_ context.Context, stream string, event Event) error {
	b.mu.RLock()
	hs := append([]func(Event){}, b.handlers[stream]...)
	b.mu.RUnlock()
	for _, h := range hs {
		h(event)
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	b.mu.Lock()
	b.handlers[stream] = append(b.handlers[stream], handler)
	idx := len(b.handlers[stream]) - 1
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		// keep indexes stable for other subscribers
		b.handlers[stream][idx] = func(Event) {}
		b.mu.Unlock()
	}()
	return nil
}
