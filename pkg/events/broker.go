// Package events exposes committed negotiation turns to external
// transports. The engine publishes after each commit; fan-out to viewers
// is entirely the subscriber's responsibility.
package events

import (
	"sync"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// TurnEvent is delivered once per committed turn.
type TurnEvent struct {
	SessionID     string
	NegotiationID string
	Turn          market.Turn
	// Status is the negotiation status after the turn was committed.
	Status market.Status
}

// Listener receives turn events. Implementations must not block; slow
// consumers should buffer internally.
type Listener func(TurnEvent)

// Broker fans committed turns out to subscribers. The zero value is
// usable. Safe for concurrent use.
type Broker struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{listeners: make(map[int]Listener)}
}

// Subscribe registers a listener and returns an unsubscribe function.
func (b *Broker) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = l
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Publish delivers the event to every subscriber, synchronously and in
// unspecified order.
func (b *Broker) Publish(ev TurnEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.listeners {
		l(ev)
	}
}
