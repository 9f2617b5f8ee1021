package events

import (
	"sync"
	"testing"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker()

	var got1, got2 []TurnEvent
	b.Subscribe(func(ev TurnEvent) { got1 = append(got1, ev) })
	b.Subscribe(func(ev TurnEvent) { got2 = append(got2, ev) })

	for i := 1; i <= 3; i++ {
		b.Publish(TurnEvent{
			SessionID:     "sess-1",
			NegotiationID: "neg-1",
			Turn:          market.Turn{Round: i, AgentID: "b1", Role: market.RoleBuyer, Offer: float64(900 + i*50)},
			Status:        market.StatusActive,
		})
	}

	for name, got := range map[string][]TurnEvent{"first": got1, "second": got2} {
		if len(got) != 3 {
			t.Fatalf("%s listener received %d events, want 3", name, len(got))
		}
		for i, ev := range got {
			if ev.Turn.Round != i+1 {
				t.Errorf("%s listener event %d has round %d, want %d", name, i, ev.Turn.Round, i+1)
			}
		}
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()

	var count int
	unsub := b.Subscribe(func(TurnEvent) { count++ })

	b.Publish(TurnEvent{SessionID: "sess-1"})
	unsub()
	b.Publish(TurnEvent{SessionID: "sess-1"})
	// Calling unsubscribe twice must be harmless.
	unsub()

	if count != 1 {
		t.Errorf("listener received %d events after unsubscribe, want 1", count)
	}
}

func TestBrokerZeroValue(t *testing.T) {
	var b Broker

	// Publishing with no subscribers must not panic.
	b.Publish(TurnEvent{SessionID: "sess-1"})

	var count int
	b.Subscribe(func(TurnEvent) { count++ })
	b.Publish(TurnEvent{SessionID: "sess-1"})
	if count != 1 {
		t.Errorf("zero-value broker delivered %d events, want 1", count)
	}
}

func TestBrokerConcurrentPublish(t *testing.T) {
	b := NewBroker()

	var mu sync.Mutex
	var count int
	b.Subscribe(func(TurnEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Publish(TurnEvent{SessionID: "sess-1"})
			}
		}()
	}
	wg.Wait()

	if count != 200 {
		t.Errorf("delivered %d events, want 200", count)
	}
}
