package ws

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/aggregate"
	"github.com/HerbHall/naspulse/internal/auth"
	"github.com/HerbHall/naspulse/internal/event"
	"github.com/HerbHall/naspulse/internal/source"
)

func newTestClient(id string, buf int) *Client {
	return &Client{
		conn:     nil, // Not needed for hub tests
		clientID: id,
		send:     make(chan Message, buf),
		logger:   zap.NewNop(),
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	var counts []int
	hub := NewHub(func(n int) { counts = append(counts, n) }, zap.NewNop())

	c1 := newTestClient("c1", 8)
	c2 := newTestClient("c2", 8)

	hub.Register(c1)
	hub.Register(c2)
	if hub.ClientCount() != 2 {
		t.Errorf("ClientCount() = %d, want 2", hub.ClientCount())
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Observed-signal callback saw every transition.
	want := []int{1, 2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("onCount calls = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("onCount[%d] = %d, want %d", i, counts[i], want[i])
		}
	}

	// Send channel closed on unregister.
	if _, ok := <-c1.send; ok {
		t.Error("send channel still open after unregister")
	}
}

func TestHubUnregisterTwice(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	c := newTestClient("c1", 8)
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c) // must not panic on double close
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	c1 := newTestClient("c1", 8)
	c2 := newTestClient("c2", 8)
	hub.Register(c1)
	hub.Register(c2)

	hub.Broadcast(Message{Type: MessageHealthChanged, Timestamp: time.Now()})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != MessageHealthChanged {
				t.Errorf("client %s got %q", c.clientID, msg.Type)
			}
		default:
			t.Errorf("client %s received nothing", c.clientID)
		}
	}
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	full := newTestClient("full", 1)
	hub.Register(full)

	hub.Broadcast(Message{Type: MessageSourceUpdated})
	hub.Broadcast(Message{Type: MessageSourceUpdated}) // must not block

	if len(full.send) != 1 {
		t.Errorf("buffered = %d, want 1 (second dropped)", len(full.send))
	}
}

func TestHandlerForwardsEngineEvents(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	tokens := auth.NewTokenService([]byte("secret"), time.Hour)
	h := NewHandler(tokens, bus, nil, nil, zap.NewNop())

	c := newTestClient("c1", 8)
	h.Hub().Register(c)

	rec := aggregate.Record{Title: "DS920+ - Healthy", Health: source.HealthHealthy}
	bus.Publish(context.Background(), event.Event{Topic: event.TopicSourceUpdated, Source: "system", Payload: rec})
	bus.Publish(context.Background(), event.Event{Topic: event.TopicHealthChanged, Payload: source.HealthWarning})
	bus.Publish(context.Background(), event.Event{Topic: event.TopicActiveChanged, Payload: "storage"})
	bus.Publish(context.Background(), event.Event{Topic: event.TopicEngineOffline, Payload: true})

	wantTypes := []MessageType{MessageSourceUpdated, MessageHealthChanged, MessageActiveChanged, MessageEngineOffline}
	for _, want := range wantTypes {
		select {
		case msg := <-c.send:
			if msg.Type != want {
				t.Errorf("got %q, want %q", msg.Type, want)
			}
		default:
			t.Fatalf("no message for %q", want)
		}
	}
}

func TestHandlerIgnoresMalformedPayloads(t *testing.T) {
	bus := event.NewBus(zap.NewNop())
	tokens := auth.NewTokenService([]byte("secret"), time.Hour)
	h := NewHandler(tokens, bus, nil, nil, zap.NewNop())

	c := newTestClient("c1", 8)
	h.Hub().Register(c)

	// Wrong payload type for the topic: dropped, not broadcast.
	bus.Publish(context.Background(), event.Event{Topic: event.TopicSourceUpdated, Payload: "not a record"})

	if len(c.send) != 0 {
		t.Errorf("malformed payload broadcast anyway")
	}
}
