// Package event provides the in-memory bus that carries state changes from
// the aggregator to the push layer and any other interested component.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Topics published by the engine.
const (
	TopicSourceUpdated = "source.updated"
	TopicHealthChanged = "health.changed"
	TopicActiveChanged = "active.changed"
	TopicEngineOffline = "engine.offline"
	TopicCommandIssued = "command.issued"
)

// Event is one state change notification. Payload is topic-specific; every
// consumer receives the same instance, so payloads must be treated as
// read-only.
type Event struct {
	Topic   string
	Source  string
	Time    time.Time
	Payload any
}

// Handler consumes one event. Handlers must not block for long: synchronous
// publishes run them in the publisher's goroutine.
type Handler func(ctx context.Context, ev Event)

// Bus is an in-memory publish/subscribe bus.
// Publish is synchronous (handlers run in the caller's goroutine).
// PublishAsync dispatches handlers in separate goroutines.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // topic -> handlers
	allSubs  []handlerEntry            // handlers subscribed to all topics
	nextID   uint64
	logger   *zap.Logger
}

type handlerEntry struct {
	id      uint64
	handler Handler
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	topicHandlers, allHandlers := b.snapshot(ev.Topic)
	for _, h := range topicHandlers {
		b.safeCall(ctx, h.handler, ev)
	}
	for _, h := range allHandlers {
		b.safeCall(ctx, h.handler, ev)
	}
}

// PublishAsync dispatches an event asynchronously to all matching handlers.
func (b *Bus) PublishAsync(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	topicHandlers, allHandlers := b.snapshot(ev.Topic)
	for _, h := range topicHandlers {
		go b.safeCall(ctx, h.handler, ev)
	}
	for _, h := range allHandlers {
		go b.safeCall(ctx, h.handler, ev)
	}
}

func (b *Bus) snapshot(topic string) (topicHandlers, allHandlers []handlerEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	topicHandlers = make([]handlerEntry, len(b.handlers[topic]))
	copy(topicHandlers, b.handlers[topic])
	allHandlers = make([]handlerEntry, len(b.allSubs))
	copy(allHandlers, b.allSubs)
	return topicHandlers, allHandlers
}

// Subscribe registers a handler for a specific topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		for i, e := range entries {
			if e.id == id {
				b.handlers[topic] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.allSubs {
			if e.id == id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) safeCall(ctx context.Context, handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", ev.Topic),
				zap.String("source", ev.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, ev)
}
