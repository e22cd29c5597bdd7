package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/aggregate"
	"github.com/HerbHall/naspulse/internal/auth"
	"github.com/HerbHall/naspulse/internal/event"
	"github.com/HerbHall/naspulse/internal/source"
)

// Handler provides the WebSocket endpoint for real-time state updates.
type Handler struct {
	hub      *Hub
	tokens   *auth.TokenService
	bus      *event.Bus
	snapshot func() aggregate.Snapshot
	logger   *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates the WebSocket handler and subscribes it to engine
// events. onCount receives the live client count (nil to ignore); snapshot
// supplies the initial full state sent to each new client.
func NewHandler(tokens *auth.TokenService, bus *event.Bus, snapshot func() aggregate.Snapshot, onCount func(n int), logger *zap.Logger) *Handler {
	h := &Handler{
		hub:      NewHub(onCount, logger),
		tokens:   tokens,
		bus:      bus,
		snapshot: snapshot,
		logger:   logger,
	}
	h.subscribeToEvents()
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/stream", h.handleStream)
}

// Hub exposes the hub, mainly for the readiness probe and tests.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// handleStream upgrades the connection and streams state changes.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	// Validate JWT from query parameter (browser WS API doesn't support headers).
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token parameter", http.StatusUnauthorized)
		return
	}

	if _, err := h.tokens.Validate(token); err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Allow any origin since we validate via JWT token.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		clientID: uuid.NewString(),
		send:     make(chan Message, 256),
		logger:   h.logger,
	}

	h.hub.Register(client)

	// Seed the new client with the full current state so it never renders
	// from a partial stream.
	if h.snapshot != nil {
		client.send <- Message{
			Type:      MessageSnapshot,
			Timestamp: time.Now(),
			Data:      h.snapshot(),
		}
	}

	// Run read and write pumps. When either exits, clean up.
	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// subscribeToEvents forwards engine state changes to all connected clients.
func (h *Handler) subscribeToEvents() {
	if h.bus == nil {
		return
	}

	h.bus.Subscribe(event.TopicSourceUpdated, func(_ context.Context, ev event.Event) {
		rec, ok := ev.Payload.(aggregate.Record)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageSourceUpdated,
			Source:    ev.Source,
			Timestamp: ev.Time,
			Data:      SourceUpdatedData{Record: rec},
		})
	})

	h.bus.Subscribe(event.TopicHealthChanged, func(_ context.Context, ev event.Event) {
		health, ok := ev.Payload.(source.Health)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageHealthChanged,
			Source:    ev.Source,
			Timestamp: ev.Time,
			Data:      HealthChangedData{OverallHealth: health},
		})
	})

	h.bus.Subscribe(event.TopicActiveChanged, func(_ context.Context, ev event.Event) {
		name, ok := ev.Payload.(string)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageActiveChanged,
			Timestamp: ev.Time,
			Data:      ActiveChangedData{ActiveSource: name},
		})
	})

	h.bus.Subscribe(event.TopicEngineOffline, func(_ context.Context, ev event.Event) {
		offline, ok := ev.Payload.(bool)
		if !ok {
			return
		}
		h.hub.Broadcast(Message{
			Type:      MessageEngineOffline,
			Timestamp: ev.Time,
			Data:      EngineOfflineData{Offline: offline},
		})
	})
}
