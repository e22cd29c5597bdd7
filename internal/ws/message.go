package ws

import (
	"time"

	"github.com/HerbHall/naspulse/internal/aggregate"
	"github.com/HerbHall/naspulse/internal/source"
)

// MessageType discriminates WebSocket messages.
type MessageType string

const (
	MessageSnapshot      MessageType = "snapshot"
	MessageSourceUpdated MessageType = "source.updated"
	MessageHealthChanged MessageType = "health.changed"
	MessageActiveChanged MessageType = "active.changed"
	MessageEngineOffline MessageType = "engine.offline"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type      MessageType `json:"type"`
	Source    string      `json:"source,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

// SourceUpdatedData is the payload for source.updated messages.
type SourceUpdatedData struct {
	Record aggregate.Record `json:"record"`
}

// HealthChangedData is the payload for health.changed messages.
type HealthChangedData struct {
	OverallHealth source.Health `json:"overall_health"`
}

// ActiveChangedData is the payload for active.changed messages.
type ActiveChangedData struct {
	ActiveSource string `json:"active_source"`
}

// EngineOfflineData is the payload for engine.offline messages.
type EngineOfflineData struct {
	Offline bool `json:"offline"`
}
