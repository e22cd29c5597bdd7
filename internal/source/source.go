// Package source defines the monitored appliance subsystems: one immutable
// Definition plus one Poller per source, sharing a common normalization
// layer for display lines, units, and health classification.
package source

import (
	"context"
	"encoding/json"
	"net/url"
	"time"
)

// Health classifies a source (and the aggregate) into four levels.
// The zero value is HealthUnknown: a source stays unknown until its first
// successful poll.
type Health int

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthWarning
	HealthCritical
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthWarning:
		return "warning"
	case HealthCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes health as its string form for API consumers.
func (h Health) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes the string form.
func (h *Health) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "healthy":
		*h = HealthHealthy
	case "warning":
		*h = HealthWarning
	case "critical":
		*h = HealthCritical
	default:
		*h = HealthUnknown
	}
	return nil
}

// Worst returns the more severe of two health levels.
// Critical dominates warning dominates healthy dominates unknown.
func Worst(a, b Health) Health {
	if a > b {
		return a
	}
	return b
}

// Definition is the immutable identity and polling policy of one source.
type Definition struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Icon        string        `json:"icon"`
	BaseInterval time.Duration `json:"base_interval"`
	MinInterval  time.Duration `json:"min_interval"`
	MaxInterval  time.Duration `json:"max_interval"`
}

// Reading is the normalized result of one successful poll: exactly two
// bounded display lines, a health classification, and the raw metrics that
// produced them.
type Reading struct {
	Title   string         `json:"title"`
	Detail  string         `json:"detail"`
	Health  Health         `json:"health"`
	Metrics map[string]any `json:"metrics"`
}

// Caller executes one authenticated appliance call. Satisfied by *dsm.Client;
// tests substitute canned payloads.
type Caller interface {
	Call(ctx context.Context, api, method string, version int, params url.Values) (json.RawMessage, error)
}

// Poller fetches and normalizes one source. Implementations are pure over
// their inputs: they issue the calls their source needs, parse the payloads,
// and never retain state between invocations.
type Poller interface {
	Definition() Definition
	Poll(ctx context.Context) (*Reading, error)
}
