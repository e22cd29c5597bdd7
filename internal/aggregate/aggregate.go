// Package aggregate holds the authoritative state of every polled source and
// the engine-level state derived from it. All poller results funnel through
// the Aggregator, which is the only synchronization point in the engine.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/event"
	"github.com/HerbHall/naspulse/internal/source"
)

// Record is the current state of one source. A record starts unknown and is
// only ever replaced wholesale by its own poller's results.
type Record struct {
	Definition  source.Definition `json:"definition"`
	Title       string            `json:"title"`
	Detail      string            `json:"detail"`
	Health      source.Health     `json:"health"`
	Metrics     map[string]any    `json:"metrics,omitempty"`
	LastSuccess time.Time         `json:"last_success,omitzero"`
	LastError   string            `json:"last_error,omitempty"`
	Failures    int               `json:"failures"`
	Unreachable bool              `json:"unreachable"`
	UpdatedAt   time.Time         `json:"updated_at,omitzero"`
}

// State is the engine-level view derived from all records.
type State struct {
	OverallHealth source.Health `json:"overall_health"`
	ActiveSource  string        `json:"active_source"`
	Revision      uint64        `json:"revision"`
	Offline       bool          `json:"offline"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Snapshot is a point-in-time copy of the whole engine state, safe to hold
// and serialize after the aggregator has moved on.
type Snapshot struct {
	State   State    `json:"state"`
	Records []Record `json:"records"`
}

// Aggregator applies poller results and answers snapshot queries. Methods
// never hold the lock across I/O; bus publishes happen after unlock.
type Aggregator struct {
	bus    *event.Bus
	logger *zap.Logger

	failureThreshold int

	mu       sync.RWMutex
	records  map[string]*Record
	order    []string
	active   string
	revision uint64
	offline  bool
	updated  time.Time
}

// New creates an aggregator with one unknown record per definition. The first
// definition becomes the active source.
func New(defs []source.Definition, failureThreshold int, bus *event.Bus, logger *zap.Logger) *Aggregator {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	a := &Aggregator{
		bus:              bus,
		logger:           logger.Named("aggregate"),
		failureThreshold: failureThreshold,
		records:          make(map[string]*Record, len(defs)),
		order:            make([]string, 0, len(defs)),
	}
	for _, d := range defs {
		a.records[d.Name] = &Record{
			Definition: d,
			Title:      d.DisplayName,
			Detail:     "Waiting for first poll",
			Health:     source.HealthUnknown,
		}
		a.order = append(a.order, d.Name)
	}
	if len(a.order) > 0 {
		a.active = a.order[0]
	}
	return a
}

// ApplySuccess replaces the named record with a fresh reading and resets its
// failure count.
func (a *Aggregator) ApplySuccess(ctx context.Context, name string, r *source.Reading) {
	now := time.Now()

	a.mu.Lock()
	rec, ok := a.records[name]
	if !ok {
		a.mu.Unlock()
		a.logger.Warn("result for unknown source dropped", zap.String("source", name))
		return
	}
	prevOverall := a.overallLocked()
	healthChanged := rec.Health != r.Health
	linesChanged := rec.Title != r.Title || rec.Detail != r.Detail

	rec.Title = r.Title
	rec.Detail = r.Detail
	rec.Health = r.Health
	rec.Metrics = r.Metrics
	rec.LastSuccess = now
	rec.LastError = ""
	rec.Failures = 0
	rec.Unreachable = false
	rec.UpdatedAt = now

	if healthChanged || (name == a.active && linesChanged) {
		a.revision++
	}
	a.updated = now
	overall := a.overallLocked()
	recCopy := *rec
	a.mu.Unlock()

	a.bus.Publish(ctx, event.Event{Topic: event.TopicSourceUpdated, Source: name, Payload: recCopy})
	if overall != prevOverall {
		a.bus.Publish(ctx, event.Event{Topic: event.TopicHealthChanged, Source: name, Payload: overall})
	}
}

// ApplyFailure counts a failed poll. Display lines stay untouched until the
// consecutive-failure threshold, at which point the record is demoted to
// critical with an unreachable line; last-good metrics are preserved.
func (a *Aggregator) ApplyFailure(ctx context.Context, name string, err error) {
	now := time.Now()

	a.mu.Lock()
	rec, ok := a.records[name]
	if !ok {
		a.mu.Unlock()
		a.logger.Warn("failure for unknown source dropped", zap.String("source", name))
		return
	}
	prevOverall := a.overallLocked()
	rec.Failures++
	rec.LastError = err.Error()
	rec.UpdatedAt = now

	demoted := false
	if rec.Failures >= a.failureThreshold && !rec.Unreachable {
		rec.Unreachable = true
		rec.Health = source.HealthCritical
		rec.Title = source.Truncate(fmt.Sprintf("%s - Unreachable", rec.Definition.DisplayName), source.DisplayWidth)
		rec.Detail = source.Truncate(fmt.Sprintf("%d consecutive failures: %s", rec.Failures, err), source.DisplayWidth)
		a.revision++
		demoted = true
	}
	a.updated = now
	overall := a.overallLocked()
	recCopy := *rec
	a.mu.Unlock()

	if demoted {
		a.bus.Publish(ctx, event.Event{Topic: event.TopicSourceUpdated, Source: name, Payload: recCopy})
	}
	if overall != prevOverall {
		a.bus.Publish(ctx, event.Event{Topic: event.TopicHealthChanged, Source: name, Payload: overall})
	}
}

// SetActive switches the display to the named source.
func (a *Aggregator) SetActive(ctx context.Context, name string) error {
	a.mu.Lock()
	if _, ok := a.records[name]; !ok {
		a.mu.Unlock()
		return fmt.Errorf("unknown source %q", name)
	}
	if a.active == name {
		a.mu.Unlock()
		return nil
	}
	a.active = name
	a.revision++
	a.updated = time.Now()
	a.mu.Unlock()

	a.bus.Publish(ctx, event.Event{Topic: event.TopicActiveChanged, Source: name, Payload: name})
	return nil
}

// Active returns the currently displayed source.
func (a *Aggregator) Active() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// SetOffline flips the integration-offline condition. Set when the session
// manager reports permanently rejected credentials; the whole engine reads
// critical until it clears.
func (a *Aggregator) SetOffline(ctx context.Context, offline bool) {
	a.mu.Lock()
	if a.offline == offline {
		a.mu.Unlock()
		return
	}
	a.offline = offline
	a.revision++
	a.updated = time.Now()
	a.mu.Unlock()

	a.bus.Publish(ctx, event.Event{Topic: event.TopicEngineOffline, Payload: offline})
}

// Offline reports the integration-offline condition.
func (a *Aggregator) Offline() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.offline
}

// Snapshot copies the whole engine state without blocking pollers for long.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	records := make([]Record, 0, len(a.order))
	for _, name := range a.order {
		records = append(records, *a.records[name])
	}
	return Snapshot{
		State: State{
			OverallHealth: a.overallLocked(),
			ActiveSource:  a.active,
			Revision:      a.revision,
			Offline:       a.offline,
			UpdatedAt:     a.updated,
		},
		Records: records,
	}
}

// Record returns a copy of one source's record.
func (a *Aggregator) Record(name string) (Record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Revision returns the current state revision.
func (a *Aggregator) Revision() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.revision
}

// OnChange subscribes fn to every state-change topic. fn receives a fresh
// snapshot; it runs in the publisher's goroutine and must return quickly.
func (a *Aggregator) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	return a.bus.SubscribeAll(func(_ context.Context, _ event.Event) {
		fn(a.Snapshot())
	})
}

// overallLocked computes worst-of health across records. Callers hold a.mu.
func (a *Aggregator) overallLocked() source.Health {
	if a.offline {
		return source.HealthCritical
	}
	overall := source.HealthUnknown
	for _, rec := range a.records {
		if rec.Health == source.HealthUnknown {
			continue
		}
		overall = source.Worst(overall, rec.Health)
	}
	return overall
}
