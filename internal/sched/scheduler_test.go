package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/dsm"
	"github.com/HerbHall/naspulse/internal/source"
)

func testDef(name string, base, min, max time.Duration) source.Definition {
	return source.Definition{Name: name, DisplayName: name, BaseInterval: base, MinInterval: min, MaxInterval: max}
}

// fakePoller runs fn on every poll and tracks overlapping invocations.
type fakePoller struct {
	def        source.Definition
	fn         func(ctx context.Context) (*source.Reading, error)
	concurrent atomic.Int32
	maxSeen    atomic.Int32
	calls      atomic.Int32
}

func (p *fakePoller) Definition() source.Definition { return p.def }

func (p *fakePoller) Poll(ctx context.Context) (*source.Reading, error) {
	cur := p.concurrent.Add(1)
	defer p.concurrent.Add(-1)
	for {
		max := p.maxSeen.Load()
		if cur <= max || p.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	p.calls.Add(1)
	if p.fn != nil {
		return p.fn(ctx)
	}
	return &source.Reading{Title: "ok", Detail: "ok", Health: source.HealthHealthy}, nil
}

// recordingSink captures outcomes delivered by the scheduler.
type recordingSink struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string]int
	offline   []bool
	active    string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{successes: make(map[string]int), failures: make(map[string]int)}
}

func (s *recordingSink) ApplySuccess(_ context.Context, name string, _ *source.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successes[name]++
}

func (s *recordingSink) ApplyFailure(_ context.Context, name string, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name]++
}

func (s *recordingSink) SetOffline(_ context.Context, offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = append(s.offline, offline)
}

func (s *recordingSink) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *recordingSink) wentOffline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.offline {
		if o {
			return true
		}
	}
	return false
}

func TestPolicyNext(t *testing.T) {
	p := DefaultPolicy()
	def := testDef("system", 10*time.Second, 5*time.Second, 2*time.Minute)

	tests := []struct {
		name    string
		cur     time.Duration
		success bool
		active  bool
		want    time.Duration
	}{
		{"failure doubles", 10 * time.Second, false, false, 20 * time.Second},
		{"failure capped at max", 90 * time.Second, false, false, 2 * time.Minute},
		{"active success shrinks", 10 * time.Second, true, true, 7500 * time.Millisecond},
		{"active success floored at min", 6 * time.Second, true, true, 5 * time.Second},
		{"inactive decays toward base from above", 40 * time.Second, true, false, 30 * time.Second},
		{"inactive relaxes toward base from below", 6 * time.Second, true, false, 8 * time.Second},
		{"inactive at base stays", 10 * time.Second, true, false, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.next(tt.cur, def, tt.success, tt.active); got != tt.want {
				t.Errorf("next(%v, success=%v, active=%v) = %v, want %v", tt.cur, tt.success, tt.active, got, tt.want)
			}
		})
	}
}

func TestPolicyInactiveRelaxCappedAtBase(t *testing.T) {
	p := DefaultPolicy()
	def := testDef("system", 10*time.Second, 5*time.Second, 2*time.Minute)
	if got := p.next(9*time.Second, def, true, false); got != 10*time.Second {
		t.Errorf("relax overshot base: %v", got)
	}
}

func TestPolicyEffective(t *testing.T) {
	p := DefaultPolicy()
	def := testDef("system", 10*time.Second, 5*time.Second, 30*time.Second)

	if got := p.effective(10*time.Second, def, true); got != 10*time.Second {
		t.Errorf("observed interval scaled: %v", got)
	}
	// 10s * 4.0 = 40s, capped at 30s max.
	if got := p.effective(10*time.Second, def, false); got != 30*time.Second {
		t.Errorf("idle interval = %v, want capped 30s", got)
	}
}

func TestSchedulerPollsEverySource(t *testing.T) {
	pollers := []source.Poller{
		&fakePoller{def: testDef("a", 20*time.Millisecond, 10*time.Millisecond, time.Second)},
		&fakePoller{def: testDef("b", 20*time.Millisecond, 10*time.Millisecond, time.Second)},
		&fakePoller{def: testDef("c", 20*time.Millisecond, 10*time.Millisecond, time.Second)},
	}
	sink := newRecordingSink()
	s := New(pollers, Config{MaxInFlight: 2, PollTimeout: time.Second, Policy: DefaultPolicy()}, sink, zap.NewNop())

	s.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, name := range []string{"a", "b", "c"} {
		if sink.successes[name] == 0 {
			t.Errorf("source %s never polled", name)
		}
	}
}

func TestSchedulerNeverOverlapsOneSource(t *testing.T) {
	// Poll takes far longer than the interval, so every tick would
	// double-dispatch if the in-flight guard were missing.
	slow := &fakePoller{
		def: testDef("slow", 10*time.Millisecond, 5*time.Millisecond, time.Second),
		fn: func(ctx context.Context) (*source.Reading, error) {
			time.Sleep(60 * time.Millisecond)
			return &source.Reading{Title: "ok", Detail: "ok", Health: source.HealthHealthy}, nil
		},
	}
	sink := newRecordingSink()
	s := New([]source.Poller{slow}, Config{MaxInFlight: 4, PollTimeout: time.Second, Policy: DefaultPolicy()}, sink, zap.NewNop())

	s.Start(context.Background())
	time.Sleep(300 * time.Millisecond)
	s.Stop()

	if got := slow.maxSeen.Load(); got > 1 {
		t.Errorf("source polled %d times concurrently, want at most 1", got)
	}
	if slow.calls.Load() < 2 {
		t.Errorf("slow poller ran %d times, want several", slow.calls.Load())
	}
}

func TestSchedulerFailuresKeepOtherSourcesPolling(t *testing.T) {
	failing := &fakePoller{
		def: testDef("bad", 20*time.Millisecond, 10*time.Millisecond, 100*time.Millisecond),
		fn: func(ctx context.Context) (*source.Reading, error) {
			return nil, &dsm.NetworkError{Op: "GET", Err: errors.New("refused")}
		},
	}
	healthy := &fakePoller{def: testDef("good", 20*time.Millisecond, 10*time.Millisecond, time.Second)}
	sink := newRecordingSink()
	s := New([]source.Poller{failing, healthy}, Config{MaxInFlight: 2, PollTimeout: time.Second, Policy: DefaultPolicy()}, sink, zap.NewNop())

	s.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.failures["bad"] == 0 {
		t.Error("failing source never reported")
	}
	if sink.successes["good"] == 0 {
		t.Error("healthy source starved by failing one")
	}
	if sink.successes["bad"] != 0 {
		t.Error("failing source reported success")
	}
}

func TestSchedulerPermanentAuthGoesOffline(t *testing.T) {
	rejected := &fakePoller{
		def: testDef("auth", 10*time.Millisecond, 5*time.Millisecond, time.Second),
		fn: func(ctx context.Context) (*source.Reading, error) {
			return nil, &dsm.AuthError{Code: 400, Permanent: true}
		},
	}
	sink := newRecordingSink()
	s := New([]source.Poller{rejected}, DefaultConfig(), sink, zap.NewNop())

	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if !sink.wentOffline() {
		t.Error("permanent auth failure did not flip offline")
	}
}

func TestSchedulerStopWaitsForInFlight(t *testing.T) {
	var finished atomic.Bool
	slow := &fakePoller{
		def: testDef("slow", 10*time.Millisecond, 5*time.Millisecond, time.Second),
		fn: func(ctx context.Context) (*source.Reading, error) {
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return &source.Reading{Title: "ok", Detail: "ok", Health: source.HealthHealthy}, nil
		},
	}
	s := New([]source.Poller{slow}, DefaultConfig(), newRecordingSink(), zap.NewNop())

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond) // let the first poll start
	s.Stop()

	if !finished.Load() {
		t.Error("Stop returned before the in-flight poll finished")
	}
}

func TestStopDoesNotCancelInFlightPoll(t *testing.T) {
	var cancelled atomic.Bool
	var finished atomic.Bool
	slow := &fakePoller{
		def: testDef("slow", 10*time.Millisecond, 5*time.Millisecond, time.Second),
		fn: func(ctx context.Context) (*source.Reading, error) {
			select {
			case <-ctx.Done():
				cancelled.Store(true)
				return nil, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
			finished.Store(true)
			return &source.Reading{Title: "ok", Detail: "ok", Health: source.HealthHealthy}, nil
		},
	}
	sink := newRecordingSink()
	s := New([]source.Poller{slow}, DefaultConfig(), sink, zap.NewNop())

	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond) // let the first poll start
	s.Stop()

	if cancelled.Load() {
		t.Fatal("Stop cancelled an in-flight poll; it must complete or time out on its own")
	}
	if !finished.Load() {
		t.Error("Stop returned before the in-flight poll finished")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.failures["slow"] != 0 {
		t.Errorf("shutdown surfaced %d spurious failures", sink.failures["slow"])
	}
}

func TestSaturatedPoolRunsDueTasksInOrder(t *testing.T) {
	names := []string{"first", "second", "third", "fourth"}
	pollers := make([]source.Poller, len(names))
	for i, name := range names {
		pollers[i] = &fakePoller{def: testDef(name, time.Minute, time.Second, time.Hour)}
	}
	sink := newRecordingSink()
	s := New(pollers, Config{MaxInFlight: 1, PollTimeout: time.Second, Policy: DefaultPolicy()}, sink, zap.NewNop())
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	// Queue everything as due at once against a single slot, then drive the
	// loop's completion handling by hand. Starts must follow queue order.
	for _, name := range names {
		tk := s.tasks[name]
		tk.inflight = true
		s.pending = append(s.pending, tk)
	}
	s.drainPending()

	var started []string
	for range names {
		select {
		case c := <-s.completions:
			started = append(started, c.t.def.Name)
			s.complete(c)
		case <-time.After(time.Second):
			t.Fatalf("stalled after %v", started)
		}
	}

	for i, name := range names {
		if started[i] != name {
			t.Fatalf("start order = %v, want %v", started, names)
		}
	}
	s.pollWg.Wait()
}
