// Package sched runs the adaptive polling loop: a min-heap of per-source
// tasks dispatched to a bounded worker pool, with intervals that tighten on
// success, back off on failure, and stretch while nobody is watching.
package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/dsm"
	"github.com/HerbHall/naspulse/internal/source"
)

// Sink receives poll outcomes. Satisfied by *aggregate.Aggregator.
type Sink interface {
	ApplySuccess(ctx context.Context, name string, r *source.Reading)
	ApplyFailure(ctx context.Context, name string, err error)
	SetOffline(ctx context.Context, offline bool)
	Active() string
}

// Config holds the scheduler knobs.
type Config struct {
	// MaxInFlight bounds concurrently running polls across all sources.
	MaxInFlight int `mapstructure:"max_in_flight"`
	// PollTimeout bounds a single poll.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	Policy      Policy        `mapstructure:"policy"`
}

// DefaultConfig returns the shipped scheduler configuration.
func DefaultConfig() Config {
	return Config{
		MaxInFlight: 4,
		PollTimeout: 15 * time.Second,
		Policy:      DefaultPolicy(),
	}
}

// task is one source's scheduling state. Owned by the loop goroutine;
// workers never touch it.
type task struct {
	poller   source.Poller
	def      source.Definition
	interval time.Duration // adaptive interval before idle scaling
	lastRun  time.Time
	due      time.Time
	inflight bool
	index    int // heap index
}

type taskHeap []*task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x any)         { t := x.(*task); t.index = len(*h); *h = append(*h, t) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

type completion struct {
	t       *task
	success bool
}

// Scheduler coordinates all source polls. A single loop goroutine owns the
// heap; due tasks move to a FIFO drained as worker slots free up, so excess
// due tasks run in scheduled-time order. Workers report back over a channel.
type Scheduler struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger

	tasks   map[string]*task
	queue   taskHeap
	pending []*task // due, waiting for a slot; FIFO
	running int

	observedCh  chan bool
	completions chan completion
	observed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	pollWg sync.WaitGroup
}

// New creates a scheduler for the given pollers. Each task first fires
// immediately at Start, then follows its adaptive interval.
func New(pollers []source.Poller, cfg Config, sink Sink, logger *zap.Logger) *Scheduler {
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	s := &Scheduler{
		cfg:         cfg,
		sink:        sink,
		logger:      logger.Named("sched"),
		tasks:       make(map[string]*task, len(pollers)),
		observedCh:  make(chan bool, 1),
		completions: make(chan completion, len(pollers)),
		observed:    true,
	}
	for _, p := range pollers {
		t := &task{poller: p, def: p.Definition(), interval: p.Definition().BaseInterval}
		s.tasks[t.def.Name] = t
	}
	return s
}

// SetObserved flags whether anything is watching the display. Flipping it
// reschedules every pending task immediately.
func (s *Scheduler) SetObserved(observed bool) {
	select {
	case s.observedCh <- observed:
	default:
		// A pending flip is about to be consumed; drop the stale one.
		select {
		case <-s.observedCh:
		default:
		}
		s.observedCh <- observed
	}
}

// Start launches the scheduling loop. Non-blocking; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	now := time.Now()
	s.queue = make(taskHeap, 0, len(s.tasks))
	for _, t := range s.tasks {
		t.due = now
		s.queue = append(s.queue, t)
	}
	heap.Init(&s.queue)

	s.wg.Add(1)
	go s.loop()
}

// Stop halts dispatching and waits for in-flight polls to finish. Polls run
// on their own deadline, so Stop never aborts one mid-call; it waits out the
// poll timeout at worst.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	defer s.pollWg.Wait()

	for {
		timer.Reset(s.untilNext())

		select {
		case <-s.ctx.Done():
			return

		case observed := <-s.observedCh:
			if observed != s.observed {
				s.observed = observed
				s.reschedule()
				s.logger.Info("observation changed", zap.Bool("observed", observed))
			}

		case c := <-s.completions:
			s.complete(c)

		case <-timer.C:
			s.dispatchDue()
		}
	}
}

// untilNext returns the wait until the earliest due task.
func (s *Scheduler) untilNext() time.Duration {
	if len(s.queue) == 0 {
		return time.Second
	}
	d := time.Until(s.queue[0].due)
	if d < 0 {
		return 0
	}
	return d
}

// dispatchDue moves every due task to the pending FIFO. A task whose prior
// poll is still running is pushed back one tick instead of being
// double-dispatched.
func (s *Scheduler) dispatchDue() {
	now := time.Now()
	for len(s.queue) > 0 && !s.queue[0].due.After(now) {
		t := heap.Pop(&s.queue).(*task)

		if t.inflight {
			t.due = now.Add(time.Second)
			heap.Push(&s.queue, t)
			continue
		}

		t.inflight = true
		s.pending = append(s.pending, t)
	}
	s.drainPending()
}

// drainPending launches pending tasks while worker slots are free. FIFO, so
// tasks that came due while the pool was saturated run in due order.
func (s *Scheduler) drainPending() {
	for s.running < s.cfg.MaxInFlight && len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]

		t.lastRun = time.Now()
		s.running++
		schedInFlight.Inc()

		s.pollWg.Add(1)
		go func(t *task) {
			defer s.pollWg.Done()
			defer schedInFlight.Dec()
			s.runPoll(t)
		}(t)
	}
}

// runPoll executes one poll and reports the outcome to the sink. The poll
// context carries only the poll timeout, never the scheduler's lifetime:
// shutdown lets in-flight calls complete or time out, it does not abort them.
func (s *Scheduler) runPoll(t *task) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PollTimeout)
	defer cancel()

	start := time.Now()
	reading, err := t.poller.Poll(ctx)
	pollDuration.WithLabelValues(t.def.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		pollsTotal.WithLabelValues(t.def.Name, "failure").Inc()
		s.logger.Warn("poll failed",
			zap.String("source", t.def.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		s.sink.ApplyFailure(context.Background(), t.def.Name, err)
		if dsm.IsPermanentAuth(err) {
			s.sink.SetOffline(context.Background(), true)
		}
		s.finish(t, false)
		return
	}

	pollsTotal.WithLabelValues(t.def.Name, "success").Inc()
	s.sink.ApplySuccess(context.Background(), t.def.Name, reading)
	s.sink.SetOffline(context.Background(), false)
	s.finish(t, true)
}

// finish reports a completion back to the loop. Safe to call during shutdown.
func (s *Scheduler) finish(t *task, success bool) {
	select {
	case s.completions <- completion{t: t, success: success}:
	case <-s.ctx.Done():
	}
}

// complete applies the interval policy, requeues the task, and hands the
// freed slot to the next pending task.
func (s *Scheduler) complete(c completion) {
	t := c.t
	t.inflight = false
	s.running--

	active := s.sink.Active() == t.def.Name
	t.interval = s.cfg.Policy.next(t.interval, t.def, c.success, active)
	intervalGauge.WithLabelValues(t.def.Name).Set(t.interval.Seconds())

	t.due = t.lastRun.Add(s.cfg.Policy.effective(t.interval, t.def, s.observed))
	heap.Push(&s.queue, t)

	s.drainPending()
}

// reschedule recomputes every queued task's due time from its last run,
// applying (or removing) the idle scaling.
func (s *Scheduler) reschedule() {
	for _, t := range s.queue {
		base := t.lastRun
		if base.IsZero() {
			base = time.Now()
		}
		t.due = base.Add(s.cfg.Policy.effective(t.interval, t.def, s.observed))
	}
	heap.Init(&s.queue)
}
