package sched

import (
	"container/heap"
	"math/rand"
	"sync/atomic"
)

// Logger is the minimal logging interface the scheduler needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
}

// event is one pending callback resumption.
type event struct {
	at  float64 // simulated time in seconds
	seq uint64  // registration order, breaks ties on at
	fn  func()
}

// eventHeap is a min-heap ordered by (at, seq).
type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler advances simulated time and dispatches callbacks in time order.
//
// All methods except Stop and Stopped must only be called from the
// simulation goroutine (either before RunUntil or from inside a dispatched
// callback). Stop is safe to call from any goroutine.
type Scheduler struct {
	queue  eventHeap
	now    float64
	seq    uint64
	rng    *rand.Rand
	stop   atomic.Bool
	faults uint64
	logger Logger
}

// New creates a scheduler with its clock at zero and a deterministic RNG
// seeded with seed. Every randomized decision in the simulation should draw
// from Rand() so runs replay identically for the same seed.
func New(seed int64) *Scheduler {
	return &Scheduler{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic simulation RNG, not crypto
	}
}

// SetLogger sets the logger used to report recovered callback panics.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Now returns the current simulated time in seconds.
func (s *Scheduler) Now() float64 {
	return s.now
}

// Rand returns the scheduler-owned RNG.
func (s *Scheduler) Rand() *rand.Rand {
	return s.rng
}

// Pending returns the number of queued events. Useful in tests.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// Faults returns the number of callback panics recovered so far.
func (s *Scheduler) Faults() uint64 {
	return s.faults
}

// ScheduleAfter queues fn to run delay seconds from the current simulated
// time. A zero delay is valid and dispatches after all events already queued
// for the current instant. Returns ErrInvalidDuration if delay is negative.
func (s *Scheduler) ScheduleAfter(delay float64, fn func()) error {
	if delay < 0 {
		return ErrInvalidDuration
	}
	return s.ScheduleAt(s.now+delay, fn)
}

// ScheduleAt queues fn at an absolute simulated time. Times in the past are
// clamped to the current instant rather than rewinding the clock.
func (s *Scheduler) ScheduleAt(at float64, fn func()) error {
	if at < s.now {
		at = s.now
	}
	s.seq++
	heap.Push(&s.queue, &event{at: at, seq: s.seq, fn: fn})
	return nil
}

// SchedulePeriodic queues fn to run every interval seconds, first firing
// after start seconds. The process ends when fn returns false or the stop
// flag is raised. Returns ErrInvalidInterval if interval is not positive,
// ErrInvalidDuration if start is negative.
func (s *Scheduler) SchedulePeriodic(start, interval float64, fn func() bool) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	if start < 0 {
		return ErrInvalidDuration
	}
	var tick func()
	tick = func() {
		if s.Stopped() {
			return
		}
		if !fn() {
			return
		}
		_ = s.ScheduleAfter(interval, tick)
	}
	return s.ScheduleAfter(start, tick)
}

// RunUntil drains events in time order until the clock reaches deadline, the
// queue empties, or Stop is observed. Normal exhaustion is not an error; the
// clock lands on deadline unless the run was stopped early.
func (s *Scheduler) RunUntil(deadline float64) {
	for len(s.queue) > 0 && !s.Stopped() {
		next := s.queue[0]
		if next.at > deadline {
			break
		}
		heap.Pop(&s.queue)
		s.now = next.at
		s.dispatch(next)
	}
	if !s.Stopped() && s.now < deadline {
		s.now = deadline
	}
}

// dispatch runs one callback, confining any panic to this event.
func (s *Scheduler) dispatch(e *event) {
	defer func() {
		if r := recover(); r != nil {
			s.faults++
			if s.logger != nil {
				s.logger.Error("recovered panic in scheduled callback",
					"time", e.at,
					"panic", r,
				)
			}
		}
	}()
	e.fn()
}

// Stop raises the cooperative stop flag. Safe to call from any goroutine;
// the run halts at the next dispatch boundary.
func (s *Scheduler) Stop() {
	s.stop.Store(true)
}

// Stopped reports whether a stop has been requested.
func (s *Scheduler) Stopped() bool {
	return s.stop.Load()
}
