// Package scheduler coalesces attribute mutations into debounced flushes.
//
// Mutations of attributes that need a full rebuild bypass the batch. All
// others are merged into a pending batch (latest value per attribute) and
// flushed once no further mutation arrives within the delay.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Ap3pp3rs94/chartly-apex/pkg/chart"
	"github.com/Ap3pp3rs94/chartly-apex/pkg/telemetry"
)

// DefaultDelay is the quiescence window used when Options.Delay is zero.
const DefaultDelay = 100 * time.Millisecond

type State int

const (
	Idle State = iota
	Pending
	Flushing
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Flushing:
		return "flushing"
	default:
		return "idle"
	}
}

// Batch maps each attribute to its newest pending mutation.
type Batch map[chart.Attr]chart.Mutation

// Has reports whether a is pending.
func (b Batch) Has(a chart.Attr) bool {
	_, ok := b[a]
	return ok
}

// HasAny reports whether any of attrs is pending.
func (b Batch) HasAny(attrs ...chart.Attr) bool {
	for _, a := range attrs {
		if b.Has(a) {
			return true
		}
	}
	return false
}

type Options struct {
	Delay time.Duration
	Clock Clock

	// Locker, when set, is held around flushes fired by the timer. Callers of
	// Record and ForceNow are expected to hold it already.
	Locker sync.Locker

	// Immediate selects attributes that skip batching and call Rebuild.
	Immediate func(chart.Attr) bool
	Rebuild   func(chart.Attr, chart.Mutation)

	// Flush applies a batch. It is never called with an empty batch.
	Flush func(Batch)

	// Valid, when set, is checked before each flush; a false result discards the batch.
	Valid func() bool

	Logger *telemetry.Logger
}

type Scheduler struct {
	mu      sync.Mutex
	opt     Options
	delay   time.Duration
	pending Batch
	timer   Timer
	gen     uint64
	state   State
	stopped bool
	flushes int
}

func New(opt Options) *Scheduler {
	if opt.Clock == nil {
		opt.Clock = RealClock{}
	}
	if opt.Logger == nil {
		opt.Logger = telemetry.Nop()
	}
	if opt.Immediate == nil {
		opt.Immediate = func(a chart.Attr) bool { return a == chart.AttrType }
	}
	delay := opt.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{opt: opt, delay: delay, pending: Batch{}}
}

// Record registers one mutation.
func (s *Scheduler) Record(a chart.Attr, m chart.Mutation) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.opt.Immediate(a) {
		delete(s.pending, a)
		prev := s.state
		s.state = Flushing
		s.mu.Unlock()

		if s.opt.Rebuild != nil {
			s.opt.Rebuild(a, m)
		}

		s.mu.Lock()
		if s.state == Flushing {
			s.state = prev
			if len(s.pending) == 0 {
				s.state = Idle
			}
		}
		s.mu.Unlock()
		return
	}

	s.pending[a] = m
	s.restartLocked()
	s.mu.Unlock()
}

// restartLocked cancels any running timer and arms a new one for the current generation.
func (s *Scheduler) restartLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.state = Pending
	s.timer = s.opt.Clock.AfterFunc(s.delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	if s.opt.Locker != nil {
		s.opt.Locker.Lock()
		defer s.opt.Locker.Unlock()
	}
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		s.opt.Logger.Debug(context.Background(), "scheduler.stale_timer", map[string]any{"gen": gen})
		return
	}
	s.timer = nil
	s.flushLocked()
}

// ForceNow flushes the pending batch without waiting for the delay.
func (s *Scheduler) ForceNow() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.flushLocked()
}

// flushLocked is entered with s.mu held and releases it.
func (s *Scheduler) flushLocked() {
	batch := s.pending
	s.pending = Batch{}
	if len(batch) == 0 {
		s.state = Idle
		s.mu.Unlock()
		return
	}
	s.state = Flushing
	s.mu.Unlock()

	if s.opt.Valid != nil && !s.opt.Valid() {
		s.opt.Logger.Debug(context.Background(), "scheduler.batch_discarded", map[string]any{
			"reason": "target_detached",
			"size":   len(batch),
		})
	} else if s.opt.Flush != nil {
		s.opt.Flush(batch)
	}

	s.mu.Lock()
	s.flushes++
	if s.state == Flushing {
		s.state = Idle
		if len(s.pending) > 0 {
			s.state = Pending
		}
	}
	s.mu.Unlock()
}

// SetDelay changes the quiescence window for subsequent mutations.
func (s *Scheduler) SetDelay(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("scheduler: negative delay %s", d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return nil
}

func (s *Scheduler) Delay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delay
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PendingBatch returns a copy of the batch waiting for the timer.
func (s *Scheduler) PendingBatch() Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Batch, len(s.pending))
	for k, v := range s.pending {
		out[k] = v
	}
	return out
}

// Flushes counts completed flushes, including discarded ones.
func (s *Scheduler) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Stop cancels the timer and drops the pending batch. Later calls are no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.stopped = true
	s.gen++
	s.pending = Batch{}
	s.state = Idle
}
