// Package scheduler implements the single-threaded cooperative event loop
// described in §4.8 and §5: one goroutine advances timers, dispatches
// deferred callbacks, and drains socket-ready notifications, so that
// every state machine transition runs to completion before the next one
// starts — no locks are needed on SSM or IOCB state (§5).
//
// Generalizes the teacher's per-node ticker+context goroutine
// (pkg/node.NodeProcessor.main/background) into a single global loop
// shared by every component in the stack, per §9's "coroutine-style
// asynchrony" redesign note: state machines never block; they are plain
// transition functions the loop calls into.
package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultSpin bounds how long the loop ever blocks when nothing else is
// pending, so the timer heap is re-examined at least this often.
const defaultSpin = 250 * time.Millisecond

// deferredPoll is the spec's "0.001 if deferred-fns-exist else infinity"
// — when a deferred function was enqueued from another goroutine between
// wake signals, the loop still wants to notice it quickly.
const deferredPoll = time.Millisecond

// Scheduler is the cooperative loop: a min-heap of timed tasks plus a
// FIFO of deferred callbacks, both safe to populate from any goroutine
// (socket readers, timeouts fired elsewhere) but always executed on the
// single loop goroutine.
type Scheduler struct {
	mu       sync.Mutex
	tasks    taskHeap
	deferred []func()
	seq      uint64
	wake     chan struct{}
	logger   *slog.Logger
}

// New creates a Scheduler. Per §9, a process normally keeps one
// process-wide instance (see Default), but tests and isolated
// sub-components may construct their own.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

var (
	defaultOnce sync.Once
	defaultInst *Scheduler
)

// Default returns the process-wide scheduler singleton. Timers are
// inherently global (§9), so a typical application uses only this
// instance.
func Default() *Scheduler {
	defaultOnce.Do(func() { defaultInst = New(nil) })
	return defaultInst
}

// Schedule installs a one-shot task to run after d. Scheduling a
// non-positive duration runs the task on the very next loop iteration.
func (s *Scheduler) Schedule(d time.Duration, fn func()) *TaskHandle {
	s.mu.Lock()
	s.seq++
	t := &scheduledTask{due: time.Now().Add(d).UnixNano(), fn: fn, seq: s.seq}
	heap.Push(&s.tasks, t)
	s.mu.Unlock()
	s.signal()
	return &TaskHandle{s: s, t: t}
}

// Defer enqueues fn to run on the loop goroutine during the next deferred
// drain, in FIFO order relative to whatever else is already queued. This
// is how callbacks originating off the loop goroutine (a UDP socket
// reader, a signal handler) hand work back to it, per §4.9/§5.
func (s *Scheduler) Defer(fn func()) {
	s.mu.Lock()
	s.deferred = append(s.deferred, fn)
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is cancelled. It is the single entry
// point described in §4.8:
//  1. pull and execute every currently-due task;
//  2. compute how long it is safe to block;
//  3. block for that long on either ctx cancellation, a wake signal, or
//     the computed timeout;
//  4. drain the deferred-function list, snapshotting and clearing it
//     atomically so functions enqueued during the drain run next
//     iteration, not this one.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler loop starting")
	defer s.logger.Info("scheduler loop exiting")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		due := s.popDue()
		for _, fn := range due {
			fn()
		}

		delta := s.nextDelta()

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-time.After(delta):
		}

		s.drainDeferred()
	}
}

// popDue removes and returns every non-cancelled task whose time has
// come, in due-time (then FIFO) order.
func (s *Scheduler) popDue() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixNano()
	var due []func()
	for len(s.tasks) > 0 && s.tasks[0].due <= now {
		t := heap.Pop(&s.tasks).(*scheduledTask)
		if !t.cancelled {
			due = append(due, t.fn)
		}
	}
	return due
}

// nextDelta computes how long the loop may safely block, per step 2 of
// §4.8: the time until the next timer, capped by defaultSpin, and capped
// further to deferredPoll if a deferred function is already waiting.
func (s *Scheduler) nextDelta() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := defaultSpin
	if len(s.tasks) > 0 {
		if untilNext := time.Duration(s.tasks[0].due - time.Now().UnixNano()); untilNext < delta {
			delta = untilNext
		}
	}
	if len(s.deferred) > 0 && deferredPoll < delta {
		delta = deferredPoll
	}
	if delta < 0 {
		delta = 0
	}
	return delta
}

func (s *Scheduler) drainDeferred() {
	s.mu.Lock()
	batch := s.deferred
	s.deferred = nil
	s.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
}

// PendingTasks reports the number of still-scheduled (not yet fired or
// cancelled) timed tasks. Exposed for tests and metrics.
func (s *Scheduler) PendingTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}
