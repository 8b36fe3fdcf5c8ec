// Copyright (c) 2021 Hirotsuna Mizuno. All rights reserved.
// Use of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package eventqueue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Queue is an unbounded FIFO queue of events with blocking receive. All
// methods are safe for concurrent use by multiple go-routines, except Close.
type Queue struct {
	line          line
	waiters       int
	eventWatcher  Watcher
	waiterWatcher Watcher
	logger        *slog.Logger
	leakHandler   func(any)
	cond          *sync.Cond
	mu            sync.Mutex
}

// New creates a new Queue with the default configuration, allocating nodes
// on the heap.
func New() *Queue {
	q, err := NewWithConfig(nil)
	if err != nil {
		panic(fmt.Sprintf("invalid default conf: %s", err))
	}

	return q
}

// NewWithConfig creates a new Queue with the specified configuration. If conf
// is nil, the default configuration will be used. It fails if the allocator
// refuses to attach the new queue.
func NewWithConfig(conf *Config) (*Queue, error) {
	if conf == nil {
		conf = &Config{}
	}
	alloc := conf.Allocator
	if alloc == nil {
		alloc = HeapAllocator{}
	}
	if err := alloc.Attach(); err != nil {
		return nil, fmt.Errorf("attach allocator: %w", err)
	}
	logger := conf.Logger
	if logger == nil {
		logger = discardLogger
	}
	q := &Queue{
		line:        line{alloc: alloc},
		logger:      logger,
		leakHandler: conf.LeakHandler,
	}
	q.cond = sync.NewCond(&q.mu)

	return q, nil
}

// Post appends event to the end of the queue and wakes up one go-routine
// blocked in Wait or TimedWait, if any. The event is stored as is; the queue
// never inspects it. It returns an error wrapping ErrAllocation if the
// allocator could not supply a node, in which case the queue is unchanged.
func (q *Queue) Post(event any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.line.append(event); err != nil {
		return err
	}
	q.cond.Signal()
	q.notifyEvents(Increment)

	return nil
}

// Wait removes and returns the event at the head of the queue, blocking until
// one is posted. There is no way to abort it other than posting an event;
// use TimedWait for a bounded wait.
func (q *Queue) Wait() any {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.enter()
	event, ok := q.line.pop()
	for !ok {
		q.cond.Wait()
		event, ok = q.line.pop()
	}
	q.notifyEvents(Decrement)
	q.leave()

	return event
}

// TimedWait is the same as Wait, except that it gives up and returns
// ErrTimedOut once deadline has passed. An event that is available is always
// returned, even if the deadline has already passed.
func (q *Queue) TimedWait(deadline time.Time) (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.enter()
	defer q.leave()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		if event, ok := q.line.pop(); ok {
			q.notifyEvents(Decrement)
			return event, nil
		}
		wd := time.Until(deadline)
		if wd <= 0 {
			return nil, ErrTimedOut
		}
		if timer == nil {
			timer = time.AfterFunc(wd, func() {
				q.mu.Lock() // ensure it has reached q.cond.Wait() below
				q.cond.Broadcast()
				q.mu.Unlock()
			})
		}
		q.cond.Wait()
	}
}

// TimedWaitFor is the same as TimedWait with a deadline d from now.
func (q *Queue) TimedWaitFor(d time.Duration) (any, error) {
	return q.TimedWait(time.Now().Add(d))
}

// TryWait removes and returns the event at the head of the queue without
// blocking. It returns ErrEmpty if the queue is empty. A go-routine calling
// TryWait is never counted as a waiter.
func (q *Queue) TryWait() (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	event, ok := q.line.pop()
	if !ok {
		return nil, ErrEmpty
	}
	q.notifyEvents(Decrement)

	return event, nil
}

// RegisterEventWatcher sets w as the watcher of the number of queued events,
// replacing any previous one, and immediately calls it with the current
// number and Report. A nil w removes the watcher.
func (q *Queue) RegisterEventWatcher(w Watcher) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.eventWatcher = w
	q.notifyEvents(Report)
}

// RegisterWaiterWatcher sets w as the watcher of the number of go-routines
// blocked in Wait or TimedWait, replacing any previous one, and immediately
// calls it with the current number and Report. A nil w removes the watcher.
func (q *Queue) RegisterWaiterWatcher(w Watcher) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiterWatcher = w
	q.notifyWaiters(Report)
}

// Len returns the number of events currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.line.n
}

// Waiters returns the number of go-routines currently in Wait or TimedWait.
func (q *Queue) Waiters() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiters
}

// Close discards every event still in the queue and detaches the queue from
// its allocator. Each discarded event is logged as lost and passed to the
// LeakHandler, since the queue cannot release what it refers to. It returns
// the number of discarded events.
//
// Close must be called exactly once, after every other go-routine has
// stopped using the queue.
func (q *Queue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	lost := q.line.drain(func(event any) {
		q.logger.Warn("event queue lost event", slog.String("event", fmt.Sprintf("%v", event)))
		if q.leakHandler != nil {
			q.leakHandler(event)
		}
	})
	q.line.alloc.Detach()

	return lost
}

func (q *Queue) enter() {
	q.waiters++
	q.notifyWaiters(Increment)
}

func (q *Queue) leave() {
	q.waiters--
	q.notifyWaiters(Decrement)
}

func (q *Queue) notifyEvents(dir Direction) {
	if q.eventWatcher != nil {
		q.eventWatcher.Watch(q.line.n, dir)
	}
}

func (q *Queue) notifyWaiters(dir Direction) {
	if q.waiterWatcher != nil {
		q.waiterWatcher.Watch(q.waiters, dir)
	}
}
