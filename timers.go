package main

import (
	"sort"
	"sync"
	"time"
)

// frameClock is the monotonic time source shared by the whole host. It
// advances once per frame, so every callback within a frame reads the same
// now.
type frameClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFrameClock(start time.Time) *frameClock {
	return &frameClock{now: start}
}

func (c *frameClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// advance moves the clock forward; it never goes backwards.
func (c *frameClock) advance(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.After(c.now) {
		c.now = now
	}
}

type timerEntry struct {
	at  time.Time
	seq uint64
	fn  func()
}

// timerQueue delivers fire-once callbacks on the simulation goroutine. The
// frame loop pumps it, so callbacks never race ticks; a callback may safely
// register further timers.
type timerQueue struct {
	mu      sync.Mutex
	clock   *frameClock
	entries []timerEntry
	nextSeq uint64
}

func newTimerQueue(clock *frameClock) *timerQueue {
	return &timerQueue{clock: clock}
}

// After schedules fn to run once the delay elapses, measured on the frame
// clock.
func (q *timerQueue) After(d time.Duration, fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeq++
	q.entries = append(q.entries, timerEntry{at: q.clock.Now().Add(d), seq: q.nextSeq, fn: fn})
}

// pump fires every due callback in deadline order, then registration order.
// Callbacks run without the queue lock held.
func (q *timerQueue) pump(now time.Time) {
	q.mu.Lock()
	due := make([]timerEntry, 0)
	remaining := q.entries[:0]
	for _, entry := range q.entries {
		if !entry.at.After(now) {
			due = append(due, entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	q.entries = remaining
	q.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	for _, entry := range due {
		entry.fn()
	}
}

// pendingCount reports the number of scheduled callbacks, for diagnostics.
func (q *timerQueue) pendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
