package main

import (
	"container/heap"
	"time"
)

// Scheduler is a cooperative timer queue. Entries are executed by RunReady
// from the run loop; nothing runs on its own goroutine and callbacks are
// assumed not to block.
type Scheduler struct {
	now func() time.Time
	q   entryQueue
	seq uint64
}

// Entry is a scheduled callback. It is returned by Schedule so callers can
// cancel it later.
type Entry struct {
	due      time.Time
	priority int
	seq      uint64
	fn       func()

	index    int
	canceled bool
}

// NewScheduler creates a Scheduler using the given clock.
func NewScheduler(now func() time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// Schedule enqueues fn to run once delay has elapsed. Entries with the same
// due time run in priority order, ties in insertion order.
func (s *Scheduler) Schedule(delay time.Duration, priority int, fn func()) *Entry {
	s.seq++
	e := &Entry{
		due:      s.now().Add(delay),
		priority: priority,
		seq:      s.seq,
		fn:       fn,
	}
	heap.Push(&s.q, e)
	return e
}

// Cancel removes a pending entry. Canceling an entry that already ran or was
// already canceled is a no-op.
func (s *Scheduler) Cancel(e *Entry) {
	if e == nil || e.canceled {
		return
	}
	e.canceled = true
	if e.index >= 0 {
		heap.Remove(&s.q, e.index)
	}
}

// NextDelay returns how long until the earliest entry is due, or false when
// the queue is empty. A due or overdue entry reports zero.
func (s *Scheduler) NextDelay() (time.Duration, bool) {
	if len(s.q) == 0 {
		return 0, false
	}
	d := s.q[0].due.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// RunReady executes every entry due at the time of the call. The clock is
// read once on entry and each entry is removed from the queue before its
// callback runs, so a callback may reschedule itself. Entries that become due
// while the pass is running wait for the next call, which bounds the pass.
func (s *Scheduler) RunReady() {
	now := s.now()
	var ready []*Entry
	for len(s.q) > 0 && !s.q[0].due.After(now) {
		ready = append(ready, heap.Pop(&s.q).(*Entry))
	}
	for _, e := range ready {
		if e.canceled {
			continue
		}
		e.fn()
	}
}

// Len reports the number of pending entries.
func (s *Scheduler) Len() int { return len(s.q) }

// entryQueue is a min-heap ordered by due time, priority, insertion order.
type entryQueue []*Entry

func (q entryQueue) Len() int { return len(q) }

func (q entryQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue) Push(x interface{}) {
	e := x.(*Entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *entryQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
