package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestScheduler() (*Scheduler, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	return NewScheduler(clock.Now), clock
}

func TestSchedulerRunsInDueOrder(t *testing.T) {
	s, clock := newTestScheduler()

	var order []string
	s.Schedule(2*time.Second, 1, func() { order = append(order, "later") })
	s.Schedule(1*time.Second, 1, func() { order = append(order, "sooner") })

	clock.advance(3 * time.Second)
	s.RunReady()
	assert.Equal(t, []string{"sooner", "later"}, order)
}

func TestSchedulerBreaksTiesByPriorityThenInsertion(t *testing.T) {
	s, clock := newTestScheduler()

	var order []string
	s.Schedule(time.Second, 2, func() { order = append(order, "low-first") })
	s.Schedule(time.Second, 1, func() { order = append(order, "high") })
	s.Schedule(time.Second, 2, func() { order = append(order, "low-second") })

	clock.advance(time.Second)
	s.RunReady()
	assert.Equal(t, []string{"high", "low-first", "low-second"}, order)
}

func TestSchedulerRunReadyIdempotentUnderFrozenClock(t *testing.T) {
	s, clock := newTestScheduler()

	runs := 0
	s.Schedule(time.Second, 1, func() { runs++ })

	clock.advance(time.Second)
	s.RunReady()
	require.Equal(t, 1, runs)
	s.RunReady()
	assert.Equal(t, 1, runs, "second pass without time advance must be a no-op")
}

func TestSchedulerEntryCanRescheduleItself(t *testing.T) {
	s, clock := newTestScheduler()

	runs := 0
	var tick func()
	tick = func() {
		runs++
		s.Schedule(time.Second, 1, tick)
	}
	s.Schedule(0, 1, tick)

	s.RunReady()
	require.Equal(t, 1, runs)

	clock.advance(time.Second)
	s.RunReady()
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerDefersEntriesBecomingReadyDuringPass(t *testing.T) {
	s, clock := newTestScheduler()

	runs := 0
	s.Schedule(0, 1, func() {
		s.Schedule(0, 1, func() { runs++ })
	})

	s.RunReady()
	require.Equal(t, 0, runs, "entry scheduled during the pass must wait")
	clock.advance(0)
	s.RunReady()
	assert.Equal(t, 1, runs)
}

func TestSchedulerCancel(t *testing.T) {
	s, clock := newTestScheduler()

	runs := 0
	e := s.Schedule(time.Second, 1, func() { runs++ })
	s.Cancel(e)

	clock.advance(time.Second)
	s.RunReady()
	assert.Equal(t, 0, runs)
	assert.Equal(t, 0, s.Len())

	// double cancel is a no-op
	s.Cancel(e)
}

func TestSchedulerCancelDuringPass(t *testing.T) {
	s, clock := newTestScheduler()

	runs := 0
	var victim *Entry
	s.Schedule(time.Second, 1, func() { s.Cancel(victim) })
	victim = s.Schedule(time.Second, 2, func() { runs++ })

	clock.advance(time.Second)
	s.RunReady()
	assert.Equal(t, 0, runs, "entry canceled by an earlier entry in the same pass must not run")
}

func TestSchedulerNextDelay(t *testing.T) {
	s, clock := newTestScheduler()

	_, ok := s.NextDelay()
	require.False(t, ok)

	s.Schedule(2*time.Second, 1, func() {})
	d, ok := s.NextDelay()
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	clock.advance(3 * time.Second)
	d, ok = s.NextDelay()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), d, "overdue entries report zero")
}
