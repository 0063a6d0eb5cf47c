// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock reading initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock. Timers fire during Advance, in
// deadline order. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	channel  chan time.Time
	done     bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After is NewTimer without the ability to stop.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C
}

// NewTimer registers a timer due d from the current fake time. A timer
// with d <= 0 is ready immediately and never counts as pending.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{
		deadline: c.current.Add(d),
		channel:  make(chan time.Time, 1),
	}
	if d <= 0 {
		timer.done = true
		timer.channel <- c.current
	} else {
		c.timers = append(c.timers, timer)
		c.changed.Broadcast()
	}

	return &Timer{
		C: timer.channel,
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if timer.done {
				return false
			}
			timer.done = true
			c.removeLocked(timer)
			return true
		},
	}
}

// Advance moves the clock forward by d and fires every timer whose
// deadline is at or before the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current

	var due, remaining []*fakeTimer
	for _, timer := range c.timers {
		if !timer.deadline.After(now) {
			timer.done = true
			due = append(due, timer)
		} else {
			remaining = append(remaining, timer)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, timer := range due {
		timer.channel <- now
	}
}

// WaitForTimers blocks until at least n timers are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.timers) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of registered timers that have not
// fired or been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// removeLocked drops timer from the pending list. c.mu must be held.
func (c *FakeClock) removeLocked(timer *fakeTimer) {
	for index, pending := range c.timers {
		if pending == timer {
			c.timers = append(c.timers[:index], c.timers[index+1:]...)
			return
		}
	}
}
