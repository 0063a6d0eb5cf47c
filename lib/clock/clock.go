// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations this module uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a Timer that delivers on C once d has elapsed.
	// Prefer it over After when the wait may end early, so the timer
	// can be released with Stop.
	NewTimer(d time.Duration) *Timer
}

// Timer is a one-shot timer.
type Timer struct {
	// C receives the fire time. Buffered with capacity 1.
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the Timer from firing. It returns false if the timer
// already fired or was already stopped.
func (timer *Timer) Stop() bool { return timer.stop() }
