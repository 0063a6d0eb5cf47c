// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that waits on a deadline (call timeouts in lib/correlate, the
// terminate grace period in lib/pluginhost) takes a [Clock] instead of
// calling the time package directly. Production wiring passes [Real];
// tests pass [Fake], whose time moves only when the test calls
// [FakeClock.Advance].
//
// The race between a goroutine registering a timer and the test
// advancing past it is closed with [FakeClock.WaitForTimers]:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go func() { results <- correlator.Call(ctx, "slow", nil, time.Second) }()
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
package clock
