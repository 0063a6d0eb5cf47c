// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNowAdvances(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	if got, want := clock.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockTimerFiresAtDeadline(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	timer := clock.NewTimer(3 * time.Second)

	clock.Advance(2 * time.Second)
	select {
	case <-timer.C:
		t.Fatal("timer fired before its deadline")
	default:
	}

	clock.Advance(time.Second)
	select {
	case fired := <-timer.C:
		if want := epoch.Add(3 * time.Second); !fired.Equal(want) {
			t.Errorf("fire time = %v, want %v", fired, want)
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
	if timer.Stop() {
		t.Error("Stop after firing should return false")
	}
}

func TestFakeClockStoppedTimerNeverFires(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	timer := clock.NewTimer(time.Second)
	if !timer.Stop() {
		t.Fatal("Stop on a pending timer should return true")
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after Stop, want 0", clock.PendingCount())
	}
	clock.Advance(time.Hour)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeClockNonPositiveDurationIsReady(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	for _, duration := range []time.Duration{0, -time.Second} {
		select {
		case <-clock.After(duration):
		default:
			t.Fatalf("After(%v) should be ready immediately", duration)
		}
	}
	if clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", clock.PendingCount())
	}
}

func TestFakeClockWaitForTimers(t *testing.T) {
	t.Parallel()
	clock := Fake(epoch)
	fired := make(chan struct{})
	go func() {
		<-clock.After(10 * time.Second)
		close(fired)
	}()

	clock.WaitForTimers(1)
	clock.Advance(10 * time.Second)

	select {
	case <-fired:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("goroutine waiting on After was not released")
	}
}
