// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestSimulatedWithoutEpoch(t *testing.T) {
	t.Parallel()
	c := NewSimulated(time.Time{})

	if _, ok := c.UTC(); ok {
		t.Error("UTC should be unknown without an epoch")
	}
	c.Advance(10 * time.Millisecond)
	c.Advance(10 * time.Millisecond)
	if got := c.Monotonic(); got != 20*time.Millisecond {
		t.Errorf("Monotonic: got %v, want 20ms", got)
	}

	ts := Now(c)
	if ts.HasUTC || ts.Monotonic != 20*time.Millisecond {
		t.Errorf("Now: got %+v", ts)
	}
	if ts.String() != "T+20ms" {
		t.Errorf("String: got %q", ts.String())
	}
}

func TestSimulatedWithEpoch(t *testing.T) {
	t.Parallel()
	epoch := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c := NewSimulated(epoch)
	c.Advance(1500 * time.Millisecond)

	utc, ok := c.UTC()
	if !ok {
		t.Fatal("UTC should be known with an epoch")
	}
	if want := epoch.Add(1500 * time.Millisecond); !utc.Equal(want) {
		t.Errorf("UTC: got %v, want %v", utc, want)
	}
}

func TestSimulatedAdvanceNegativePanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("negative Advance should panic")
		}
	}()
	NewSimulated(time.Time{}).Advance(-time.Second)
}

func TestWallIsMonotonic(t *testing.T) {
	t.Parallel()
	c := NewWall()
	first := c.Monotonic()
	second := c.Monotonic()
	if second < first {
		t.Errorf("Monotonic went backwards: %v then %v", first, second)
	}
	if _, ok := c.UTC(); !ok {
		t.Error("Wall UTC should always be known")
	}
}

func TestFakeSleeper(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := Fake(start)
	ctx := context.Background()

	f.SleepUntil(ctx, start.Add(time.Second))
	f.Advance(3 * time.Second)
	// Deadline already passed: no sleep recorded.
	f.SleepUntil(ctx, start.Add(2*time.Second))
	f.SleepUntil(ctx, start.Add(5*time.Second))

	if got := f.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Errorf("Now: got %v", got)
	}
	if got := f.Sleeps(); !slices.Equal(got, []time.Duration{time.Second, time.Second}) {
		t.Errorf("Sleeps: got %v", got)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := f.SleepUntil(cancelled, start.Add(time.Hour)); err == nil {
		t.Error("SleepUntil with a cancelled context should fail")
	}
}

func TestRealSleeperPastDeadline(t *testing.T) {
	t.Parallel()
	if err := Real().SleepUntil(context.Background(), time.Now().Add(-time.Second)); err != nil {
		t.Errorf("SleepUntil: %v", err)
	}
}
