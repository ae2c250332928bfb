// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"context"
	"sync"
	"time"
)

// Sleeper abstracts waiting on the host clock. Production code injects
// Real(); tests inject Fake().
type Sleeper interface {
	// Now returns the current host time.
	Now() time.Time

	// SleepUntil blocks until deadline or until ctx ends, returning
	// ctx.Err() in the latter case. A deadline in the past returns
	// immediately.
	SleepUntil(ctx context.Context, deadline time.Time) error
}

// Real returns a Sleeper backed by the standard time package.
func Real() Sleeper { return realSleeper{} }

type realSleeper struct{}

func (realSleeper) Now() time.Time { return time.Now() }

func (realSleeper) SleepUntil(ctx context.Context, deadline time.Time) error {
	wait := time.Until(deadline)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake returns a FakeSleeper at the given time. Time stands still until
// a sleep or Advance moves it.
func Fake(initial time.Time) *FakeSleeper {
	return &FakeSleeper{current: initial}
}

// FakeSleeper is a deterministic Sleeper. SleepUntil returns at once,
// jumping the clock to the deadline, and records the requested wait.
// Advance simulates work that takes host time, such as a slow tick.
//
// FakeSleeper is safe for concurrent use.
type FakeSleeper struct {
	mu      sync.Mutex
	current time.Time
	sleeps  []time.Duration
}

// Now returns the fake time.
func (f *FakeSleeper) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// SleepUntil jumps to deadline if it is in the future.
func (f *FakeSleeper) SleepUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if deadline.After(f.current) {
		f.sleeps = append(f.sleeps, deadline.Sub(f.current))
		f.current = deadline
	}
	return nil
}

// Advance moves the fake time forward by d.
func (f *FakeSleeper) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Sleeps returns every wait SleepUntil performed, in order.
func (f *FakeSleeper) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
