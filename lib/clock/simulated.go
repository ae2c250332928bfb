// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Simulated is a Clock that moves only when told to. The executor
// advances it by the fixed step before each tick.
//
// Simulated is safe for concurrent use so that reader goroutines can
// inspect the time while the executor steps.
type Simulated struct {
	mu      sync.Mutex
	epoch   time.Time
	elapsed time.Duration
}

// NewSimulated returns a clock at monotonic zero. If epoch is the zero
// time, UTC reports unknown; otherwise UTC is epoch plus elapsed time.
func NewSimulated(epoch time.Time) *Simulated {
	return &Simulated{epoch: epoch}
}

// UTC returns epoch plus elapsed time, or false without an epoch.
func (s *Simulated) UTC() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch.IsZero() {
		return time.Time{}, false
	}
	return s.epoch.Add(s.elapsed).UTC(), true
}

// Monotonic returns the elapsed simulated time.
func (s *Simulated) Monotonic() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Advance moves the clock forward by d. Panics if d is negative: a
// monotonic clock cannot run backwards.
func (s *Simulated) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: Simulated.Advance with negative duration")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed += d
}
