// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Wall is a Clock backed by the host clock. Monotonic time is measured
// from the moment Wall was created using Go's monotonic reading, so it
// is unaffected by wall-clock steps.
type Wall struct {
	start time.Time
}

// NewWall returns a Wall clock whose monotonic origin is now.
func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

// UTC returns the host time in UTC. Always known.
func (w *Wall) UTC() (time.Time, bool) {
	return time.Now().UTC(), true
}

// Monotonic returns the time since NewWall.
func (w *Wall) Monotonic() time.Duration {
	return time.Since(w.start)
}
