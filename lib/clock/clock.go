// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"fmt"
	"time"
)

// Clock is the time capability handed to nodes.
type Clock interface {
	// UTC returns the current wall time. The second result is false
	// when no absolute time reference is available (for example, a
	// flight computer before GPS lock, or a simulation run without an
	// epoch).
	UTC() (time.Time, bool)

	// Monotonic returns the time elapsed since the run began. It never
	// decreases.
	Monotonic() time.Duration
}

// Timestamp pairs both readings of a Clock taken at the same instant,
// so consumers can correlate samples across clocks.
type Timestamp struct {
	UTC       time.Time     `cbor:"utc"`
	HasUTC    bool          `cbor:"has_utc"`
	Monotonic time.Duration `cbor:"mono"`
}

// Now reads c into a Timestamp.
func Now(c Clock) Timestamp {
	utc, ok := c.UTC()
	return Timestamp{UTC: utc, HasUTC: ok, Monotonic: c.Monotonic()}
}

// String formats the timestamp as "T+<monotonic>" followed by the UTC
// time when known.
func (ts Timestamp) String() string {
	if !ts.HasUTC {
		return fmt.Sprintf("T+%s", ts.Monotonic)
	}
	return fmt.Sprintf("T+%s (%s)", ts.Monotonic, ts.UTC.Format(time.RFC3339Nano))
}
