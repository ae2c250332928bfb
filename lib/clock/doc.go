// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time sources nodes see and the timestamps
// attached to every telemetry sample.
//
// A [Clock] answers two questions: the UTC wall time, if known, and the
// monotonic time since the run began. Nodes receive a Clock in every
// step and stamp what they publish with [Now]. Two implementations
// exist:
//
//   - [Wall] reads the host clock. The flight computer uses it.
//   - [Simulated] advances only when the executor calls Advance, so
//     a simulation runs faster than real time and replays exactly.
//
// # Sleepers
//
// Code that must wait on the host clock (the real-time pacer) accepts a
// [Sleeper] instead of calling time.Sleep directly. Production passes
// [Real]; tests pass [Fake], which advances instantly and records every
// sleep.
package clock
