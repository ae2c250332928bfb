// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package nodes provides generic, physics-free nodes and the registry
// that builds nodes from configuration by type name.
//
// Built-in types:
//
//   - counter: publishes 0, 1, 2, ... as int64 on output "out".
//   - sine: publishes amplitude*sin(2*pi*frequency*t + phase) + offset
//     as float64 on output "out", t being simulated time.
//   - noise: republishes each float64 from input "in" on output "out"
//     with Gaussian noise added, keeping the input's timestamp.
//   - stop_after: stops the run once simulated time reaches duration.
//
// Parameters are read from /<node name>/<key> at construction time.
package nodes
