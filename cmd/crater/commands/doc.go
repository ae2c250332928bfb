// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the crater command tree.
//
// sim and fly share one run path: load the YAML configuration, build
// the nodes named in it, optionally attach a flight-log recorder and a
// Prometheus endpoint, and step the executor until a node stops the
// run, the tick limit is reached, or the process is interrupted. fly
// differs only in pacing ticks against the wall clock.
package commands
