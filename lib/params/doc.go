// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package params holds the hierarchical parameter set that configures
// node behavior (masses, gains, sensor noise, durations).
//
// Parameter files are nested maps in YAML or JSON-with-comments.
// Nesting is flattened into slash paths, the same shape as channel
// names, so a node named "sine" reads its amplitude from
// /sine/amplitude:
//
//	sine:
//	  amplitude: 2.5
//	  frequency: 0.5
//	imu:
//	  accel_bias:
//	    val: 0.0
//	    dist: normal
//	    stddev: 0.02
//
// A map carrying a "dist" key is a [Distribution], not a subtree. In a
// nominal run it reads as its "val" (or the distribution's center); a
// Monte-Carlo run calls [Set.Sample] to draw one concrete value per
// distribution from a seeded source.
package params
