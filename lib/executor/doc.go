// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor runs the nodes of a [node.Manager] in lockstep.
//
// Each tick advances a simulated clock by the fixed step and then calls
// every node's Step in registration order with the same tick index,
// step size, and clock. Nodes therefore never run concurrently and see
// a consistent time within a tick. With the same nodes, parameters, and
// seed, two runs publish the same values on every channel.
//
// A node returning Stop ends the run after the rest of the tick's nodes
// have stepped. A node returning an error aborts the tick at once; the
// error is wrapped in a [*NodeError] and the executor is done. A
// partially observed tick cannot be resumed safely, so nothing is
// retried.
//
// By default the executor runs as fast as the nodes allow. A [Pacer]
// ties ticks to the host clock for the flight computer and
// hardware-in-the-loop runs.
package executor
