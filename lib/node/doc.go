// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package node defines the unit of computation stepped by the executor
// and the manager that wires nodes to the telemetry bus.
//
// A [Node] exposes a single Step operation. Nodes never call each
// other: they exchange data only through named telemetry channels,
// which they open during construction through a [Context]. The Context
// resolves each logical name through the node's [Config] maps, so one
// node type can be reused with different wiring:
//
//	nodes:
//	  - name: baro_filter
//	    type: lowpass
//	    inputs:  {in: /sensors/baro/raw}
//	    outputs: {out: /sensors/baro/filtered}
//
// The [Manager] owns the nodes in registration order, which is the order
// the executor steps them in.
package node
