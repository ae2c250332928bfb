// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package nodes

import (
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/telemetry"
)

// Counter publishes an increasing int64 every step.
//
// Parameters: start (default 0), increment (default 1).
type Counter struct {
	out       *telemetry.Sender[int64]
	next      int64
	increment int64
}

// NewCounter is the counter constructor.
func NewCounter(ctx *node.Context) (node.Node, error) {
	start, err := intOr(ctx, "start", 0)
	if err != nil {
		return nil, err
	}
	increment, err := intOr(ctx, "increment", 1)
	if err != nil {
		return nil, err
	}
	out, err := node.Publish[int64](ctx, "out")
	if err != nil {
		return nil, err
	}
	return &Counter{out: out, next: start, increment: increment}, nil
}

// Step publishes the next value.
func (n *Counter) Step(_ uint64, _ time.Duration, c clock.Clock) (node.StepResult, error) {
	if err := n.out.SendNow(c, n.next); err != nil {
		return node.Continue, err
	}
	n.next += n.increment
	return node.Continue, nil
}
