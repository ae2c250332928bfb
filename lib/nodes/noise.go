// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package nodes

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/telemetry"
)

// Noise corrupts a float64 signal with Gaussian noise drawn from the
// node's deterministic generator.
//
// Parameters: stddev is required; bias defaults to 0; capacity bounds
// the input backlog (default 0, unbounded).
type Noise struct {
	in     *telemetry.Receiver[float64]
	out    *telemetry.Sender[float64]
	rng    *rand.Rand
	stddev float64
	bias   float64
}

// NewNoise is the noise constructor.
func NewNoise(ctx *node.Context) (node.Node, error) {
	stddev, err := ctx.Params().Float(ctx.Param("stddev"))
	if err != nil {
		return nil, err
	}
	if stddev < 0 {
		return nil, fmt.Errorf("%s must not be negative, got %v", ctx.Param("stddev"), stddev)
	}
	bias, err := ctx.Params().FloatOr(ctx.Param("bias"), 0)
	if err != nil {
		return nil, err
	}
	limit, err := intOr(ctx, "capacity", 0)
	if err != nil {
		return nil, err
	}
	capacity, err := ringbuffer.CapacityOf(int(limit))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ctx.Param("capacity"), err)
	}

	in, err := node.Subscribe[float64](ctx, "in", capacity)
	if err != nil {
		return nil, err
	}
	out, err := node.Publish[float64](ctx, "out")
	if err != nil {
		return nil, err
	}
	return &Noise{in: in, out: out, rng: ctx.NewRand(), stddev: stddev, bias: bias}, nil
}

// Step republishes every input value available now. A closed input is
// not an error: the node simply has nothing more to do.
func (n *Noise) Step(uint64, time.Duration, clock.Clock) (node.StepResult, error) {
	for {
		sample, err := n.in.TryRecv()
		if errors.Is(err, telemetry.ErrEmpty) || errors.Is(err, telemetry.ErrClosed) {
			return node.Continue, nil
		}
		if err != nil {
			return node.Continue, err
		}
		noisy := sample.Value + n.bias + n.rng.NormFloat64()*n.stddev
		if err := n.out.Send(sample.Timestamp, noisy); err != nil {
			return node.Continue, err
		}
	}
}
