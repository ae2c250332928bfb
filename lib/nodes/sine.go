// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package nodes

import (
	"math"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/telemetry"
)

// Sine publishes a sampled sine wave.
//
// Parameters: amplitude and frequency (Hz) are required; phase
// (radians) and offset default to 0.
type Sine struct {
	out       *telemetry.Sender[float64]
	amplitude float64
	frequency float64
	phase     float64
	offset    float64
}

// NewSine is the sine constructor.
func NewSine(ctx *node.Context) (node.Node, error) {
	amplitude, err := ctx.Params().Float(ctx.Param("amplitude"))
	if err != nil {
		return nil, err
	}
	frequency, err := ctx.Params().Float(ctx.Param("frequency"))
	if err != nil {
		return nil, err
	}
	phase, err := ctx.Params().FloatOr(ctx.Param("phase"), 0)
	if err != nil {
		return nil, err
	}
	offset, err := ctx.Params().FloatOr(ctx.Param("offset"), 0)
	if err != nil {
		return nil, err
	}
	out, err := node.Publish[float64](ctx, "out")
	if err != nil {
		return nil, err
	}
	return &Sine{out: out, amplitude: amplitude, frequency: frequency, phase: phase, offset: offset}, nil
}

// Value returns the wave at simulated time t.
func (n *Sine) Value(t time.Duration) float64 {
	return n.amplitude*math.Sin(2*math.Pi*n.frequency*t.Seconds()+n.phase) + n.offset
}

// Step publishes the value at the current simulated time.
func (n *Sine) Step(_ uint64, _ time.Duration, c clock.Clock) (node.StepResult, error) {
	return node.Continue, n.out.SendNow(c, n.Value(c.Monotonic()))
}
