// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package nodes

import (
	"errors"
	"log/slog"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/node"
)

// StopAfter ends the run once simulated time reaches a duration.
//
// Parameters: duration (a duration string such as "30s", or seconds).
type StopAfter struct {
	duration time.Duration
	logger   *slog.Logger
}

// NewStopAfter is the stop_after constructor.
func NewStopAfter(ctx *node.Context) (node.Node, error) {
	duration, err := ctx.Params().Duration(ctx.Param("duration"))
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, errors.New(ctx.Param("duration") + " must be positive")
	}
	return &StopAfter{duration: duration, logger: ctx.Logger()}, nil
}

// Step returns Stop at the first tick whose time is at or past the
// duration.
func (n *StopAfter) Step(tick uint64, _ time.Duration, c clock.Clock) (node.StepResult, error) {
	if c.Monotonic() < n.duration {
		return node.Continue, nil
	}
	n.logger.Info("stopping run", "tick", tick, "elapsed", c.Monotonic())
	return node.Stop, nil
}
