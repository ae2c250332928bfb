// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"time"

	"github.com/crater-avionics/crater/lib/clock"
)

// StepResult tells the executor whether the run should go on.
type StepResult uint8

const (
	// Continue lets the run proceed to the next tick.
	Continue StepResult = iota
	// Stop ends the run once the current tick completes.
	Stop
)

func (r StepResult) String() string {
	if r == Stop {
		return "stop"
	}
	return "continue"
}

// Node is one steppable unit of computation.
//
// Step is called once per tick with the tick index, the fixed step
// size, and the clock the tick runs on. An error aborts the whole run;
// it is never retried.
//
// A Node that holds resources beyond its telemetry handles may also
// implement io.Closer; the Manager closes it at teardown.
type Node interface {
	Step(tick uint64, dt time.Duration, c clock.Clock) (StepResult, error)
}

// StepFunc adapts a function to the Node interface.
type StepFunc func(tick uint64, dt time.Duration, c clock.Clock) (StepResult, error)

// Step calls f.
func (f StepFunc) Step(tick uint64, dt time.Duration, c clock.Clock) (StepResult, error) {
	return f(tick, dt, c)
}

// Config is a node's wiring: logical input and output names mapped to
// physical channel paths.
type Config struct {
	Inputs  map[string]string `yaml:"inputs"`
	Outputs map[string]string `yaml:"outputs"`
}

// Constructor builds a node. It opens the node's channels through ctx
// and returns an error for any wiring problem.
type Constructor func(ctx *Context) (Node, error)
