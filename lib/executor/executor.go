// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/node"
)

// State is the executor's lifecycle state.
type State uint8

const (
	// Idle is between ticks; Step or Run may be called.
	Idle State = iota
	// Stepping is inside a tick.
	Stepping
	// Stopped means a node returned Stop. Terminal.
	Stopped
	// Failed means a node returned an error. Terminal.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stepping:
		return "stepping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ErrFinished is returned by Step and Run once the executor has stopped
// or failed.
var ErrFinished = errors.New("executor: run already finished")

// NodeError is a step failure, naming the node and tick.
type NodeError struct {
	Node string
	Tick uint64
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed at tick %d: %v", e.Node, e.Tick, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// Reason says why Run returned.
type Reason uint8

const (
	// ReasonStop means a node returned Stop.
	ReasonStop Reason = iota
	// ReasonMaxTicks means the tick limit was reached.
	ReasonMaxTicks
	// ReasonFailed means a node returned an error.
	ReasonFailed
	// ReasonCancelled means the context ended.
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonStop:
		return "stop"
	case ReasonMaxTicks:
		return "max-ticks"
	case ReasonFailed:
		return "failed"
	case ReasonCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// Result summarizes a Run.
type Result struct {
	// Ticks is the number of ticks completed over the executor's
	// lifetime, including ticks from earlier Run or Step calls.
	Ticks uint64
	// Elapsed is the simulated time at return.
	Elapsed time.Duration
	Reason  Reason
}

// Pacer ties ticks to the host clock. Wait is called before each tick
// and blocks until the tick is due.
type Pacer interface {
	Wait(ctx context.Context, tick uint64, dt time.Duration) error
}

// Config configures an Executor.
type Config struct {
	// Step is the fixed simulated time per tick. Required.
	Step time.Duration

	// Epoch is the UTC time of simulated zero. The zero time leaves
	// UTC unknown to nodes.
	Epoch time.Time

	// MaxTicks bounds Run. Zero means no limit.
	MaxTicks uint64

	// Pacer, if set, makes Run wait on the host clock before each
	// tick. Nil runs faster than real time.
	Pacer Pacer

	// Logger receives run lifecycle events. Nil discards.
	Logger *slog.Logger
}

// Executor steps a node manager tick by tick. It is not safe for
// concurrent use: exactly one goroutine drives it.
type Executor struct {
	step     time.Duration
	maxTicks uint64
	pacer    Pacer
	logger   *slog.Logger

	clock *clock.Simulated
	tick  uint64
	state State
}

// New creates an idle executor at simulated time zero.
func New(config Config) (*Executor, error) {
	if config.Step <= 0 {
		return nil, fmt.Errorf("executor: step must be positive, got %s", config.Step)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		step:     config.Step,
		maxTicks: config.MaxTicks,
		pacer:    config.Pacer,
		logger:   logger,
		clock:    clock.NewSimulated(config.Epoch),
	}, nil
}

// Clock returns the simulated clock nodes see.
func (e *Executor) Clock() clock.Clock {
	return e.clock
}

// State returns the lifecycle state.
func (e *Executor) State() State {
	return e.state
}

// Ticks returns the number of completed ticks.
func (e *Executor) Ticks() uint64 {
	return e.tick
}

// Step runs one tick: advance the clock by the step size, then step
// every node in order. Returns node.Stop if any node asked to stop.
// ctx is checked before the tick starts; a tick in progress always
// completes or fails.
func (e *Executor) Step(ctx context.Context, manager *node.Manager) (node.StepResult, error) {
	if e.state == Stopped || e.state == Failed {
		return node.Stop, ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return node.Continue, err
	}

	e.state = Stepping
	e.clock.Advance(e.step)

	result := node.Continue
	for _, named := range manager.Nodes() {
		stepResult, err := named.Node.Step(e.tick, e.step, e.clock)
		if err != nil {
			e.state = Failed
			return node.Stop, &NodeError{Node: named.Name, Tick: e.tick, Err: err}
		}
		if stepResult == node.Stop && result != node.Stop {
			e.logger.Info("node requested stop", "node", named.Name, "tick", e.tick)
			result = node.Stop
		}
	}

	e.tick++
	if result == node.Stop {
		e.state = Stopped
	} else {
		e.state = Idle
	}
	return result, nil
}

// Run steps until a node stops the run, a node fails, MaxTicks is
// reached, or ctx ends. Cancellation leaves the executor Idle, so Run
// can be called again to resume. A node failure is returned as a
// *NodeError alongside a Result with ReasonFailed.
func (e *Executor) Run(ctx context.Context, manager *node.Manager) (Result, error) {
	if e.state == Stopped || e.state == Failed {
		return e.result(ReasonStop), ErrFinished
	}
	e.logger.Info("run starting", "nodes", manager.Len(), "step", e.step, "max_ticks", e.maxTicks, "paced", e.pacer != nil)

	for {
		if e.maxTicks > 0 && e.tick >= e.maxTicks {
			e.logger.Info("run reached tick limit", "ticks", e.tick)
			return e.result(ReasonMaxTicks), nil
		}
		if e.pacer != nil {
			if err := e.pacer.Wait(ctx, e.tick, e.step); err != nil {
				return e.result(ReasonCancelled), err
			}
		}

		stepResult, err := e.Step(ctx, manager)
		if err != nil {
			var nodeErr *NodeError
			if errors.As(err, &nodeErr) {
				e.logger.Error("run failed", "node", nodeErr.Node, "tick", nodeErr.Tick, "error", nodeErr.Err)
				return e.result(ReasonFailed), err
			}
			return e.result(ReasonCancelled), err
		}
		if stepResult == node.Stop {
			e.logger.Info("run stopped", "ticks", e.tick, "elapsed", e.clock.Monotonic())
			return e.result(ReasonStop), nil
		}
	}
}

func (e *Executor) result(reason Reason) Result {
	return Result{Ticks: e.tick, Elapsed: e.clock.Monotonic(), Reason: reason}
}
