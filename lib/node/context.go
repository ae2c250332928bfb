// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/crater-avionics/crater/lib/params"
	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/telemetry"
)

// Context is what a Constructor sees: the node's name and wiring, the
// shared telemetry service and parameters, a logger, and deterministic
// random generators.
//
// Every sender and receiver opened through a Context is closed by
// Manager.Close, so nodes need not track their own handles.
type Context struct {
	name    string
	config  Config
	manager *Manager
	logger  *slog.Logger
	handles []io.Closer
}

// Name returns the node's name.
func (ctx *Context) Name() string {
	return ctx.name
}

// Config returns the node's wiring.
func (ctx *Context) Config() Config {
	return ctx.config
}

// Params returns the run's parameter set.
func (ctx *Context) Params() *params.Set {
	return ctx.manager.params
}

// Param returns the path of a parameter scoped to this node:
// Param("gain") is "/<node name>/gain".
func (ctx *Context) Param(key string) string {
	return "/" + ctx.name + "/" + key
}

// Telemetry returns the underlying service for callers that need
// unremapped access.
func (ctx *Context) Telemetry() *telemetry.Service {
	return ctx.manager.telemetry
}

// Logger returns a logger tagged with the node name.
func (ctx *Context) Logger() *slog.Logger {
	return ctx.logger
}

// NewRand returns a generator seeded from the manager's seed stream.
// With a fixed manager seed and a fixed construction order, every node
// receives the same generators on every run.
func (ctx *Context) NewRand() *rand.Rand {
	return ctx.manager.newRand()
}

// Input returns the physical channel for a logical input name, or name
// itself when the node's input map has no entry for it.
func (ctx *Context) Input(name string) string {
	if path, ok := ctx.config.Inputs[name]; ok {
		return path
	}
	return name
}

// Output is Input for the output map.
func (ctx *Context) Output(name string) string {
	if path, ok := ctx.config.Outputs[name]; ok {
		return path
	}
	return name
}

func (ctx *Context) track(handle io.Closer) {
	ctx.handles = append(ctx.handles, handle)
}

// Publish opens the single-producer channel for a logical output.
func Publish[T any](ctx *Context, name string) (*telemetry.Sender[T], error) {
	sender, err := telemetry.Publish[T](ctx.manager.telemetry, ctx.Output(name))
	if err != nil {
		return nil, fmt.Errorf("node %s output %q: %w", ctx.name, name, err)
	}
	ctx.track(sender)
	return sender, nil
}

// PublishMP opens a multi-producer channel for a logical output.
func PublishMP[T any](ctx *Context, name string) (*telemetry.Sender[T], error) {
	sender, err := telemetry.PublishMP[T](ctx.manager.telemetry, ctx.Output(name))
	if err != nil {
		return nil, fmt.Errorf("node %s output %q: %w", ctx.name, name, err)
	}
	ctx.track(sender)
	return sender, nil
}

// Subscribe opens a receiver on the single-producer channel for a
// logical input.
func Subscribe[T any](ctx *Context, name string, capacity ringbuffer.Capacity) (*telemetry.Receiver[T], error) {
	receiver, err := telemetry.Subscribe[T](ctx.manager.telemetry, ctx.Input(name), capacity)
	if err != nil {
		return nil, fmt.Errorf("node %s input %q: %w", ctx.name, name, err)
	}
	ctx.track(receiver)
	return receiver, nil
}

// SubscribeMP opens a receiver on the multi-producer channel for a
// logical input.
func SubscribeMP[T any](ctx *Context, name string, capacity ringbuffer.Capacity) (*telemetry.Receiver[T], error) {
	receiver, err := telemetry.SubscribeMP[T](ctx.manager.telemetry, ctx.Input(name), capacity)
	if err != nil {
		return nil, fmt.Errorf("node %s input %q: %w", ctx.name, name, err)
	}
	ctx.track(receiver)
	return receiver, nil
}
