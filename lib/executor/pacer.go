// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
)

// overrunWarnInterval throttles overrun warnings.
const overrunWarnInterval = 100

// WallPacer schedules tick n at start + n*dt on the host clock, where
// start is the time of the first Wait. Ticks are scheduled against the
// fixed grid rather than the previous tick, so a late tick does not
// shift every later one; the executor catches up instead.
type WallPacer struct {
	sleeper  clock.Sleeper
	logger   *slog.Logger
	start    time.Time
	started  bool
	overruns atomic.Uint64
}

// NewWallPacer returns a pacer on sleeper. Pass clock.Real() in
// production.
func NewWallPacer(sleeper clock.Sleeper, logger *slog.Logger) *WallPacer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &WallPacer{sleeper: sleeper, logger: logger}
}

// Wait blocks until tick is due. A tick that is already more than one
// step late counts as an overrun.
func (p *WallPacer) Wait(ctx context.Context, tick uint64, dt time.Duration) error {
	now := p.sleeper.Now()
	if !p.started {
		p.start = now
		p.started = true
	}
	deadline := p.start.Add(time.Duration(tick) * dt)
	if lateness := now.Sub(deadline); lateness > dt {
		total := p.overruns.Add(1)
		if total == 1 || total%overrunWarnInterval == 0 {
			p.logger.Warn("tick overrun", "tick", tick, "late", lateness, "overruns", total)
		}
	}
	return p.sleeper.SleepUntil(ctx, deadline)
}

// Overruns returns how many ticks started more than one step late.
func (p *WallPacer) Overruns() uint64 {
	return p.overruns.Load()
}
