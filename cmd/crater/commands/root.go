// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"os"

	"github.com/crater-avionics/crater/cmd/crater/cli"
)

// Env holds the process streams commands write to.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
}

// OS returns the environment of the running process.
func OS() Env {
	return Env{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Root returns the crater command tree.
func Root(env Env) *cli.Command {
	return &cli.Command{
		Name:        "crater",
		Description: "Crater steps a deterministic network of simulation nodes over typed telemetry channels.",
		Help:        env.Stderr,
		Subcommands: []*cli.Command{
			simCommand(env),
			flyCommand(env),
			montecarloCommand(env),
			logCommand(env),
			channelsCommand(env),
			versionCommand(env),
		},
	}
}
