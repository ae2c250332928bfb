// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Command crater runs simulations, paced flights, and Monte-Carlo
// campaigns of telemetry-wired nodes, and inspects their flight logs.
package main

import (
	"os"

	"github.com/crater-avionics/crater/cmd/crater/commands"
	"github.com/crater-avionics/crater/lib/process"
)

func main() {
	if err := commands.Root(commands.OS()).Execute(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}
