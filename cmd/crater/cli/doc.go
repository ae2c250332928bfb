// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the crater binary:
// a tree of [Command] values dispatched by the first positional
// argument, with pflag parsing per leaf, generated help, and
// edit-distance suggestions for mistyped commands and flags.
//
// Commands write results to [Command.Stdout] and diagnostics through a
// structured logger. Returning a [process.ExitError] sets the exit code
// without printing a redundant error line.
package cli
