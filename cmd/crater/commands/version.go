// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/crater-avionics/crater/cmd/crater/cli"
	"github.com/crater-avionics/crater/lib/version"
)

func versionCommand(env Env) *cli.Command {
	var short bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print build information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&short, "short", false, "print only the version number")
			return flagSet
		},
		Run: func([]string) error {
			if short {
				fmt.Fprintln(env.Stdout, version.Short())
				return nil
			}
			fmt.Fprintln(env.Stdout, version.Full())
			return nil
		},
	}
}
