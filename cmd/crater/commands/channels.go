// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/crater-avionics/crater/cmd/crater/cli"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/nodes"
	"github.com/crater-avionics/crater/lib/telemetry"
)

func channelsCommand(env Env) *cli.Command {
	var flags configFlags
	var asJSON bool
	return &cli.Command{
		Name:    "channels",
		Summary: "List the channels a configuration wires up",
		Description: `List the channels a configuration wires up.

Nodes are constructed but never stepped, so the listing shows every
channel opened during construction with its payload type, discipline,
and handle counts after remapping.`,
		Usage: "crater channels [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("channels", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.BoolVar(&asJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			session, err := flags.open(env, nil)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, session.Close()) }()
			cfg := session.config

			service, err := telemetry.NewService(
				telemetry.WithRemap(cfg.Telemetry.Remap),
				telemetry.WithLogger(session.logger),
			)
			if err != nil {
				return err
			}
			manager, err := node.NewManager(node.ManagerConfig{
				Telemetry: service,
				Params:    session.params.Nominal(),
				Configs:   cfg.NodeConfigs(),
				Seed:      cfg.Sim.Seed,
				Logger:    session.logger,
			})
			if err != nil {
				return err
			}
			if err := nodes.Builtin().Build(manager, cfg.Nodes); err != nil {
				return multierr.Append(err, manager.Close())
			}
			channels := service.Channels()
			if err := manager.Close(); err != nil {
				return err
			}

			if asJSON {
				return cli.WriteJSON(env.Stdout, channels)
			}
			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANNEL\tTYPE\tDISCIPLINE\tSENDERS\tRECEIVERS")
			for _, channel := range channels {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", channel.Name, channel.Type,
					channel.Discipline, channel.Senders, channel.Receivers)
			}
			return tw.Flush()
		},
	}
}
