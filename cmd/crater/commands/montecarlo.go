// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/crater-avionics/crater/cmd/crater/cli"
	"github.com/crater-avionics/crater/lib/config"
	"github.com/crater-avionics/crater/lib/executor"
	"github.com/crater-avionics/crater/lib/montecarlo"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/nodes"
	"github.com/crater-avionics/crater/lib/recorder"
)

type montecarloFlags struct {
	configFlags
	runs     int
	workers  int
	database string
	baseSeed uint64
	logDir   string
	replay   int
	name     string
	json     bool

	flagSet *pflag.FlagSet
}

func montecarloCommand(env Env) *cli.Command {
	var flags montecarloFlags
	return &cli.Command{
		Name:    "montecarlo",
		Summary: "Run a dispersed Monte-Carlo campaign",
		Description: `Run a dispersed Monte-Carlo campaign.

Every run samples the distribution parameters of the parameter file
with its own seed, derived from the base seed and the run index, and
steps the configured nodes to completion. Runs execute in parallel;
results and fingerprints are stored in SQLite under a campaign ID.
--replay re-executes one run alone and prints its fingerprint, which
matches the stored one when the model is unchanged.`,
		Usage: "crater montecarlo [flags] | crater montecarlo <list|runs> ...",
		Examples: []cli.Example{
			{Description: "500 runs on 8 workers", Command: "crater montecarlo -c rocket.yaml --runs 500 --workers 8"},
			{Description: "Reproduce run 17", Command: "crater montecarlo -c rocket.yaml --replay 17"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("montecarlo", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.IntVarP(&flags.runs, "runs", "n", 0, "number of runs, overriding montecarlo.runs")
			flagSet.IntVarP(&flags.workers, "workers", "w", 0, "concurrent runs, overriding montecarlo.workers")
			flagSet.StringVar(&flags.database, "db", "", "results database, overriding montecarlo.database")
			flagSet.Uint64Var(&flags.baseSeed, "base-seed", 0, "campaign base seed (default: sim.seed)")
			flagSet.StringVar(&flags.logDir, "log-dir", "", "write a flight log per run into this directory")
			flagSet.IntVar(&flags.replay, "replay", -1, "run only this index and print its fingerprint")
			flagSet.StringVar(&flags.name, "name", "", "campaign name")
			flagSet.BoolVar(&flags.json, "json", false, "print results as JSON")
			flags.flagSet = flagSet
			return flagSet
		},
		Subcommands: []*cli.Command{
			montecarloListCommand(env),
			montecarloRunsCommand(env),
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCampaign(ctx, env, &flags)
		},
	}
}

func runCampaign(ctx context.Context, env Env, flags *montecarloFlags) (err error) {
	session, err := flags.open(env, func(cfg *config.Config) {
		if flags.runs > 0 {
			cfg.MonteCarlo.Runs = flags.runs
		}
		if flags.workers > 0 {
			cfg.MonteCarlo.Workers = flags.workers
		}
		if flags.database != "" {
			cfg.MonteCarlo.Database = flags.database
		}
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, session.Close()) }()
	cfg := session.config

	baseSeed := cfg.Sim.Seed
	if flags.flagSet != nil && flags.flagSet.Changed("base-seed") {
		baseSeed = flags.baseSeed
	}
	epoch, err := cfg.Epoch()
	if err != nil {
		return err
	}
	compression, err := recorder.ParseCompression(cfg.Recorder.Compression)
	if err != nil {
		return err
	}
	name := flags.name
	if name == "" && flags.configPath != "" {
		name = filepath.Base(flags.configPath)
	}

	registry := nodes.Builtin()
	campaign := &montecarlo.Campaign{
		Name:     name,
		Runs:     cfg.MonteCarlo.Runs,
		Workers:  cfg.MonteCarlo.Workers,
		BaseSeed: baseSeed,
		Params:   session.params,
		Configs:  cfg.NodeConfigs(),
		Remap:    cfg.Telemetry.Remap,
		Executor: executor.Config{
			Step:     cfg.Sim.Step,
			Epoch:    epoch,
			MaxTicks: cfg.Sim.MaxTicks,
		},
		Model: func(manager *node.Manager) error {
			return registry.Build(manager, cfg.Nodes)
		},
		Patterns:       cfg.Recorder.Patterns,
		LogDir:         flags.logDir,
		LogCompression: compression,
		Logger:         session.logger,
	}

	if flags.replay >= 0 {
		result, runErr := campaign.RunOne(ctx, flags.replay)
		if err := printRunResult(env, flags.json, result); err != nil {
			return err
		}
		return runErr
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MonteCarlo.Database), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	store, err := montecarlo.OpenStore(ctx, cfg.MonteCarlo.Database, session.logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()
	campaign.Store = store

	summary, err := campaign.Run(ctx)
	if flags.json {
		if writeErr := cli.WriteJSON(env.Stdout, summary); writeErr != nil {
			return multierr.Append(err, writeErr)
		}
	} else if summary.ID != uuid.Nil {
		fmt.Fprintf(env.Stdout, "campaign:  %s\n", summary.ID)
		fmt.Fprintf(env.Stdout, "runs:      %d (%d succeeded, %d failed)\n", summary.Runs, summary.Succeeded, summary.Failed)
		fmt.Fprintf(env.Stdout, "wall:      %s\n", summary.Wall)
		fmt.Fprintf(env.Stdout, "database:  %s\n", cfg.MonteCarlo.Database)
	}
	return err
}

type runResultView struct {
	Index       int               `json:"index"`
	Seed        uint64            `json:"seed"`
	Ticks       uint64            `json:"ticks"`
	Reason      string            `json:"reason"`
	Records     uint64            `json:"records"`
	Fingerprint string            `json:"fingerprint"`
	Channels    map[string]string `json:"channels"`
	Params      map[string]any    `json:"params"`
	Error       string            `json:"error,omitempty"`
}

func printRunResult(env Env, asJSON bool, result montecarlo.RunResult) error {
	view := runResultView{
		Index:       result.Index,
		Seed:        result.Seed,
		Ticks:       result.Ticks,
		Reason:      result.Reason.String(),
		Records:     result.Records,
		Fingerprint: result.Fingerprint.Combined.String(),
		Channels:    make(map[string]string, len(result.Fingerprint.Channels)),
		Params:      result.Params,
	}
	for channel, hash := range result.Fingerprint.Channels {
		view.Channels[channel] = hash.String()
	}
	if result.Err != nil {
		view.Error = result.Err.Error()
	}
	if asJSON {
		return cli.WriteJSON(env.Stdout, view)
	}
	fmt.Fprintf(env.Stdout, "run %d seed %d: %d ticks, %s, %d records\n",
		view.Index, view.Seed, view.Ticks, view.Reason, view.Records)
	fmt.Fprintf(env.Stdout, "fingerprint %s\n", view.Fingerprint)
	return nil
}

func montecarloListCommand(env Env) *cli.Command {
	var database string
	var asJSON bool
	return &cli.Command{
		Name:    "list",
		Summary: "List stored campaigns",
		Usage:   "crater montecarlo list --db FILE",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			flagSet.StringVar(&database, "db", "", "results database")
			flagSet.BoolVar(&asJSON, "json", false, "print as JSON")
			return flagSet
		},
		Run: func(args []string) (err error) {
			store, err := openExistingStore(database)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()
			campaigns, err := store.Campaigns(context.Background())
			if err != nil {
				return err
			}
			if asJSON {
				return cli.WriteJSON(env.Stdout, campaigns)
			}
			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tRUNS\tOK\tFAILED\tSTARTED")
			for _, campaign := range campaigns {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", campaign.ID, campaign.Name, campaign.Runs,
					campaign.Succeeded, campaign.Failed, campaign.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func montecarloRunsCommand(env Env) *cli.Command {
	var database string
	var asJSON bool
	return &cli.Command{
		Name:    "runs",
		Summary: "Show the runs of a stored campaign",
		Usage:   "crater montecarlo runs <campaign-id> --db FILE",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("runs", pflag.ContinueOnError)
			flagSet.StringVar(&database, "db", "", "results database")
			flagSet.BoolVar(&asJSON, "json", false, "print as JSON")
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) != 1 {
				return fmt.Errorf("expected one campaign ID")
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("campaign ID: %w", err)
			}
			store, err := openExistingStore(database)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, store.Close()) }()
			runs, err := store.Runs(context.Background(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return cli.WriteJSON(env.Stdout, runs)
			}
			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSEED\tTICKS\tREASON\tRECORDS\tFINGERPRINT\tERROR")
			for _, run := range runs {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t%.16s\t%s\n", run.Index, run.Seed, run.Ticks,
					run.Reason, run.Records, run.Fingerprint, run.Error)
			}
			return tw.Flush()
		},
	}
}

func openExistingStore(path string) (*montecarlo.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("--db is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("results database: %w", err)
	}
	return montecarlo.OpenStore(context.Background(), path, nil)
}
