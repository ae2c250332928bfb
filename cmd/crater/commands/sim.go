// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/crater-avionics/crater/cmd/crater/cli"
	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/config"
	"github.com/crater-avionics/crater/lib/executor"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/nodes"
	"github.com/crater-avionics/crater/lib/process"
	"github.com/crater-avionics/crater/lib/recorder"
	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/seed"
	"github.com/crater-avionics/crater/lib/telemetry"
	"github.com/crater-avionics/crater/lib/version"
)

// exitNodeFailed is the exit code of a run that a node aborted.
const exitNodeFailed = 2

type runFlags struct {
	configFlags
	record      string
	maxTicks    uint64
	seed        uint64
	randomSeed  bool
	metricsAddr string
	json        bool
	mlock       bool

	flagSet *pflag.FlagSet
}

func (f *runFlags) flags(name string, flight bool) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		f.register(flagSet)
		flagSet.StringVarP(&f.record, "record", "r", "", "flight log path, overriding recorder.path")
		flagSet.Uint64Var(&f.maxTicks, "max-ticks", 0, "tick limit, overriding sim.max_ticks")
		flagSet.Uint64Var(&f.seed, "seed", 0, "run seed, overriding sim.seed")
		flagSet.BoolVar(&f.randomSeed, "random-seed", false, "draw a fresh seed and log it")
		flagSet.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
		flagSet.BoolVar(&f.json, "json", false, "print the run report as JSON")
		if flight {
			flagSet.BoolVar(&f.mlock, "mlock", false, "lock process memory before the first tick")
		}
		f.flagSet = flagSet
		return flagSet
	}
}

func simCommand(env Env) *cli.Command {
	var flags runFlags
	return &cli.Command{
		Name:    "sim",
		Summary: "Run a simulation as fast as possible",
		Description: `Run a simulation as fast as possible.

Nodes are built from the configuration in order and stepped on a
simulated clock. The run ends when a node requests a stop, the tick
limit is reached, or the process is interrupted.`,
		Usage: "crater sim [flags]",
		Examples: []cli.Example{
			{Description: "Run and record a flight log", Command: "crater sim -c rocket.yaml --record out.crlog"},
			{Description: "Replay a specific seed", Command: "crater sim -c rocket.yaml --seed 42"},
		},
		Flags: flags.flags("sim", false),
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFlight(ctx, env, &flags, false)
		},
	}
}

func flyCommand(env Env) *cli.Command {
	var flags runFlags
	return &cli.Command{
		Name:    "fly",
		Summary: "Run paced against the wall clock",
		Description: `Run paced against the wall clock.

fly is sim with one tick per step of real time. Ticks that start
more than one step late are counted as overruns and logged. When
sim.epoch is unset, simulated zero is the moment of launch.`,
		Usage: "crater fly [flags]",
		Examples: []cli.Example{
			{Description: "Fly with locked memory", Command: "crater fly -c rocket.yaml --mlock"},
		},
		Flags: flags.flags("fly", true),
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFlight(ctx, env, &flags, true)
		},
	}
}

// runReport is printed when a run ends.
type runReport struct {
	Ticks    uint64            `json:"ticks"`
	Elapsed  string            `json:"elapsed"`
	Reason   string            `json:"reason"`
	Seed     uint64            `json:"seed"`
	Records  uint64            `json:"records"`
	Dropped  uint64            `json:"dropped"`
	Overruns uint64            `json:"overruns"`
	Log      string            `json:"log,omitempty"`
	Channels map[string]uint64 `json:"channels,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func runFlight(ctx context.Context, env Env, flags *runFlags, paced bool) (err error) {
	session, err := flags.open(env, func(cfg *config.Config) {
		if flags.record != "" {
			cfg.Recorder.Path = flags.record
		}
		if flags.maxTicks != 0 {
			cfg.Sim.MaxTicks = flags.maxTicks
		}
		if flags.flagSet != nil && flags.flagSet.Changed("seed") {
			cfg.Sim.Seed = flags.seed
		}
		if paced {
			cfg.Sim.Realtime = true
		}
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, session.Close()) }()
	cfg, logger := session.config, session.logger

	if flags.mlock {
		if err := lockMemory(); err != nil {
			return fmt.Errorf("locking memory: %w", err)
		}
		logger.Info("process memory locked")
	}
	if flags.randomSeed {
		cfg.Sim.Seed = seed.Random()
	}

	epoch, err := cfg.Epoch()
	if err != nil {
		return err
	}
	if epoch.IsZero() && cfg.Sim.Realtime {
		epoch = time.Now().UTC()
	}

	service, err := telemetry.NewService(
		telemetry.WithRemap(cfg.Telemetry.Remap),
		telemetry.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	manager, err := node.NewManager(node.ManagerConfig{
		Telemetry: service,
		Params:    session.params.Nominal(),
		Configs:   cfg.NodeConfigs(),
		Seed:      cfg.Sim.Seed,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	// teardown closes the manager, which closes every sender, then
	// stops the recorder once it has drained. It runs once.
	var (
		rec      *recorder.Recorder
		recorded recorder.Summary
		tornDown bool
	)
	teardown := func() error {
		if tornDown {
			return nil
		}
		tornDown = true
		closeErr := manager.Close()
		if rec != nil {
			summary, recordErr := rec.Stop()
			recorded = summary
			closeErr = multierr.Append(closeErr, recordErr)
		}
		return closeErr
	}
	defer func() { err = multierr.Append(err, teardown()) }()
	if err := nodes.Builtin().Build(manager, cfg.Nodes); err != nil {
		return err
	}

	if flags.metricsAddr != "" {
		metrics, metricsErr := serveMetrics(flags.metricsAddr, service, logger)
		if metricsErr != nil {
			return metricsErr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, metrics.Shutdown(shutdownCtx))
		}()
	}

	if cfg.Recorder.Path != "" {
		var closeLog func() error
		rec, closeLog, err = startRecorder(ctx, cfg.Recorder, service, logger)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Combine(err, teardown(), closeLog()) }()
	}

	var pacer *executor.WallPacer
	executorConfig := executor.Config{
		Step:     cfg.Sim.Step,
		Epoch:    epoch,
		MaxTicks: cfg.Sim.MaxTicks,
		Logger:   logger,
	}
	if cfg.Sim.Realtime {
		pacer = executor.NewWallPacer(clock.Real(), logger)
		executorConfig.Pacer = pacer
	}
	exec, err := executor.New(executorConfig)
	if err != nil {
		return err
	}

	logger.Info("starting run", append([]any{"nodes", manager.Len(), "seed", cfg.Sim.Seed, "realtime", cfg.Sim.Realtime},
		version.Fields()...)...)
	result, runErr := exec.Run(ctx, manager)
	if errors.Is(runErr, context.Canceled) {
		logger.Info("run interrupted", "ticks", result.Ticks)
		runErr = nil
	}

	report := runReport{
		Ticks:   result.Ticks,
		Elapsed: result.Elapsed.String(),
		Reason:  result.Reason.String(),
		Seed:    cfg.Sim.Seed,
		Log:     cfg.Recorder.Path,
	}
	if pacer != nil {
		report.Overruns = pacer.Overruns()
	}

	closeErr := teardown()
	report.Records = recorded.Records
	report.Dropped = recorded.Dropped
	report.Channels = recorded.PerChannel
	if runErr != nil {
		report.Error = runErr.Error()
	}

	if err := printReport(env, flags.json, report); err != nil {
		return err
	}
	if runErr != nil {
		var nodeErr *executor.NodeError
		if errors.As(runErr, &nodeErr) {
			return &process.ExitError{Code: exitNodeFailed, Err: runErr}
		}
		return runErr
	}
	return closeErr
}

// startRecorder opens the flight log and starts recording. The returned
// function flushes and closes the file; call it after the recorder
// finished.
func startRecorder(ctx context.Context, cfg config.RecorderConfig, service *telemetry.Service, logger *slog.Logger) (*recorder.Recorder, func() error, error) {
	compression, err := recorder.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, nil, err
	}
	capacity, err := ringbuffer.CapacityOf(cfg.Capacity)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating flight-log directory: %w", err)
	}
	file, err := os.Create(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating flight log: %w", err)
	}
	writer, err := recorder.NewWriter(file, recorder.WriterOptions{
		Compression: compression,
		Recipients:  cfg.Recipients,
	})
	if err != nil {
		return nil, nil, multierr.Append(err, file.Close())
	}
	rec := recorder.New(service, recorder.Config{
		Patterns: cfg.Patterns,
		Capacity: capacity,
		Logger:   logger,
	}, writer)
	// The recorder is stopped at teardown, not when ctx ends, so an
	// interrupted run still flushes what it produced.
	if err := rec.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, nil, multierr.Combine(err, writer.Close(), file.Close())
	}
	logger.Info("recording flight log", "path", cfg.Path, "compression", compression.String(),
		"sealed", len(cfg.Recipients) > 0)
	return rec, file.Close, nil
}

func printReport(env Env, asJSON bool, report runReport) error {
	if asJSON {
		return cli.WriteJSON(env.Stdout, report)
	}
	fmt.Fprintf(env.Stdout, "ticks:    %d\n", report.Ticks)
	fmt.Fprintf(env.Stdout, "elapsed:  %s\n", report.Elapsed)
	fmt.Fprintf(env.Stdout, "reason:   %s\n", report.Reason)
	fmt.Fprintf(env.Stdout, "seed:     %d\n", report.Seed)
	if report.Log != "" {
		fmt.Fprintf(env.Stdout, "records:  %d (%d dropped) -> %s\n", report.Records, report.Dropped, report.Log)
	}
	if report.Overruns > 0 {
		fmt.Fprintf(env.Stdout, "overruns: %d\n", report.Overruns)
	}
	return nil
}
