// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/crater-avionics/crater/lib/executor"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/params"
	"github.com/crater-avionics/crater/lib/recorder"
	"github.com/crater-avionics/crater/lib/seed"
	"github.com/crater-avionics/crater/lib/telemetry"
)

// Model adds a run's nodes to its manager.
type Model func(manager *node.Manager) error

// Campaign describes a set of dispersed runs.
type Campaign struct {
	// Name labels the campaign in the store.
	Name string

	// Runs is the number of runs. Required.
	Runs int

	// Workers is the number of concurrent runs. 0 means one per CPU.
	Workers int

	// BaseSeed roots every run seed.
	BaseSeed uint64

	// Params may hold distributions; each run samples its own copy.
	Params *params.Set

	// Configs is the node wiring shared by every run.
	Configs map[string]node.Config

	// Remap is applied to every run's telemetry service.
	Remap map[string]string

	// Executor is the per-run executor configuration. Pacer must be nil:
	// campaigns run faster than real time.
	Executor executor.Config

	// Model builds the nodes. Required.
	Model Model

	// Patterns select the channels fingerprinted (and logged). Default:
	// every channel.
	Patterns []string

	// LogDir, when set, receives one flight log per run, named
	// run_NNNN.crlog.
	LogDir string

	// LogCompression applies to the per-run flight logs.
	LogCompression recorder.Compression

	// Store persists results. Optional.
	Store *Store

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// RunResult is the outcome of one run.
type RunResult struct {
	Index       int
	Seed        uint64
	Ticks       uint64
	Elapsed     time.Duration
	Wall        time.Duration
	Reason      executor.Reason
	Records     uint64
	Fingerprint recorder.Fingerprint
	// Params are the sampled values the run used.
	Params  map[string]any
	LogFile string
	// Err is the run's failure: construction or step error. A failed
	// run does not stop the campaign.
	Err error
}

// Summary reports a finished campaign.
type Summary struct {
	ID        uuid.UUID
	Runs      int
	Succeeded int
	Failed    int
	Wall      time.Duration
}

func (c *Campaign) validate() error {
	var errs []error
	if c.Runs < 1 {
		errs = append(errs, fmt.Errorf("campaign needs at least one run, got %d", c.Runs))
	}
	if c.Model == nil {
		errs = append(errs, fmt.Errorf("campaign model is required"))
	}
	if c.Executor.Pacer != nil {
		errs = append(errs, fmt.Errorf("campaign runs cannot be paced"))
	}
	if c.Executor.Step <= 0 {
		errs = append(errs, fmt.Errorf("campaign step must be positive"))
	}
	return errors.Join(errs...)
}

// RunSeed returns the seed of run index in a campaign rooted at base.
func RunSeed(base uint64, index int) uint64 {
	return seed.Derive(base, uint64(index))
}

// Run executes every run and returns when all have finished, the
// context ends, or the store fails. Individual run failures are
// counted, not returned.
func (c *Campaign) Run(ctx context.Context) (Summary, error) {
	if err := c.validate(); err != nil {
		return Summary{}, err
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, c.Runs)
	if c.LogDir != "" {
		if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
			return Summary{}, fmt.Errorf("creating log directory: %w", err)
		}
	}

	summary := Summary{ID: uuid.New(), Runs: c.Runs}
	if c.Store != nil {
		if err := c.Store.CreateCampaign(ctx, summary.ID, c); err != nil {
			return Summary{}, err
		}
	}
	logger = logger.With("campaign", summary.ID.String())
	logger.Info("campaign started", "runs", c.Runs, "workers", workers, "base_seed", c.BaseSeed)
	start := time.Now()

	group, groupCtx := errgroup.WithContext(ctx)
	results := make(chan RunResult, workers)
	var next atomic.Int64

	var running sync.WaitGroup
	for worker := range workers {
		running.Add(1)
		group.Go(func() error {
			defer running.Done()
			for {
				index := int(next.Add(1) - 1)
				if index >= c.Runs {
					return nil
				}
				result := c.runOne(groupCtx, index, logger.With("worker", worker, "run", index))
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				select {
				case results <- result:
				case <-groupCtx.Done():
					return groupCtx.Err()
				}
			}
		})
	}
	go func() {
		running.Wait()
		close(results)
	}()

	group.Go(func() error {
		for result := range results {
			if result.Err != nil {
				summary.Failed++
				logger.Warn("run failed", "run", result.Index, "seed", result.Seed, "error", result.Err)
			} else {
				summary.Succeeded++
				logger.Debug("run finished", "run", result.Index, "ticks", result.Ticks,
					"reason", result.Reason.String(), "fingerprint", result.Fingerprint.Combined.String())
			}
			if c.Store != nil {
				if err := c.Store.SaveRun(groupCtx, summary.ID, result); err != nil {
					return err
				}
			}
		}
		return nil
	})

	err := group.Wait()
	summary.Wall = time.Since(start)
	if c.Store != nil {
		err = multierr.Append(err, c.Store.FinishCampaign(context.WithoutCancel(ctx), summary))
	}
	logger.Info("campaign finished", "succeeded", summary.Succeeded, "failed", summary.Failed,
		"wall", summary.Wall, "error", err)
	return summary, err
}

// RunOne executes run index alone, exactly as Run would. Use it to
// reproduce a run from a stored campaign.
func (c *Campaign) RunOne(ctx context.Context, index int) (RunResult, error) {
	if err := c.validate(); err != nil {
		return RunResult{}, err
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	result := c.runOne(ctx, index, logger.With("run", index))
	return result, result.Err
}

// runOne builds a fresh service and manager, records, and steps to
// completion. Every failure lands in RunResult.Err.
func (c *Campaign) runOne(ctx context.Context, index int, logger *slog.Logger) (result RunResult) {
	runSeed := RunSeed(c.BaseSeed, index)
	result = RunResult{Index: index, Seed: runSeed}
	started := time.Now()
	defer func() { result.Wall = time.Since(started) }()

	// Parameter draws come first from the run's stream so that adding
	// nodes never changes the dispersion.
	stream := seed.NewSplitMix64(runSeed)
	base := c.Params
	if base == nil {
		base = params.New()
	}
	sampled := base.Sample(stream.NewRand())
	result.Params = sampled.Values()

	service, err := telemetry.NewService(telemetry.WithRemap(c.Remap), telemetry.WithLogger(logger))
	if err != nil {
		result.Err = err
		return result
	}
	manager, err := node.NewManager(node.ManagerConfig{
		Telemetry: service,
		Params:    sampled,
		Configs:   c.Configs,
		Seed:      stream.Uint64(),
		Logger:    logger,
	})
	if err != nil {
		result.Err = err
		return result
	}
	if err := c.Model(manager); err != nil {
		result.Err = multierr.Append(err, manager.Close())
		return result
	}

	fingerprinter := recorder.NewFingerprinter()
	sinks := []recorder.Sink{fingerprinter}
	var logFile *os.File
	if c.LogDir != "" {
		result.LogFile = filepath.Join(c.LogDir, fmt.Sprintf("run_%04d.crlog", index))
		logFile, err = os.Create(result.LogFile)
		if err != nil {
			result.Err = multierr.Append(err, manager.Close())
			return result
		}
		defer logFile.Close()
		writer, err := recorder.NewWriter(logFile, recorder.WriterOptions{Compression: c.LogCompression})
		if err != nil {
			result.Err = multierr.Append(err, manager.Close())
			return result
		}
		sinks = append(sinks, writer)
	}

	// The recorder outlives the executor: it is stopped after the
	// manager closes every sender, and drains what is buffered.
	rec := recorder.New(service, recorder.Config{
		Patterns: c.Patterns,
		Rand:     stream.NewRand(),
		Logger:   logger,
	}, sinks...)
	if err := rec.Start(context.WithoutCancel(ctx)); err != nil {
		result.Err = multierr.Append(err, manager.Close())
		return result
	}

	executorConfig := c.Executor
	executorConfig.Logger = logger
	exec, err := executor.New(executorConfig)
	if err != nil {
		result.Err = multierr.Append(err, manager.Close())
		rec.Stop()
		return result
	}
	outcome, runErr := exec.Run(ctx, manager)
	result.Ticks = outcome.Ticks
	result.Elapsed = outcome.Elapsed
	result.Reason = outcome.Reason

	closeErr := manager.Close()
	recorded, recordErr := rec.Stop()
	result.Records = recorded.Records
	result.Fingerprint = fingerprinter.Fingerprint()
	result.Err = multierr.Combine(runErr, closeErr, recordErr)
	return result
}
