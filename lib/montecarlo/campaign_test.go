// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package montecarlo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/config"
	"github.com/crater-avionics/crater/lib/executor"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/nodes"
	"github.com/crater-avionics/crater/lib/params"
	"github.com/crater-avionics/crater/lib/recorder"
	"github.com/crater-avionics/crater/lib/testutil"
)

const campaignNodes = `
nodes:
  - name: wave
    type: sine
    outputs: {out: /signal}
  - name: sensor
    type: noise
    inputs: {in: /signal}
    outputs: {out: /measured}
  - name: timer
    type: stop_after
`

const campaignParams = `
wave:
  amplitude: {dist: normal, mean: 10, stddev: 2}
  frequency: {dist: uniform, min: 1, max: 3}
sensor:
  stddev: 0.1
timer:
  duration: 50ms
`

func newCampaign(t *testing.T, runs, workers int) *Campaign {
	t.Helper()
	cfg, err := config.Parse([]byte(campaignNodes))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	set, err := params.Parse([]byte(campaignParams), params.YAML)
	if err != nil {
		t.Fatalf("params.Parse: %v", err)
	}
	registry := nodes.Builtin()
	return &Campaign{
		Name:     t.Name(),
		Runs:     runs,
		Workers:  workers,
		BaseSeed: 2026,
		Params:   set,
		Configs:  cfg.NodeConfigs(),
		Executor: executor.Config{Step: 10 * time.Millisecond},
		Model: func(manager *node.Manager) error {
			return registry.Build(manager, cfg.Nodes)
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), "montecarlo.db"), nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func TestCampaignPersistsEveryRun(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	campaign := newCampaign(t, 8, 3)
	campaign.Store = store

	summary, err := campaign.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Runs != 8 || summary.Succeeded != 8 || summary.Failed != 0 {
		t.Errorf("Summary: %+v", summary)
	}

	campaigns, err := store.Campaigns(context.Background())
	if err != nil {
		t.Fatalf("Campaigns: %v", err)
	}
	if len(campaigns) != 1 || campaigns[0].ID != summary.ID || campaigns[0].Succeeded != 8 {
		t.Fatalf("Campaigns: %+v", campaigns)
	}
	if campaigns[0].FinishedAt.IsZero() || campaigns[0].Step != 10*time.Millisecond {
		t.Errorf("campaign record: %+v", campaigns[0])
	}

	runs, err := store.Runs(context.Background(), summary.ID)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 8 {
		t.Fatalf("stored %d runs, want 8", len(runs))
	}
	fingerprints := make(map[string]bool)
	for i, run := range runs {
		if run.Index != i || run.Seed != RunSeed(2026, i) {
			t.Errorf("run %d: index %d seed %d", i, run.Index, run.Seed)
		}
		if run.Ticks != 5 || run.Reason != "stop" || run.Error != "" {
			t.Errorf("run %d: %+v", i, run)
		}
		// Two channels, five samples each.
		if run.Records != 10 {
			t.Errorf("run %d recorded %d values", i, run.Records)
		}
		if _, ok := run.Params["/wave/amplitude"].(float64); !ok {
			t.Errorf("run %d: sampled amplitude missing from %v", i, run.Params)
		}
		fingerprints[run.Fingerprint] = true
	}
	if len(fingerprints) != 8 {
		t.Errorf("dispersed runs share fingerprints: %d distinct of 8", len(fingerprints))
	}
}

func TestRunOneReproducesCampaignRun(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	campaign := newCampaign(t, 4, 2)
	campaign.Store = store
	summary, err := campaign.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	runs, err := store.Runs(context.Background(), summary.ID)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}

	// Worker count and scheduling must not matter.
	replay := newCampaign(t, 4, 1)
	for _, index := range []int{0, 3} {
		result, err := replay.RunOne(context.Background(), index)
		if err != nil {
			t.Fatalf("RunOne(%d): %v", index, err)
		}
		if result.Fingerprint.Combined.String() != runs[index].Fingerprint {
			t.Errorf("run %d did not replay bit for bit", index)
		}
		if result.Params["/wave/amplitude"] != runs[index].Params["/wave/amplitude"] {
			t.Errorf("run %d sampled different parameters", index)
		}
	}
}

func TestRunOneWithUnpublishedInput(t *testing.T) {
	t.Parallel()
	// The sensor's input has no publisher at all.
	cfg, err := config.Parse([]byte(`
nodes:
  - name: sensor
    type: noise
    inputs: {in: /signal}
    outputs: {out: /measured}
  - name: timer
    type: stop_after
`))
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	campaign := newCampaign(t, 1, 1)
	campaign.Configs = cfg.NodeConfigs()
	campaign.Model = func(manager *node.Manager) error {
		return nodes.Builtin().Build(manager, cfg.Nodes)
	}

	results := make(chan RunResult, 1)
	go func() {
		result, err := campaign.RunOne(context.Background(), 0)
		if err != nil {
			t.Errorf("RunOne: %v", err)
		}
		results <- result
	}()
	result := testutil.RequireReceive(t, results, 5*time.Second, "waiting for run with an unpublished input")
	if result.Ticks != 5 || result.Reason != executor.ReasonStop || result.Records != 0 {
		t.Errorf("result: ticks %d reason %v records %d", result.Ticks, result.Reason, result.Records)
	}
}

func TestFailedRunsAreCountedNotFatal(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	set, _ := params.Parse([]byte(`gate: {x: {dist: uniform, min: 0, max: 1}}`), params.YAML)
	boom := errors.New("gate tripped")
	campaign := &Campaign{
		Runs:     12,
		Workers:  4,
		BaseSeed: 9,
		Params:   set,
		Configs:  map[string]node.Config{"gate": {}},
		Executor: executor.Config{Step: time.Millisecond, MaxTicks: 3},
		Store:    store,
		Model: func(manager *node.Manager) error {
			return manager.AddNode("gate", func(ctx *node.Context) (node.Node, error) {
				x, err := ctx.Params().Float(ctx.Param("x"))
				if err != nil {
					return nil, err
				}
				return node.StepFunc(func(tick uint64, _ time.Duration, _ clock.Clock) (node.StepResult, error) {
					if tick == 1 && x > 0.5 {
						return node.Continue, boom
					}
					return node.Continue, nil
				}), nil
			})
		},
	}

	summary, err := campaign.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Succeeded+summary.Failed != 12 {
		t.Errorf("Summary: %+v", summary)
	}
	runs, _ := store.Runs(context.Background(), summary.ID)
	failed := 0
	for _, run := range runs {
		x := run.Params["/gate/x"].(float64)
		if (x > 0.5) != (run.Error != "") {
			t.Errorf("run %d: x=%v error=%q", run.Index, x, run.Error)
		}
		if run.Error != "" {
			failed++
			if run.Reason != "failed" || run.Ticks != 1 {
				t.Errorf("failed run %d: %+v", run.Index, run)
			}
		}
	}
	if failed != summary.Failed {
		t.Errorf("stored %d failures, summary says %d", failed, summary.Failed)
	}
}

func TestCampaignWritesFlightLogs(t *testing.T) {
	t.Parallel()
	campaign := newCampaign(t, 2, 2)
	campaign.LogDir = filepath.Join(t.TempDir(), "logs")
	campaign.LogCompression = recorder.CompressionZstd

	if _, err := campaign.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{"run_0000.crlog", "run_0001.crlog"} {
		file, err := os.Open(filepath.Join(campaign.LogDir, name))
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		reader, err := recorder.Open(file)
		if err != nil {
			file.Close()
			t.Fatalf("recorder.Open %s: %v", name, err)
		}
		count := 0
		for {
			if _, err := reader.Next(); err != nil {
				break
			}
			count++
		}
		reader.Close()
		file.Close()
		if count != 10 {
			t.Errorf("%s holds %d records, want 10", name, count)
		}
	}
}

func TestCampaignValidation(t *testing.T) {
	t.Parallel()
	campaign := &Campaign{}
	_, err := campaign.Run(context.Background())
	if err == nil {
		t.Fatal("empty campaign should fail")
	}
}

func TestCampaignCancelled(t *testing.T) {
	t.Parallel()
	campaign := newCampaign(t, 50, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := campaign.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if summary.Succeeded == 50 {
		t.Error("cancelled campaign ran to completion")
	}
}
