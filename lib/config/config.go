// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crater-avionics/crater/lib/chanpath"
	"github.com/crater-avionics/crater/lib/node"
)

// Config is the master configuration for a simulation, flight, or
// Monte-Carlo campaign.
type Config struct {
	// Root is the base directory relative paths expand against through
	// ${CRATER_ROOT}.
	Root string `yaml:"root"`

	// Params is the parameter file handed to every node. Optional.
	Params string `yaml:"params"`

	Sim        SimConfig        `yaml:"sim"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Nodes      []NodeSpec       `yaml:"nodes"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Logging    LoggingConfig    `yaml:"logging"`
	MonteCarlo MonteCarloConfig `yaml:"montecarlo"`
}

// SimConfig configures the executor.
type SimConfig struct {
	// Step is the fixed tick length.
	// Default: 10ms
	Step time.Duration `yaml:"dt"`

	// Epoch is the RFC 3339 UTC instant of tick zero. Empty means the
	// simulated clock carries no UTC.
	Epoch string `yaml:"epoch"`

	// Seed roots every node generator.
	Seed uint64 `yaml:"seed"`

	// MaxTicks ends the run after this many ticks. 0 runs until a node
	// stops it.
	MaxTicks uint64 `yaml:"max_ticks"`

	// Realtime paces ticks against the wall clock.
	Realtime bool `yaml:"realtime"`
}

// TelemetryConfig configures the telemetry service.
type TelemetryConfig struct {
	// Remap redirects channel paths: every publish and subscribe of a
	// key resolves to its value.
	Remap map[string]string `yaml:"remap"`
}

// NodeSpec declares one node. Nodes are constructed and stepped in the
// order they appear.
type NodeSpec struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Inputs  map[string]string `yaml:"inputs"`
	Outputs map[string]string `yaml:"outputs"`
}

// RecorderConfig configures the flight-log recorder.
type RecorderConfig struct {
	// Path of the log file. Empty disables recording.
	Path string `yaml:"path"`

	// Patterns select channels by glob. Default: ["/**"]
	Patterns []string `yaml:"patterns"`

	// Capacity bounds each recorder receiver. 0 is unbounded.
	Capacity int `yaml:"capacity"`

	// Compression is one of "none", "zstd", "lz4".
	// Default: zstd
	Compression string `yaml:"compression"`

	// Recipients are age public keys. When set the log is sealed.
	Recipients []string `yaml:"recipients"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: info
	Level string `yaml:"level"`

	// Format is one of "auto", "text", "json". Auto picks text on a
	// terminal.
	// Default: auto
	Format string `yaml:"format"`

	// File redirects logs to a rotated file.
	File string `yaml:"file"`

	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
	MaxAgeDays int `yaml:"max_age_days"`
}

// MonteCarloConfig configures a campaign.
type MonteCarloConfig struct {
	// Runs is the number of dispersed runs.
	Runs int `yaml:"runs"`

	// Workers is the number of concurrent runs. 0 means one per CPU.
	Workers int `yaml:"workers"`

	// Database is the SQLite results file.
	// Default: ${CRATER_ROOT}/montecarlo.db
	Database string `yaml:"database"`
}

// Compression values accepted by RecorderConfig.
var compressionValues = []string{"none", "zstd", "lz4"}

var (
	levelValues  = []string{"debug", "info", "warn", "error"}
	formatValues = []string{"auto", "text", "json"}
)

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist to give every optional field a sensible value, not as a
// fallback: the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "crater")

	return &Config{
		Root: defaultRoot,
		Sim: SimConfig{
			Step: 10 * time.Millisecond,
		},
		Recorder: RecorderConfig{
			Patterns:    []string{"/**"},
			Compression: "zstd",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		MonteCarlo: MonteCarloConfig{
			Runs:     1,
			Database: "${CRATER_ROOT}/montecarlo.db",
		},
	}
}

// Load loads configuration from the CRATER_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// If CRATER_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CRATER_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CRATER_CONFIG environment variable not set; " +
			"set it to the path of your crater.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// decoded over Default; unknown keys are errors.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over Default and expands path
// variables.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CRATER_ROOT": c.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Root = expandVars(c.Root, vars)
	vars["CRATER_ROOT"] = c.Root // Update for dependent paths.

	c.Params = expandVars(c.Params, vars)
	c.Recorder.Path = expandVars(c.Recorder.Path, vars)
	c.Logging.File = expandVars(c.Logging.File, vars)
	c.MonteCarlo.Database = expandVars(c.MonteCarlo.Database, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Epoch parses Sim.Epoch. The zero time means no UTC.
func (c *Config) Epoch() (time.Time, error) {
	if c.Sim.Epoch == "" {
		return time.Time{}, nil
	}
	epoch, err := time.Parse(time.RFC3339Nano, c.Sim.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("sim.epoch: %w", err)
	}
	return epoch.UTC(), nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Sim.Step <= 0 {
		errs = append(errs, fmt.Errorf("sim.dt must be positive, got %v", c.Sim.Step))
	}
	if _, err := c.Epoch(); err != nil {
		errs = append(errs, err)
	}

	for from, to := range c.Telemetry.Remap {
		if _, err := chanpath.Parse(from); err != nil {
			errs = append(errs, fmt.Errorf("telemetry.remap key: %w", err))
		}
		if _, err := chanpath.Parse(to); err != nil {
			errs = append(errs, fmt.Errorf("telemetry.remap[%s]: %w", from, err))
		}
	}

	if len(c.Nodes) == 0 {
		errs = append(errs, fmt.Errorf("nodes: at least one node is required"))
	}
	seen := make(map[string]bool, len(c.Nodes))
	for i, spec := range c.Nodes {
		switch {
		case spec.Name == "":
			errs = append(errs, fmt.Errorf("nodes[%d].name is required", i))
		case seen[spec.Name]:
			errs = append(errs, fmt.Errorf("nodes[%d]: duplicate node name %q", i, spec.Name))
		}
		seen[spec.Name] = true
		if spec.Type == "" {
			errs = append(errs, fmt.Errorf("nodes[%d].type is required", i))
		}
		errs = append(errs, validateWiring(spec.Name, "inputs", spec.Inputs)...)
		errs = append(errs, validateWiring(spec.Name, "outputs", spec.Outputs)...)
	}

	if !slices.Contains(compressionValues, c.Recorder.Compression) {
		errs = append(errs, fmt.Errorf("recorder.compression must be one of: %v", compressionValues))
	}
	if c.Recorder.Capacity < 0 {
		errs = append(errs, fmt.Errorf("recorder.capacity must not be negative"))
	}
	for _, pattern := range c.Recorder.Patterns {
		if len(pattern) == 0 || pattern[0] != '/' {
			errs = append(errs, fmt.Errorf("recorder.patterns: %q must start with /", pattern))
		}
	}

	if !slices.Contains(levelValues, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", levelValues))
	}
	if !slices.Contains(formatValues, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formatValues))
	}

	if c.MonteCarlo.Runs < 1 {
		errs = append(errs, fmt.Errorf("montecarlo.runs must be at least 1"))
	}
	if c.MonteCarlo.Workers < 0 {
		errs = append(errs, fmt.Errorf("montecarlo.workers must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateWiring(nodeName, field string, wiring map[string]string) []error {
	var errs []error
	for logical, path := range wiring {
		if logical == "" {
			errs = append(errs, fmt.Errorf("node %s %s: empty logical name", nodeName, field))
		}
		if _, err := chanpath.Parse(path); err != nil {
			errs = append(errs, fmt.Errorf("node %s %s[%s]: %w", nodeName, field, logical, err))
		}
	}
	return errs
}

// NodeConfigs returns the wiring of every declared node, keyed by name,
// in the form the node manager consumes.
func (c *Config) NodeConfigs() map[string]node.Config {
	configs := make(map[string]node.Config, len(c.Nodes))
	for _, spec := range c.Nodes {
		configs[spec.Name] = node.Config{Inputs: spec.Inputs, Outputs: spec.Outputs}
	}
	return configs
}
