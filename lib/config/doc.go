// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Crater runs.
//
// Configuration is loaded from a single file specified by either the
// CRATER_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no environment override
// of individual values.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CRATER_ROOT}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Sim, Telemetry, Nodes, Recorder,
//     Logging, and MonteCarlo sections
//   - [Default] -- returns a Config with every optional field filled
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
//   - [Config.NodeConfigs] -- wiring maps for the node manager
package config
