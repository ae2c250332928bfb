// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Crater packages.
//
// [RequireReceive] bounds a wait on another goroutine with a real
// timeout. It is the only place tests use wall-clock timeouts;
// everything else runs on simulated or fake clocks.
//
// [WriteFile] stages an input file in a per-test temporary directory.
//
// Helpers fail the test with t.Fatalf rather than returning errors.
package testutil
