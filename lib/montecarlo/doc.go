// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package montecarlo runs dispersed simulation campaigns.
//
// A [Campaign] runs the same model many times. Each run gets its own
// seed, derived from the campaign's base seed and the run index, and
// from that seed draws its parameter dispersions and its node
// generators. Re-running a single index with the same base seed
// reproduces it exactly, which the stored fingerprint confirms.
//
// Workers claim run indices from a shared atomic counter and report
// [RunResult] values over a channel to one collector, which persists
// them in a [Store] (SQLite) under a campaign UUID.
package montecarlo
