// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package seed derives reproducible random seeds.
//
// A run has one base seed. Everything random in the run (per-node
// generators, Monte-Carlo parameter draws, select tie breaks) takes its
// seed from a [SplitMix64] stream started at that base, so one number
// reproduces the whole run.
package seed

import "math/rand/v2"

// SplitMix64 is the SplitMix64 generator of Steele, Lea, and Flood. It
// is a rand.Source with good avalanche behavior on sequential seeds,
// which makes it the usual choice for seeding other generators.
//
// SplitMix64 is not safe for concurrent use.
type SplitMix64 struct {
	state uint64
}

// NewSplitMix64 returns a generator started at seed.
func NewSplitMix64(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

// Uint64 returns the next value in the stream.
func (s *SplitMix64) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// NewRand returns a PCG generator seeded with the next two values of
// the stream.
func (s *SplitMix64) NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(s.Uint64(), s.Uint64()))
}

// Derive returns the seed for item index of a family rooted at base.
// Unlike drawing from a shared stream, the result does not depend on
// the order in which items are derived, so parallel workers can compute
// their seeds independently.
func Derive(base, index uint64) uint64 {
	return NewSplitMix64(base ^ NewSplitMix64(index).Uint64()).Uint64()
}

// Random returns a fresh seed from the runtime's entropy source, for
// runs where the user did not fix one.
func Random() uint64 {
	return rand.Uint64()
}
