// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package recorder captures telemetry channels into flight logs and run
// fingerprints.
//
// A [Recorder] subscribes to every channel matching a set of glob
// patterns and waits on all of them with one ringchannel.Select. Each
// value it receives becomes a [Record] handed to one or more [Sink]
// implementations: a [Writer] that produces a flight-log file, and a
// [Fingerprinter] that hashes the stream so two runs can be compared
// bit for bit.
//
// # File format
//
// A flight log starts with a 10-byte plaintext header:
//
//	offset 0  "CRATRLOG"   magic
//	offset 8  compression  0 none, 1 lz4, 2 zstd
//	offset 9  flags        bit 0 set when the body is age-encrypted
//
// The body is an optional age envelope around a compressed stream
// (lz4 frame or zstd) of deterministic CBOR records. [Open] reverses
// the layering.
package recorder
