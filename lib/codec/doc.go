// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Crater's standard CBOR encoding configuration.
//
// Flight logs and run fingerprints are CBOR. Every package that writes
// or hashes telemetry payloads goes through this package so that the
// same value always produces the same bytes: the encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2) with nanosecond timestamps.
//
// For buffer-oriented operations (fingerprints, database blobs):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (flight logs):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Types that are only ever CBOR carry `cbor` struct tags. Types also
// emitted as JSON by the CLI carry `json` tags, which fxamacker/cbor
// reads as a fallback. Never use both on one field.
package codec
