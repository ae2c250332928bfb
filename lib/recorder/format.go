// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"errors"
	"fmt"
	"time"

	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/codec"
)

// magic opens every flight log.
var magic = [8]byte{'C', 'R', 'A', 'T', 'R', 'L', 'O', 'G'}

const (
	headerSize = 10

	flagSealed byte = 1 << 0
)

var (
	// ErrNotFlightLog means the input does not start with the flight-log
	// magic.
	ErrNotFlightLog = errors.New("not a crater flight log")

	// ErrSealed means the log is encrypted and no identity was given.
	ErrSealed = errors.New("flight log is sealed; an identity is required")
)

// Compression identifies the stream compression of a flight log. The
// values are stored in the file header.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the configuration name of a compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Record is one telemetry value as stored in a flight log. Value holds
// the payload's CBOR encoding; decode it with Decode.
type Record struct {
	Channel   string           `cbor:"channel"`
	Type      string           `cbor:"type"`
	UTC       int64            `cbor:"utc_ns"`
	HasUTC    bool             `cbor:"has_utc"`
	Monotonic int64            `cbor:"mono_ns"`
	Value     codec.RawMessage `cbor:"value"`
}

// NewRecord encodes a received value.
func NewRecord(channel, typeName string, ts clock.Timestamp, value any) (Record, error) {
	encoded, err := codec.Marshal(value)
	if err != nil {
		return Record{}, fmt.Errorf("encoding %s value: %w", channel, err)
	}
	record := Record{
		Channel:   channel,
		Type:      typeName,
		HasUTC:    ts.HasUTC,
		Monotonic: int64(ts.Monotonic),
		Value:     encoded,
	}
	if ts.HasUTC {
		record.UTC = ts.UTC.UnixNano()
	}
	return record, nil
}

// Timestamp returns the record's production time.
func (r Record) Timestamp() clock.Timestamp {
	ts := clock.Timestamp{HasUTC: r.HasUTC, Monotonic: time.Duration(r.Monotonic)}
	if r.HasUTC {
		ts.UTC = time.Unix(0, r.UTC).UTC()
	}
	return ts
}

// Decode unmarshals the payload into v.
func (r Record) Decode(v any) error {
	return codec.Unmarshal(r.Value, v)
}
