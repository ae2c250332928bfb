// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/crater-avionics/crater/lib/codec"
)

// Reader decodes records from a flight log.
type Reader struct {
	compression Compression
	sealed      bool
	decoder     *codec.Decoder
	zstd        *zstd.Decoder
}

// Open reads the header from r and prepares to decode the body. A
// sealed log needs at least one matching identity.
func Open(r io.Reader, identities ...age.Identity) (*Reader, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotFlightLog
		}
		return nil, fmt.Errorf("reading flight-log header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], magic[:]) {
		return nil, ErrNotFlightLog
	}

	reader := &Reader{
		compression: Compression(header[8]),
		sealed:      header[9]&flagSealed != 0,
	}

	body := r
	if reader.sealed {
		if len(identities) == 0 {
			return nil, ErrSealed
		}
		plaintext, err := age.Decrypt(body, identities...)
		if err != nil {
			return nil, fmt.Errorf("opening sealed flight log: %w", err)
		}
		body = plaintext
	}

	switch reader.compression {
	case CompressionNone:
	case CompressionLZ4:
		body = lz4.NewReader(body)
	case CompressionZstd:
		decompressor, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		reader.zstd = decompressor
		body = decompressor
	default:
		return nil, fmt.Errorf("flight log has unsupported compression: %s", reader.compression)
	}

	reader.decoder = codec.NewDecoder(body)
	return reader, nil
}

// Compression returns the body compression named in the header.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Sealed reports whether the body is age-encrypted.
func (r *Reader) Sealed() bool {
	return r.sealed
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var record Record
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decoding record: %w", err)
	}
	return record, nil
}

// Close releases decoder resources. It does not close the underlying
// reader.
func (r *Reader) Close() error {
	if r.zstd != nil {
		r.zstd.Close()
		r.zstd = nil
	}
	return nil
}

// ParseIdentities reads age identities (AGE-SECRET-KEY-1... lines)
// from r.
func ParseIdentities(r io.Reader) ([]age.Identity, error) {
	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing age identities: %w", err)
	}
	return identities, nil
}
