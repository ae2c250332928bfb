// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.uber.org/multierr"

	"github.com/crater-avionics/crater/lib/codec"
)

// Sink consumes records from a Recorder. Write is called from the
// recorder goroutine only. Close is called once, after the last Write.
type Sink interface {
	Write(Record) error
	Close() error
}

// WriterOptions configures a flight-log Writer.
type WriterOptions struct {
	Compression Compression

	// Recipients are age public keys (age1...). When non-empty the body
	// is encrypted to all of them.
	Recipients []string
}

// Writer encodes records into a flight log.
type Writer struct {
	encoder *codec.Encoder

	// closers run in order on Close: compressor first, then the age
	// envelope. The underlying io.Writer is the caller's.
	closers []io.Closer
	records uint64
}

// NewWriter writes the header to w and returns a Writer for the body.
// Close must be called to flush; it does not close w.
func NewWriter(w io.Writer, options WriterOptions) (*Writer, error) {
	header := make([]byte, 0, headerSize)
	header = append(header, magic[:]...)
	header = append(header, byte(options.Compression))
	var flags byte
	if len(options.Recipients) > 0 {
		flags |= flagSealed
	}
	header = append(header, flags)
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing flight-log header: %w", err)
	}

	writer := &Writer{}
	body := w
	if len(options.Recipients) > 0 {
		recipients, err := ParseRecipients(options.Recipients)
		if err != nil {
			return nil, err
		}
		sealed, err := age.Encrypt(body, recipients...)
		if err != nil {
			return nil, fmt.Errorf("creating age encryptor: %w", err)
		}
		body = sealed
		writer.closers = append(writer.closers, sealed)
	}

	switch options.Compression {
	case CompressionNone:
	case CompressionLZ4:
		compressor := lz4.NewWriter(body)
		body = compressor
		writer.closers = append([]io.Closer{compressor}, writer.closers...)
	case CompressionZstd:
		compressor, err := zstd.NewWriter(body, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		body = compressor
		writer.closers = append([]io.Closer{compressor}, writer.closers...)
	default:
		return nil, fmt.Errorf("unsupported compression: %s", options.Compression)
	}

	writer.encoder = codec.NewEncoder(body)
	return writer, nil
}

// Write appends one record.
func (w *Writer) Write(record Record) error {
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("writing record %d: %w", w.records, err)
	}
	w.records++
	return nil
}

// Records returns the number of records written.
func (w *Writer) Records() uint64 {
	return w.records
}

// Close flushes the compressor and finalizes the age envelope.
func (w *Writer) Close() error {
	var err error
	for _, closer := range w.closers {
		err = multierr.Append(err, closer.Close())
	}
	w.closers = nil
	return err
}

// ParseRecipients parses age X25519 public keys.
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}
