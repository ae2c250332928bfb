// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrEmpty is returned when there is no key material to protect.
var ErrEmpty = errors.New("secret: empty")

// Buffer is locked, non-dumpable memory. It is safe for concurrent use;
// reading a closed Buffer panics.
type Buffer struct {
	mutex  sync.Mutex
	data   []byte
	closed bool
}

// New allocates a zeroed Buffer of size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise: %w", err)
	}
	return &Buffer{data: data}, nil
}

// FromBytes copies source into a new Buffer and zeroes source.
func FromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, ErrEmpty
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	clear(source)
	return buffer, nil
}

// ReadFile reads a key file into a Buffer, trimming surrounding
// whitespace. The path "-" reads standard input to EOF. The
// intermediate heap copy is zeroed before returning.
func ReadFile(path string) (*Buffer, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	defer clear(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("key file %s: %w", path, ErrEmpty)
	}
	return FromBytes(trimmed)
}

// Bytes returns the protected memory. The slice is invalid after Close.
func (b *Buffer) Bytes() []byte {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data
}

// Reader returns a reader over the protected memory.
func (b *Buffer) Reader() io.Reader {
	return bytes.NewReader(b.Bytes())
}

// Len returns the size of the buffer.
func (b *Buffer) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.data)
}

// Close zeroes and releases the memory. Closing twice is a no-op.
func (b *Buffer) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	clear(b.data)
	err := errors.Join(unix.Munlock(b.data), unix.Munmap(b.data))
	b.data = nil
	if err != nil {
		return fmt.Errorf("secret: releasing buffer: %w", err)
	}
	return nil
}
