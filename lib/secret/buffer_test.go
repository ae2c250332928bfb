// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/crater-avionics/crater/lib/testutil"
)

func TestNewIsZeroed(t *testing.T) {
	t.Parallel()
	buffer, err := New(64)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer buffer.Close()
	if buffer.Len() != 64 || !bytes.Equal(buffer.Bytes(), make([]byte, 64)) {
		t.Errorf("fresh buffer = %v", buffer.Bytes())
	}
	if _, err := New(0); err == nil {
		t.Error("New(0) should fail")
	}
}

func TestFromBytesZeroesSource(t *testing.T) {
	t.Parallel()
	source := []byte("AGE-SECRET-KEY-1EXAMPLE")
	buffer, err := FromBytes(source)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	defer buffer.Close()
	if string(buffer.Bytes()) != "AGE-SECRET-KEY-1EXAMPLE" {
		t.Errorf("buffer = %q", buffer.Bytes())
	}
	if !bytes.Equal(source, make([]byte, len(source))) {
		t.Errorf("source not zeroed: %q", source)
	}
	if _, err := FromBytes(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("FromBytes(nil) = %v", err)
	}
}

func TestReadFileTrims(t *testing.T) {
	t.Parallel()
	path := testutil.WriteFile(t, "key.txt", "\n# created: 2026-10-17\nAGE-SECRET-KEY-1EXAMPLE\n\n")
	buffer, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	defer buffer.Close()
	got, _ := io.ReadAll(buffer.Reader())
	if string(got) != "# created: 2026-10-17\nAGE-SECRET-KEY-1EXAMPLE" {
		t.Errorf("read %q", got)
	}

	blank := testutil.WriteFile(t, "blank.txt", " \n\t\n")
	if _, err := ReadFile(blank); !errors.Is(err, ErrEmpty) {
		t.Errorf("blank file: %v", err)
	}
}

func TestCloseReleases(t *testing.T) {
	t.Parallel()
	buffer, err := FromBytes([]byte("key"))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len after Close = %d", buffer.Len())
	}
	defer func() {
		if recover() == nil {
			t.Error("Bytes after Close should panic")
		}
	}()
	buffer.Bytes()
}
