// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// Fataler is the part of testing.TB the channel helpers need.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch closes first. Use it to bound waits
// on goroutines such as a recorder draining or a campaign worker.
//
//	summary := testutil.RequireReceive(t, results, 5*time.Second, "recorder %s", name)
func RequireReceive[T any](t Fataler, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: closed before delivering a value", describe(what))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", describe(what), timeout)
	}
	panic("unreachable")
}

// describe renders the optional label: a plain string, or a format
// string followed by its arguments.
func describe(what []any) string {
	if len(what) == 0 {
		return "wait"
	}
	format, ok := what[0].(string)
	if !ok {
		return fmt.Sprint(what...)
	}
	if len(what) == 1 {
		return format
	}
	return fmt.Sprintf(format, what[1:]...)
}
