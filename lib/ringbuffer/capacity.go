// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package ringbuffer

import (
	"fmt"
	"strconv"
)

// Capacity is a consumer's backlog policy: unbounded, or bounded to a
// fixed number of elements with overwrite-oldest on overflow. The zero
// value is Unbounded.
type Capacity struct {
	limit int
}

// Unbounded returns a Capacity that lets the backlog grow without
// limit.
func Unbounded() Capacity {
	return Capacity{}
}

// Bounded returns a Capacity holding at most n elements. Panics if n
// is not positive: a zero-sized bounded buffer would discard every
// element and is always a programming error.
func Bounded(n int) Capacity {
	if n <= 0 {
		panic(fmt.Sprintf("ringbuffer: bounded capacity must be positive, got %d", n))
	}
	return Capacity{limit: n}
}

// CapacityOf converts a plain integer into a Capacity: zero means
// unbounded, a positive value means bounded. Negative values are
// rejected. Configuration files use this form.
func CapacityOf(n int) (Capacity, error) {
	switch {
	case n < 0:
		return Capacity{}, fmt.Errorf("ringbuffer: capacity must not be negative, got %d", n)
	case n == 0:
		return Unbounded(), nil
	default:
		return Bounded(n), nil
	}
}

// IsBounded reports whether the capacity has a fixed limit.
func (c Capacity) IsBounded() bool {
	return c.limit > 0
}

// Limit returns the bounded element limit, or 0 for Unbounded.
func (c Capacity) Limit() int {
	return c.limit
}

// String returns "unbounded" or the numeric limit.
func (c Capacity) String() string {
	if !c.IsBounded() {
		return "unbounded"
	}
	return strconv.Itoa(c.limit)
}
