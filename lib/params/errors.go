// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package params

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by *NotFoundError.
	ErrNotFound = errors.New("parameter not found")

	// ErrType is matched by *TypeError.
	ErrType = errors.New("parameter has wrong type")
)

// NotFoundError reports a missing parameter.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("parameter %s not found", e.Path)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TypeError reports a parameter that cannot be read as the requested
// type.
type TypeError struct {
	Path   string
	Wanted string
	Actual string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("parameter %s is %s, cannot read as %s", e.Path, e.Actual, e.Wanted)
}

// Is matches ErrType.
func (e *TypeError) Is(target error) bool { return target == ErrType }
