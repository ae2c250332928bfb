// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfig is returned by AddNode when no Config exists for
	// the node name.
	ErrMissingConfig = errors.New("missing node configuration")

	// ErrDuplicateNode is returned by AddNode for a name already in use.
	ErrDuplicateNode = errors.New("duplicate node name")
)

// ConstructionError wraps a failure while building a node. These are
// deployment errors: the harness reports them and exits.
type ConstructionError struct {
	Node string
	Err  error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("constructing node %s: %v", e.Node, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }
