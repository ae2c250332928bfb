// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package nodes

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/crater-avionics/crater/lib/config"
	"github.com/crater-avionics/crater/lib/node"
	"github.com/crater-avionics/crater/lib/params"
)

// ErrUnknownType is returned by Build for a node type with no
// registered constructor.
var ErrUnknownType = errors.New("unknown node type")

// Registry maps node type names to constructors.
type Registry struct {
	constructors map[string]node.Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]node.Constructor)}
}

// Builtin returns a registry holding every node type in this package.
func Builtin() *Registry {
	registry := NewRegistry()
	registry.MustRegister("counter", NewCounter)
	registry.MustRegister("sine", NewSine)
	registry.MustRegister("noise", NewNoise)
	registry.MustRegister("stop_after", NewStopAfter)
	return registry
}

// Register adds a constructor under typeName.
func (r *Registry) Register(typeName string, constructor node.Constructor) error {
	if typeName == "" {
		return fmt.Errorf("registering node type: empty name")
	}
	if _, exists := r.constructors[typeName]; exists {
		return fmt.Errorf("node type %q already registered", typeName)
	}
	r.constructors[typeName] = constructor
	return nil
}

// MustRegister is Register for static setup; it panics on error.
func (r *Registry) MustRegister(typeName string, constructor node.Constructor) {
	if err := r.Register(typeName, constructor); err != nil {
		panic(err)
	}
}

// Lookup returns the constructor for typeName.
func (r *Registry) Lookup(typeName string) (node.Constructor, bool) {
	constructor, ok := r.constructors[typeName]
	return constructor, ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	return slices.Sorted(maps.Keys(r.constructors))
}

// Build adds one node per spec to manager, in order. Every type is
// checked before any node is constructed, so an unknown type leaves
// the manager untouched.
func (r *Registry) Build(manager *node.Manager, specs []config.NodeSpec) error {
	constructors := make([]node.Constructor, len(specs))
	for i, spec := range specs {
		constructor, ok := r.constructors[spec.Type]
		if !ok {
			return fmt.Errorf("node %s: %w %q (known: %v)", spec.Name, ErrUnknownType, spec.Type, r.Types())
		}
		constructors[i] = constructor
	}
	for i, spec := range specs {
		if err := manager.AddNode(spec.Name, constructors[i]); err != nil {
			return err
		}
	}
	return nil
}

// intOr reads an optional integer parameter scoped to the node.
func intOr(ctx *node.Context, key string, fallback int64) (int64, error) {
	value, err := ctx.Params().Int(ctx.Param(key))
	if errors.Is(err, params.ErrNotFound) {
		return fallback, nil
	}
	return value, err
}
