// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"go.uber.org/multierr"

	"github.com/crater-avionics/crater/lib/params"
	"github.com/crater-avionics/crater/lib/seed"
	"github.com/crater-avionics/crater/lib/telemetry"
)

// ManagerConfig holds what every node in a run shares.
type ManagerConfig struct {
	// Telemetry is the bus. Required.
	Telemetry *telemetry.Service

	// Params is the run's parameter set. Nil means an empty set.
	Params *params.Set

	// Configs maps node name to wiring. AddNode fails for a name with
	// no entry.
	Configs map[string]Config

	// Seed roots every generator handed out by Context.NewRand.
	Seed uint64

	// Logger is the parent logger for nodes. Nil discards.
	Logger *slog.Logger
}

// Named is a registered node with its name.
type Named struct {
	Name string
	Node Node
}

// Manager owns the nodes of one run in registration order.
type Manager struct {
	telemetry *telemetry.Service
	params    *params.Set
	configs   map[string]Config
	seed      uint64
	logger    *slog.Logger

	seedMutex sync.Mutex
	seeds     *seed.SplitMix64

	nodes    []Named
	contexts []*Context
	names    map[string]bool
}

// NewManager creates a manager with no nodes.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Telemetry == nil {
		return nil, fmt.Errorf("node manager: telemetry service is required")
	}
	if config.Params == nil {
		config.Params = params.New()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		telemetry: config.Telemetry,
		params:    config.Params,
		configs:   config.Configs,
		seed:      config.Seed,
		logger:    config.Logger,
		seeds:     seed.NewSplitMix64(config.Seed),
		names:     make(map[string]bool),
	}, nil
}

// AddNode builds a node with construct and appends it to the step
// order. A missing Config, a duplicate name, or a constructor error
// means the deployment is wrong; callers treat the error as fatal.
func (m *Manager) AddNode(name string, construct Constructor) error {
	if m.names[name] {
		return fmt.Errorf("adding node %s: %w", name, ErrDuplicateNode)
	}
	config, ok := m.configs[name]
	if !ok {
		return fmt.Errorf("adding node %s: %w", name, ErrMissingConfig)
	}

	ctx := &Context{
		name:    name,
		config:  config,
		manager: m,
		logger:  m.logger.With("node", name),
	}
	built, err := construct(ctx)
	if err != nil {
		// Release whatever the constructor opened before failing, so a
		// single-producer channel is not left claimed.
		closeAll(ctx.handles)
		return &ConstructionError{Node: name, Err: err}
	}
	if built == nil {
		closeAll(ctx.handles)
		return &ConstructionError{Node: name, Err: fmt.Errorf("constructor returned nil node")}
	}

	m.names[name] = true
	m.nodes = append(m.nodes, Named{Name: name, Node: built})
	m.contexts = append(m.contexts, ctx)
	m.logger.Debug("node added", "node", name, "inputs", len(config.Inputs), "outputs", len(config.Outputs))
	return nil
}

// Nodes returns the registered nodes in step order. The slice must not
// be modified.
func (m *Manager) Nodes() []Named {
	return m.nodes
}

// Len returns the number of registered nodes.
func (m *Manager) Len() int {
	return len(m.nodes)
}

// Seed returns the seed the manager was created with.
func (m *Manager) Seed() uint64 {
	return m.seed
}

// Telemetry returns the bus.
func (m *Manager) Telemetry() *telemetry.Service {
	return m.telemetry
}

// Params returns the parameter set.
func (m *Manager) Params() *params.Set {
	return m.params
}

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

func (m *Manager) newRand() *rand.Rand {
	m.seedMutex.Lock()
	defer m.seedMutex.Unlock()
	return m.seeds.NewRand()
}

// Close tears the run down: nodes implementing io.Closer are closed in
// reverse registration order, then every telemetry handle opened
// through a Context. Closing the senders closes their channels, which
// lets concurrent readers such as recorders drain and exit. All errors
// are returned together.
func (m *Manager) Close() error {
	var err error
	for _, named := range slices.Backward(m.nodes) {
		if closer, ok := named.Node.(io.Closer); ok {
			if closeErr := closer.Close(); closeErr != nil {
				err = multierr.Append(err, fmt.Errorf("closing node %s: %w", named.Name, closeErr))
			}
		}
	}
	for _, ctx := range slices.Backward(m.contexts) {
		err = multierr.Append(err, closeAll(ctx.handles))
		ctx.handles = nil
	}
	return err
}

func closeAll(handles []io.Closer) error {
	var err error
	for _, handle := range handles {
		err = multierr.Append(err, handle.Close())
	}
	return err
}
