// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"cmp"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/crater-avionics/crater/lib/chanpath"
	"github.com/crater-avionics/crater/lib/clock"
	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/ringchannel"
)

// dropWarnInterval throttles overflow warnings: a receiver logs its
// first drop and then every dropWarnInterval-th.
const dropWarnInterval = 100

// Discipline is a channel's producer policy.
type Discipline uint8

const (
	// SingleProducer admits at most one open Sender.
	SingleProducer Discipline = iota
	// MultiProducer admits any number of Senders.
	MultiProducer
)

func (d Discipline) String() string {
	switch d {
	case SingleProducer:
		return "single-producer"
	case MultiProducer:
		return "multi-producer"
	default:
		return fmt.Sprintf("Discipline(%d)", uint8(d))
	}
}

// MarshalText renders the discipline by name in JSON listings.
func (d Discipline) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Timestamped is a payload with the time it was produced.
type Timestamped[T any] struct {
	Timestamp clock.Timestamp
	Value     T
}

// erasedChannel is the type-independent view of a typed channel held
// in the registry.
type erasedChannel interface {
	stats() ringchannel.Stats
	subscribeAny(capacity ringbuffer.Capacity) anyReader
}

type typedChannel[T any] struct {
	channel *ringchannel.Channel[Timestamped[T]]
}

func (t *typedChannel[T]) stats() ringchannel.Stats {
	return t.channel.Stats()
}

func (t *typedChannel[T]) subscribeAny(capacity ringbuffer.Capacity) anyReader {
	return anyAdapter[T]{t.channel.AddReceiver(capacity)}
}

type entry struct {
	name        string
	payloadType reflect.Type
	discipline  Discipline
	channel     erasedChannel
}

// Option configures a Service.
type Option func(*Service) error

// WithRemap installs a name redirection table. Every name passed to
// Publish or Subscribe is looked up in the table after normalization
// and, if present, replaced by its target. Keys and targets must be
// valid channel paths. Redirection is applied once; targets are not
// themselves remapped.
func WithRemap(remap map[string]string) Option {
	return func(s *Service) error {
		for from, to := range remap {
			source, err := chanpath.Normalize(from)
			if err != nil {
				return fmt.Errorf("remap source: %w", err)
			}
			target, err := chanpath.Normalize(to)
			if err != nil {
				return fmt.Errorf("remap target for %s: %w", from, err)
			}
			s.remap[source] = target
		}
		return nil
	}
}

// WithLogger sets the logger for overflow warnings and channel
// creation. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// Service is the channel registry. All methods and the generic
// functions that take a *Service are safe for concurrent use.
type Service struct {
	mutex    sync.Mutex
	channels map[string]*entry
	remap    map[string]string
	logger   *slog.Logger
}

// NewService creates an empty registry.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		channels: make(map[string]*entry),
		remap:    make(map[string]string),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Resolve returns the physical channel name for name: normalized, then
// redirected through the remap table.
func (s *Service) Resolve(name string) (string, error) {
	path, err := chanpath.Normalize(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidChannelName, err)
	}
	if target, ok := s.remap[path]; ok {
		return target, nil
	}
	return path, nil
}

// Publish returns the sender of a single-producer channel. It fails
// with ErrAlreadyHasProducer while a previous sender for the channel is
// still open.
func Publish[T any](s *Service, name string) (*Sender[T], error) {
	return publish[T](s, name, SingleProducer)
}

// PublishMP returns a new sender on a multi-producer channel.
func PublishMP[T any](s *Service, name string) (*Sender[T], error) {
	return publish[T](s, name, MultiProducer)
}

// Subscribe returns a new receiver on a single-producer channel.
func Subscribe[T any](s *Service, name string, capacity ringbuffer.Capacity) (*Receiver[T], error) {
	return subscribe[T](s, name, capacity, SingleProducer)
}

// SubscribeMP returns a new receiver on a multi-producer channel.
func SubscribeMP[T any](s *Service, name string, capacity ringbuffer.Capacity) (*Receiver[T], error) {
	return subscribe[T](s, name, capacity, MultiProducer)
}

func publish[T any](s *Service, name string, discipline Discipline) (*Sender[T], error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("publishing %q: %w", name, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	channel, err := lookup[T](s, path, discipline)
	if err != nil {
		return nil, fmt.Errorf("publishing %q: %w", name, err)
	}
	if discipline == SingleProducer && channel.Stats().Senders > 0 {
		return nil, fmt.Errorf("publishing %s: %w", path, ErrAlreadyHasProducer)
	}
	return &Sender[T]{name: path, sender: channel.AddSender()}, nil
}

func subscribe[T any](s *Service, name string, capacity ringbuffer.Capacity, discipline Discipline) (*Receiver[T], error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("subscribing %q: %w", name, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	channel, err := lookup[T](s, path, discipline)
	if err != nil {
		return nil, fmt.Errorf("subscribing %q: %w", name, err)
	}
	return &Receiver[T]{Receiver: channel.AddReceiver(capacity), name: path}, nil
}

// lookup returns the channel registered under path, creating it with
// payload type T and the given discipline if absent. Called with
// s.mutex held.
func lookup[T any](s *Service, path string, discipline Discipline) (*ringchannel.Channel[Timestamped[T]], error) {
	requested := reflect.TypeFor[T]()

	existing, ok := s.channels[path]
	if !ok {
		logger := s.logger.With("channel", path)
		channel := ringchannel.New[Timestamped[T]](ringchannel.OnDrop(func(receiverID, total uint64) {
			if total == 1 || total%dropWarnInterval == 0 {
				logger.Warn("receiver overflow, oldest samples discarded",
					"receiver", receiverID, "dropped", total)
			}
		}))
		s.channels[path] = &entry{
			name:        path,
			payloadType: requested,
			discipline:  discipline,
			channel:     &typedChannel[T]{channel: channel},
		}
		s.logger.Debug("channel created", "channel", path, "type", requested.String(), "discipline", discipline.String())
		return channel, nil
	}

	if existing.payloadType != requested {
		return nil, &WrongChannelDataTypeError{
			Channel:   path,
			Requested: requested.String(),
			Expected:  existing.payloadType.String(),
		}
	}
	if existing.discipline != discipline {
		return nil, &WrongChannelTypeError{
			Channel:   path,
			Requested: discipline,
			Expected:  existing.discipline,
		}
	}
	typed, ok := existing.channel.(*typedChannel[T])
	if !ok {
		// Unreachable while payloadType and the stored channel agree.
		return nil, &WrongChannelDataTypeError{
			Channel:   path,
			Requested: requested.String(),
			Expected:  existing.payloadType.String(),
		}
	}
	return typed.channel, nil
}

// SubscribeAny returns a type-erased receiver on an existing channel.
// Recorders use it to consume channels whose payload types they cannot
// name at compile time.
func (s *Service) SubscribeAny(name string, capacity ringbuffer.Capacity) (*AnyReceiver, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("subscribing %q: %w", name, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, ok := s.channels[path]
	if !ok {
		return nil, fmt.Errorf("subscribing %s: %w", path, ErrUnknownChannel)
	}
	return &AnyReceiver{
		anyReader:   existing.channel.subscribeAny(capacity),
		name:        path,
		payloadType: existing.payloadType,
	}, nil
}

// ChannelInfo describes one registered channel.
type ChannelInfo struct {
	Name       string
	Type       string
	Discipline Discipline
	Senders    int
	Receivers  int
	Sent       uint64
	Dropped    uint64
	Closed     bool
}

// Channels returns every registered channel, sorted by name.
func (s *Service) Channels() []ChannelInfo {
	s.mutex.Lock()
	entries := make([]*entry, 0, len(s.channels))
	for _, e := range s.channels {
		entries = append(entries, e)
	}
	s.mutex.Unlock()

	infos := make([]ChannelInfo, 0, len(entries))
	for _, e := range entries {
		stats := e.channel.stats()
		infos = append(infos, ChannelInfo{
			Name:       e.name,
			Type:       e.payloadType.String(),
			Discipline: e.discipline,
			Senders:    stats.Senders,
			Receivers:  stats.Receivers,
			Sent:       stats.Sent,
			Dropped:    stats.Dropped,
			Closed:     stats.Closed,
		})
	}
	slices.SortFunc(infos, func(a, b ChannelInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return infos
}

// Match returns the sorted names of registered channels matching any
// of the glob patterns (see chanpath.Match).
func (s *Service) Match(patterns []string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var names []string
	for name := range s.channels {
		for _, pattern := range patterns {
			if chanpath.Match(pattern, name) {
				names = append(names, name)
				break
			}
		}
	}
	slices.Sort(names)
	return names
}
