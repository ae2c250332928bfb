// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.uber.org/multierr"

	"github.com/crater-avionics/crater/lib/ringbuffer"
	"github.com/crater-avionics/crater/lib/ringchannel"
	"github.com/crater-avionics/crater/lib/telemetry"
)

// Config configures a Recorder.
type Config struct {
	// Patterns select channels by glob (see chanpath.Match). Default:
	// every channel.
	Patterns []string

	// Capacity of each recorder receiver. Unbounded never loses data
	// but lets a slow sink grow memory without limit.
	Capacity ringbuffer.Capacity

	// Rand breaks ties when several channels are ready. Nil uses a
	// random source; tie order never affects per-channel order.
	Rand *rand.Rand

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// Summary reports what a Recorder captured.
type Summary struct {
	Records  uint64
	Channels int
	// Dropped counts values lost to bounded receivers overflowing.
	Dropped uint64
	// PerChannel counts records per channel.
	PerChannel map[string]uint64
}

// Recorder consumes channels concurrently with the executor and feeds
// every value to its sinks.
type Recorder struct {
	service *telemetry.Service
	config  Config
	sinks   []Sink
	logger  *slog.Logger

	group     *ringchannel.Select
	receivers []*telemetry.AnyReceiver

	cancel  context.CancelFunc
	done    chan struct{}
	summary Summary
	err     error
}

// New returns a Recorder feeding sinks. Nothing is subscribed until
// Start.
func New(service *telemetry.Service, config Config, sinks ...Sink) *Recorder {
	if len(config.Patterns) == 0 {
		config.Patterns = []string{"/**"}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		service: service,
		config:  config,
		sinks:   sinks,
		logger:  logger,
		summary: Summary{PerChannel: make(map[string]uint64)},
	}
}

// Start subscribes to every channel that exists now and matches the
// patterns, then starts the recording goroutine. Call it after the
// nodes are built and before the first tick, so no value is missed.
//
// The goroutine exits when every recorded channel has closed and
// drained, when ctx ends, or on Stop. In the latter two cases values
// already buffered are still written.
func (r *Recorder) Start(ctx context.Context) error {
	if r.done != nil {
		return fmt.Errorf("recorder already started")
	}
	var options []ringchannel.SelectOption
	if r.config.Rand != nil {
		options = append(options, ringchannel.WithRand(r.config.Rand))
	}
	r.group = ringchannel.NewSelect(options...)

	names := r.service.Match(r.config.Patterns)
	for _, name := range names {
		receiver, err := r.service.SubscribeAny(name, r.config.Capacity)
		if err != nil {
			r.closeReceivers()
			return fmt.Errorf("recording %s: %w", name, err)
		}
		index, err := r.group.Add(receiver)
		if err != nil {
			receiver.Close()
			r.closeReceivers()
			return fmt.Errorf("recording %s: %w", name, err)
		}
		// Index equals position: nothing else adds to this group.
		if index != len(r.receivers) {
			panic("recorder: select index out of step with receivers")
		}
		r.receivers = append(r.receivers, receiver)
	}
	r.summary.Channels = len(r.receivers)
	r.logger.Info("recorder started", "channels", len(names), "capacity", r.config.Capacity.String())

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx)
	return nil
}

// Stop ends recording and returns Wait's result. Call it once the
// producers are finished: buffered values are written, and channels
// that never had a sender no longer hold the recorder open.
func (r *Recorder) Stop() (Summary, error) {
	if r.done == nil {
		return Summary{}, fmt.Errorf("recorder not started")
	}
	r.cancel()
	return r.Wait()
}

// Wait blocks until the recording goroutine exits, closes the sinks,
// and returns the summary. The error joins the first sink write
// failure with any sink close failures.
func (r *Recorder) Wait() (Summary, error) {
	if r.done == nil {
		return Summary{}, fmt.Errorf("recorder not started")
	}
	<-r.done
	return r.summary, r.err
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)
	defer r.finish()
	defer r.cancel()

	for r.group.Active() > 0 {
		index, err := r.group.ReadyContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.drain()
			}
			return
		}
		if !r.consume(index) {
			return
		}
	}
}

// consume reads one value from the receiver at index. Returns false
// when recording must stop.
func (r *Recorder) consume(index int) bool {
	receiver := r.receivers[index]
	sample, err := receiver.TryRecv()
	switch {
	case errors.Is(err, telemetry.ErrClosed):
		r.retire(index)
		return true
	case errors.Is(err, telemetry.ErrEmpty):
		return true
	case err != nil:
		r.err = err
		return false
	}

	record, err := NewRecord(receiver.Name(), receiver.Type().String(), sample.Timestamp, sample.Value)
	if err != nil {
		r.err = err
		return false
	}
	for _, sink := range r.sinks {
		if err := sink.Write(record); err != nil {
			r.err = fmt.Errorf("recording %s: %w", record.Channel, err)
			return false
		}
	}
	r.summary.Records++
	r.summary.PerChannel[record.Channel]++
	return true
}

// drain writes whatever is still buffered without blocking.
func (r *Recorder) drain() {
	for r.group.Active() > 0 {
		index, err := r.group.TryReady()
		if err != nil {
			return
		}
		if !r.consume(index) {
			return
		}
	}
}

// retire removes a closed, drained receiver.
func (r *Recorder) retire(index int) {
	receiver := r.receivers[index]
	r.group.Remove(index)
	r.summary.Dropped += receiver.Dropped()
	receiver.Close()
	r.receivers[index] = nil
	r.logger.Debug("channel closed", "channel", receiver.Name())
}

func (r *Recorder) closeReceivers() {
	for index, receiver := range r.receivers {
		if receiver == nil {
			continue
		}
		r.summary.Dropped += receiver.Dropped()
		receiver.Close()
		r.receivers[index] = nil
	}
	if r.group != nil {
		r.group.Close()
	}
}

func (r *Recorder) finish() {
	r.closeReceivers()
	for _, sink := range r.sinks {
		r.err = multierr.Append(r.err, sink.Close())
	}
	if r.summary.Dropped > 0 {
		r.logger.Warn("recorder lost values to overflow", "dropped", r.summary.Dropped)
	}
	r.logger.Info("recorder finished", "records", r.summary.Records, "error", r.err)
}
