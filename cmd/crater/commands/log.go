// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"filippo.io/age"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/crater-avionics/crater/cmd/crater/cli"
	"github.com/crater-avionics/crater/lib/chanpath"
	"github.com/crater-avionics/crater/lib/codec"
	"github.com/crater-avionics/crater/lib/recorder"
	"github.com/crater-avionics/crater/lib/secret"
)

func logCommand(env Env) *cli.Command {
	return &cli.Command{
		Name:    "log",
		Summary: "Inspect flight logs",
		Subcommands: []*cli.Command{
			logDumpCommand(env),
			logStatsCommand(env),
		},
	}
}

type logFlags struct {
	identity string
	channels []string
	json     bool
}

func (f *logFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.identity, "identity", "i", "", "age identity file for sealed logs (- reads stdin)")
	flagSet.StringSliceVar(&f.channels, "channel", nil, "only channels matching these glob patterns")
	flagSet.BoolVar(&f.json, "json", false, "output as JSON")
}

// openLog opens path and returns a reader over it. The closer releases
// both the reader and the file.
func (f *logFlags) openLog(path string) (*recorder.Reader, func() error, error) {
	var identities []age.Identity
	if f.identity != "" {
		key, err := secret.ReadFile(f.identity)
		if err != nil {
			return nil, nil, err
		}
		identities, err = recorder.ParseIdentities(key.Reader())
		if closeErr := key.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return nil, nil, err
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	reader, err := recorder.Open(file, identities...)
	if err != nil {
		file.Close()
		if errors.Is(err, recorder.ErrSealed) {
			return nil, nil, fmt.Errorf("%s is sealed; pass --identity", path)
		}
		return nil, nil, err
	}
	return reader, func() error { return multierr.Append(reader.Close(), file.Close()) }, nil
}

func (f *logFlags) selected(channel string) bool {
	if len(f.channels) == 0 {
		return true
	}
	return slices.ContainsFunc(f.channels, func(pattern string) bool {
		return chanpath.Match(pattern, channel)
	})
}

// records calls fn for every selected record of the log.
func (f *logFlags) records(reader *recorder.Reader, fn func(recorder.Record) error) error {
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !f.selected(record.Channel) {
			continue
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

type dumpedRecord struct {
	Channel   string `json:"channel"`
	Type      string `json:"type"`
	Monotonic string `json:"mono"`
	UTC       string `json:"utc,omitempty"`
	Value     any    `json:"value"`
}

func logDumpCommand(env Env) *cli.Command {
	var flags logFlags
	return &cli.Command{
		Name:    "dump",
		Summary: "Print every record of a flight log",
		Description: `Print every record of a flight log in arrival order.

Values are shown in CBOR diagnostic notation, or decoded to JSON
with --json (one object per line). Sealed logs need the age identity
of one of their recipients.`,
		Usage: "crater log dump <file> [flags]",
		Examples: []cli.Example{
			{Description: "Dump the navigation channels", Command: "crater log dump flight.crlog --channel '/nav/**'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) != 1 {
				return fmt.Errorf("expected one flight log path")
			}
			reader, closeLog, err := flags.openLog(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, closeLog()) }()

			return flags.records(reader, func(record recorder.Record) error {
				if flags.json {
					dumped := dumpedRecord{
						Channel:   record.Channel,
						Type:      record.Type,
						Monotonic: time.Duration(record.Monotonic).String(),
					}
					if record.HasUTC {
						dumped.UTC = time.Unix(0, record.UTC).UTC().Format(time.RFC3339Nano)
					}
					if err := record.Decode(&dumped.Value); err != nil {
						return err
					}
					return cli.WriteJSON(env.Stdout, dumped)
				}
				value, err := codec.Diagnose(record.Value)
				if err != nil {
					return fmt.Errorf("%s: %w", record.Channel, err)
				}
				fmt.Fprintf(env.Stdout, "%12s  %s  %s = %s\n",
					time.Duration(record.Monotonic), record.Channel, record.Type, value)
				return nil
			})
		},
	}
}

type channelStats struct {
	Channel     string `json:"channel"`
	Type        string `json:"type"`
	Records     uint64 `json:"records"`
	First       string `json:"first"`
	Last        string `json:"last"`
	Fingerprint string `json:"fingerprint"`
}

type logStats struct {
	Compression string         `json:"compression"`
	Sealed      bool           `json:"sealed"`
	Records     uint64         `json:"records"`
	Fingerprint string         `json:"fingerprint"`
	Channels    []channelStats `json:"channels"`
}

func logStatsCommand(env Env) *cli.Command {
	var flags logFlags
	return &cli.Command{
		Name:    "stats",
		Summary: "Summarize a flight log and print its fingerprint",
		Description: `Summarize a flight log and print its fingerprint.

The fingerprint is computed exactly as during a run, so two logs of
the same seed and parameters print the same digest.`,
		Usage: "crater log stats <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) != 1 {
				return fmt.Errorf("expected one flight log path")
			}
			reader, closeLog, err := flags.openLog(args[0])
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, closeLog()) }()

			fingerprinter := recorder.NewFingerprinter()
			stats := logStats{Compression: reader.Compression().String(), Sealed: reader.Sealed()}
			index := make(map[string]*channelStats)
			err = flags.records(reader, func(record recorder.Record) error {
				entry, ok := index[record.Channel]
				if !ok {
					entry = &channelStats{
						Channel: record.Channel,
						Type:    record.Type,
						First:   time.Duration(record.Monotonic).String(),
					}
					index[record.Channel] = entry
				}
				entry.Records++
				entry.Last = time.Duration(record.Monotonic).String()
				stats.Records++
				return fingerprinter.Write(record)
			})
			if err != nil {
				return err
			}
			if err := fingerprinter.Close(); err != nil {
				return err
			}
			fingerprint := fingerprinter.Fingerprint()
			stats.Fingerprint = fingerprint.Combined.String()
			for _, entry := range index {
				entry.Fingerprint = fingerprint.Channels[entry.Channel].String()
				stats.Channels = append(stats.Channels, *entry)
			}
			slices.SortFunc(stats.Channels, func(a, b channelStats) int {
				return strings.Compare(a.Channel, b.Channel)
			})

			if flags.json {
				return cli.WriteJSON(env.Stdout, stats)
			}
			fmt.Fprintf(env.Stdout, "compression: %s\nsealed:      %t\nrecords:     %d\nfingerprint: %s\n\n",
				stats.Compression, stats.Sealed, stats.Records, stats.Fingerprint)
			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CHANNEL\tTYPE\tRECORDS\tFIRST\tLAST\tFINGERPRINT")
			for _, entry := range stats.Channels {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%.16s\n", entry.Channel, entry.Type,
					entry.Records, entry.First, entry.Last, entry.Fingerprint)
			}
			return tw.Flush()
		},
	}
}
