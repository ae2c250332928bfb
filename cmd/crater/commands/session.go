// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/crater-avionics/crater/lib/config"
	"github.com/crater-avionics/crater/lib/logging"
	"github.com/crater-avionics/crater/lib/params"
)

// configFlags are the flags shared by every command that loads a
// configuration.
type configFlags struct {
	configPath string
	paramsPath string
	logLevel   string
}

func (f *configFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.configPath, "config", "c", "", "configuration file (default: $CRATER_CONFIG)")
	flagSet.StringVarP(&f.paramsPath, "params", "p", "", "parameter file, overriding the config's params entry")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level, overriding the config's logging.level")
}

// session is a loaded configuration with its logger and parameters.
type session struct {
	config *config.Config
	params *params.Set
	logger *slog.Logger
	closer io.Closer
}

// open loads and validates the configuration, applies flag overrides,
// and builds the logger. mutate runs before validation so commands can
// apply their own overrides.
func (f *configFlags) open(env Env, mutate func(*config.Config)) (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if f.paramsPath != "" {
		cfg.Params = f.paramsPath
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	set := params.New()
	if cfg.Params != "" {
		if set, err = params.Load(cfg.Params); err != nil {
			return nil, err
		}
	}

	logger, closer, err := logging.New(cfg.Logging, logging.Options{Stderr: env.Stderr})
	if err != nil {
		return nil, err
	}
	return &session{config: cfg, params: set, logger: logger, closer: closer}, nil
}

func (s *session) Close() error {
	return s.closer.Close()
}
