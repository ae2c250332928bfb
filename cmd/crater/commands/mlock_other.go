// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package commands

import "errors"

func lockMemory() error {
	return errors.New("--mlock is only supported on linux")
}
