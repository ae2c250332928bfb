// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "golang.org/x/sys/unix"

// lockMemory pins current and future pages in RAM.
func lockMemory() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}
