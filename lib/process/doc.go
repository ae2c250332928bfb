// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the two raw I/O paths that exist outside the
// structured logger: reporting a fatal error before the logger is
// configured, and exiting main() after an unrecoverable error.
package process
