// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process-wide [slog.Logger] from the
// logging section of the configuration.
//
// Format "auto" writes human-readable text when the destination is a
// terminal and JSON otherwise, so interactive runs stay legible while
// piped and CI runs remain machine-parseable. When a file is
// configured, output goes there instead of stderr, rotated by size.
package logging
