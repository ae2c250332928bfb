// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package chanpath validates and normalizes telemetry channel names.
//
// A channel name is a slash-delimited hierarchical path such as
// /rocket/imu/accel. Names must start with a slash and may contain only
// letters, digits, underscores, and slashes. Repeated slashes collapse
// and a trailing slash is dropped, so /a//b/ and /a/b name the same
// channel. A path with no segments at all, including "/", is rejected.
package chanpath
