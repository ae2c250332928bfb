// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps key material, such as the age identities that
// unseal flight logs, out of the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM and excluded
// from core dumps. Close zeroes, unlocks, and unmaps it. The garbage
// collector never sees the memory, so no stray copy of the key is left
// behind in freed heap pages.
package secret
