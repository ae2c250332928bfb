// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package recorder

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/crater-avionics/crater/lib/codec"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// String returns the hex encoding.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Domain separation keys: ASCII domain names zero-padded to 32 bytes.
// Changing them invalidates every stored fingerprint.
var (
	channelDomainKey = [32]byte{
		'c', 'r', 'a', 't', 'e', 'r', '.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i',
		'n', 't', '.', 'c', 'h', 'a', 'n', 'n', 'e', 'l', 0, 0, 0, 0, 0, 0,
	}

	runDomainKey = [32]byte{
		'c', 'r', 'a', 't', 'e', 'r', '.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i',
		'n', 't', '.', 'r', 'u', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Fingerprint summarizes a recorded run. Two runs replayed bit for bit
// have equal fingerprints.
type Fingerprint struct {
	// Channels maps each channel to the digest of its values in arrival
	// order.
	Channels map[string]Hash

	// Combined covers every channel digest, in sorted channel order.
	Combined Hash
}

// Equal reports whether two fingerprints match.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Combined == other.Combined
}

// Diff returns the sorted names of channels whose digests differ or
// that exist in only one fingerprint.
func (f Fingerprint) Diff(other Fingerprint) []string {
	var names []string
	for name, digest := range f.Channels {
		if otherDigest, ok := other.Channels[name]; !ok || otherDigest != digest {
			names = append(names, name)
		}
	}
	for name := range other.Channels {
		if _, ok := f.Channels[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Fingerprinter is a Sink that hashes every record. Only the
// monotonic timestamp and the value contribute: UTC depends on the
// host and is excluded.
type Fingerprinter struct {
	hashers map[string]*blake3.Hasher
	result  *Fingerprint
}

// NewFingerprinter returns an empty Fingerprinter.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{hashers: make(map[string]*blake3.Hasher)}
}

// Write folds record into its channel's digest.
func (f *Fingerprinter) Write(record Record) error {
	if f.result != nil {
		return fmt.Errorf("fingerprinter: write after close")
	}
	hasher, ok := f.hashers[record.Channel]
	if !ok {
		var err error
		hasher, err = blake3.NewKeyed(channelDomainKey[:])
		if err != nil {
			panic("recorder: BLAKE3 keyed hash initialization failed: " + err.Error())
		}
		f.hashers[record.Channel] = hasher
	}
	entry, err := codec.Marshal([]any{record.Monotonic, record.Value})
	if err != nil {
		return fmt.Errorf("fingerprinting %s: %w", record.Channel, err)
	}
	hasher.Write(entry)
	return nil
}

// Close finalizes the fingerprint.
func (f *Fingerprinter) Close() error {
	if f.result != nil {
		return nil
	}
	fingerprint := Fingerprint{Channels: make(map[string]Hash, len(f.hashers))}
	combined, err := blake3.NewKeyed(runDomainKey[:])
	if err != nil {
		panic("recorder: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	for _, name := range slices.Sorted(maps.Keys(f.hashers)) {
		var digest Hash
		copy(digest[:], f.hashers[name].Sum(nil))
		fingerprint.Channels[name] = digest

		// Names are length-prefixed so ("/a", "/bc") and ("/ab", "/c")
		// cannot collide.
		prefix, _ := codec.Marshal(name)
		combined.Write(prefix)
		combined.Write(digest[:])
	}
	copy(fingerprint.Combined[:], combined.Sum(nil))
	f.result = &fingerprint
	return nil
}

// Fingerprint returns the result. It is only valid after Close.
func (f *Fingerprinter) Fingerprint() Fingerprint {
	if f.result == nil {
		return Fingerprint{}
	}
	return *f.result
}
