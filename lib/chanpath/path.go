// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package chanpath

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tidwall/match"
)

// ErrInvalid is the sentinel matched by every *InvalidError.
var ErrInvalid = errors.New("invalid channel path")

// InvalidError describes why a channel path was rejected.
type InvalidError struct {
	Path   string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid channel path %q: %s", e.Path, e.Reason)
}

// Is matches ErrInvalid.
func (e *InvalidError) Is(target error) bool {
	return target == ErrInvalid
}

// Path is a normalized channel path. The zero value is not a valid
// path; obtain one from Parse.
type Path struct {
	value string
}

// Parse validates raw and returns its normalized form.
func Parse(raw string) (Path, error) {
	if !strings.HasPrefix(raw, "/") {
		return Path{}, &InvalidError{Path: raw, Reason: "must start with /"}
	}
	for _, r := range raw {
		if r != '/' && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return Path{}, &InvalidError{Path: raw, Reason: fmt.Sprintf("character %q not allowed", r)}
		}
	}
	segments := split(raw)
	if len(segments) == 0 {
		return Path{}, &InvalidError{Path: raw, Reason: "no segments"}
	}
	return Path{value: "/" + strings.Join(segments, "/")}, nil
}

// MustParse is Parse for compile-time constant names. It panics on an
// invalid path.
func MustParse(raw string) Path {
	path, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return path
}

// Normalize returns the normalized string form of raw.
func Normalize(raw string) (string, error) {
	path, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return path.value, nil
}

// String returns the normalized path.
func (p Path) String() string {
	return p.value
}

// IsZero reports whether p is the zero Path.
func (p Path) IsZero() bool {
	return p.value == ""
}

// Segments returns the path components without slashes.
func (p Path) Segments() []string {
	return split(p.value)
}

// Join appends child segments to p. child may itself contain slashes;
// the result is validated like any other path.
func (p Path) Join(child string) (Path, error) {
	return Parse(p.value + "/" + child)
}

// HasPrefix reports whether p equals prefix or lies beneath it in the
// hierarchy. /a/bc is not beneath /a/b.
func (p Path) HasPrefix(prefix Path) bool {
	return p.value == prefix.value || strings.HasPrefix(p.value, prefix.value+"/")
}

// Match reports whether name matches the glob pattern. '*' matches any
// run of characters including slashes, so /sensors/* selects every
// channel under /sensors. '?' matches exactly one character.
func Match(pattern, name string) bool {
	return match.Match(name, pattern)
}

// IsPattern reports whether s contains glob metacharacters.
func IsPattern(s string) bool {
	return match.IsPattern(s)
}

func split(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == '/' })
}
