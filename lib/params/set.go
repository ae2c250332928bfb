// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/crater-avionics/crater/lib/chanpath"
)

// Format selects the parameter file syntax.
type Format int

const (
	YAML Format = iota
	// JSONC is JSON extended with comments and trailing commas.
	JSONC
)

// Set is a flat map from slash path to parameter value. Leaf values are
// bool, int64, float64, string, []any, or Distribution. A Set is not
// safe for concurrent mutation; nodes only read it.
type Set struct {
	values map[string]any
}

// New returns an empty Set.
func New() *Set {
	return &Set{values: make(map[string]any)}
}

// Load reads a parameter file, choosing the syntax from its extension:
// .json and .jsonc are JSONC, anything else is YAML.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameters: %w", err)
	}
	format := YAML
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		format = JSONC
	}
	set, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a parameter document.
func Parse(data []byte, format Format) (*Set, error) {
	var tree map[string]any
	switch format {
	case JSONC:
		if err := json.Unmarshal(jsonc.ToJSON(data), &tree); err != nil {
			return nil, fmt.Errorf("decoding JSONC: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("decoding YAML: %w", err)
		}
	}
	return FromMap(tree)
}

// FromMap flattens a nested map into a Set.
func FromMap(tree map[string]any) (*Set, error) {
	set := New()
	if err := set.flatten("", tree); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Set) flatten(prefix string, tree map[string]any) error {
	for key, raw := range tree {
		path, err := chanpath.Normalize(prefix + "/" + key)
		if err != nil {
			return fmt.Errorf("parameter key: %w", err)
		}
		child, isMap := asMap(raw)
		switch {
		case isMap && child["dist"] != nil:
			dist, err := parseDistribution(path, child)
			if err != nil {
				return err
			}
			s.values[path] = dist
		case isMap:
			if err := s.flatten(path, child); err != nil {
				return err
			}
		default:
			value, err := normalizeLeaf(path, raw)
			if err != nil {
				return err
			}
			s.values[path] = value
		}
	}
	return nil
}

// asMap accepts both map shapes the decoders produce.
func asMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		converted := make(map[string]any, len(m))
		for k, v := range m {
			converted[fmt.Sprint(k)] = v
		}
		return converted, true
	}
	return nil, false
}

func normalizeLeaf(path string, raw any) (any, error) {
	switch v := raw.(type) {
	case bool, string, float64, int64:
		return v, nil
	case int:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case []any:
		return v, nil
	case nil:
		return nil, fmt.Errorf("parameter %s has no value", path)
	default:
		return nil, fmt.Errorf("parameter %s has unsupported type %T", path, raw)
	}
}

// Put sets path to value. Integers are stored as int64.
func (s *Set) Put(path string, value any) error {
	key, err := chanpath.Normalize(path)
	if err != nil {
		return err
	}
	if dist, ok := value.(Distribution); ok {
		s.values[key] = dist
		return nil
	}
	leaf, err := normalizeLeaf(key, value)
	if err != nil {
		return err
	}
	s.values[key] = leaf
	return nil
}

// Has reports whether path is set.
func (s *Set) Has(path string) bool {
	_, err := s.lookup(path)
	return err == nil
}

// Keys returns every parameter path in sorted order.
func (s *Set) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	return len(s.values)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return &Set{values: maps.Clone(s.values)}
}

// Merge returns a copy of s with every parameter of override applied
// on top.
func (s *Set) Merge(override *Set) *Set {
	merged := s.Clone()
	maps.Copy(merged.values, override.values)
	return merged
}

// Distributions returns the paths of parameters that are still
// distributions, sorted.
func (s *Set) Distributions() []string {
	var paths []string
	for path, value := range s.values {
		if _, ok := value.(Distribution); ok {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths
}

// Sample returns a copy of s in which every Distribution is replaced by
// one draw from rng. Draws happen in sorted path order, so a given seed
// always yields the same set.
func (s *Set) Sample(rng *rand.Rand) *Set {
	sampled := s.Clone()
	for _, path := range s.Distributions() {
		sampled.values[path] = s.values[path].(Distribution).Sample(rng)
	}
	return sampled
}

// Nominal returns a copy of s in which every Distribution is replaced
// by its nominal value.
func (s *Set) Nominal() *Set {
	nominal := s.Clone()
	for _, path := range s.Distributions() {
		nominal.values[path] = s.values[path].(Distribution).Nominal
	}
	return nominal
}

// Values returns a copy of the flattened map with distributions
// reported by their nominal value. Used to persist the parameters of a
// run.
func (s *Set) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	for path, value := range s.values {
		if dist, ok := value.(Distribution); ok {
			value = dist.Nominal
		}
		out[path] = value
	}
	return out
}

func (s *Set) lookup(path string) (any, error) {
	key, err := chanpath.Normalize(path)
	if err != nil {
		return nil, &NotFoundError{Path: path}
	}
	value, ok := s.values[key]
	if !ok {
		return nil, &NotFoundError{Path: key}
	}
	return value, nil
}

// Float returns a numeric parameter. Integers widen; a Distribution
// reads as its nominal value.
func (s *Set) Float(path string) (float64, error) {
	raw, err := s.lookup(path)
	if err != nil {
		return 0, err
	}
	if dist, ok := raw.(Distribution); ok {
		return dist.Nominal, nil
	}
	value, ok := toFloat(raw)
	if !ok {
		return 0, &TypeError{Path: path, Wanted: "float", Actual: typeName(raw)}
	}
	return value, nil
}

// FloatOr is Float with a default for a missing parameter. A parameter
// of the wrong type is still an error.
func (s *Set) FloatOr(path string, fallback float64) (float64, error) {
	value, err := s.Float(path)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	return value, err
}

// Int returns an integer parameter. A float with no fractional part is
// accepted, since JSON has no integer type.
func (s *Set) Int(path string) (int64, error) {
	raw, err := s.lookup(path)
	if err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v), nil
		}
	}
	return 0, &TypeError{Path: path, Wanted: "int", Actual: typeName(raw)}
}

// Bool returns a boolean parameter.
func (s *Set) Bool(path string) (bool, error) {
	raw, err := s.lookup(path)
	if err != nil {
		return false, err
	}
	value, ok := raw.(bool)
	if !ok {
		return false, &TypeError{Path: path, Wanted: "bool", Actual: typeName(raw)}
	}
	return value, nil
}

// String returns a string parameter.
func (s *Set) String(path string) (string, error) {
	raw, err := s.lookup(path)
	if err != nil {
		return "", err
	}
	value, ok := raw.(string)
	if !ok {
		return "", &TypeError{Path: path, Wanted: "string", Actual: typeName(raw)}
	}
	return value, nil
}

// Duration returns a duration parameter. Strings parse with
// time.ParseDuration; bare numbers are seconds.
func (s *Set) Duration(path string) (time.Duration, error) {
	raw, err := s.lookup(path)
	if err != nil {
		return 0, err
	}
	if text, ok := raw.(string); ok {
		d, err := time.ParseDuration(text)
		if err != nil {
			return 0, &TypeError{Path: path, Wanted: "duration", Actual: fmt.Sprintf("string %q", text)}
		}
		return d, nil
	}
	seconds, err := s.Float(path)
	if err != nil {
		return 0, &TypeError{Path: path, Wanted: "duration", Actual: typeName(raw)}
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// FloatSlice returns a list of numbers.
func (s *Set) FloatSlice(path string) ([]float64, error) {
	raw, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &TypeError{Path: path, Wanted: "float list", Actual: typeName(raw)}
	}
	out := make([]float64, len(list))
	for i, element := range list {
		value, ok := toFloat(element)
		if !ok {
			return nil, &TypeError{Path: fmt.Sprintf("%s[%d]", path, i), Wanted: "float", Actual: typeName(element)}
		}
		out[i] = value
	}
	return out, nil
}

// StringSlice returns a list of strings.
func (s *Set) StringSlice(path string) ([]string, error) {
	raw, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &TypeError{Path: path, Wanted: "string list", Actual: typeName(raw)}
	}
	out := make([]string, len(list))
	for i, element := range list {
		value, ok := element.(string)
		if !ok {
			return nil, &TypeError{Path: fmt.Sprintf("%s[%d]", path, i), Wanted: "string", Actual: typeName(element)}
		}
		out[i] = value
	}
	return out, nil
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func typeName(raw any) string {
	switch raw.(type) {
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "list"
	case Distribution:
		return "distribution"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
