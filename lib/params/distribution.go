// Copyright 2026 The Crater Authors
// SPDX-License-Identifier: Apache-2.0

package params

import (
	"fmt"
	"math/rand/v2"
)

// DistKind names a Distribution family.
type DistKind string

const (
	Normal  DistKind = "normal"
	Uniform DistKind = "uniform"
)

// Distribution is a random float parameter. Nominal is the value used
// when the set is not sampled.
type Distribution struct {
	Kind    DistKind
	Nominal float64
	Mean    float64
	Stddev  float64
	Min     float64
	Max     float64
}

// Sample draws one value.
func (d Distribution) Sample(rng *rand.Rand) float64 {
	switch d.Kind {
	case Normal:
		return d.Mean + d.Stddev*rng.NormFloat64()
	case Uniform:
		return d.Min + (d.Max-d.Min)*rng.Float64()
	default:
		return d.Nominal
	}
}

func (d Distribution) String() string {
	switch d.Kind {
	case Normal:
		return fmt.Sprintf("normal(mean=%g, stddev=%g)", d.Mean, d.Stddev)
	case Uniform:
		return fmt.Sprintf("uniform(min=%g, max=%g)", d.Min, d.Max)
	default:
		return string(d.Kind)
	}
}

// parseDistribution builds a Distribution from a map holding a "dist"
// key. path is used only for error messages.
func parseDistribution(path string, fields map[string]any) (Distribution, error) {
	kind, ok := fields["dist"].(string)
	if !ok {
		return Distribution{}, fmt.Errorf("parameter %s: dist must be a string", path)
	}
	number := func(key string) (float64, bool, error) {
		raw, present := fields[key]
		if !present {
			return 0, false, nil
		}
		value, ok := toFloat(raw)
		if !ok {
			return 0, true, fmt.Errorf("parameter %s: %s must be a number, got %T", path, key, raw)
		}
		return value, true, nil
	}

	d := Distribution{Kind: DistKind(kind)}
	var err error
	var hasNominal bool
	if d.Nominal, hasNominal, err = number("val"); err != nil {
		return Distribution{}, err
	}

	switch d.Kind {
	case Normal:
		var hasMean, hasStddev bool
		if d.Mean, hasMean, err = number("mean"); err != nil {
			return Distribution{}, err
		}
		if d.Stddev, hasStddev, err = number("stddev"); err != nil {
			return Distribution{}, err
		}
		if !hasStddev || d.Stddev < 0 {
			return Distribution{}, fmt.Errorf("parameter %s: normal distribution needs a non-negative stddev", path)
		}
		switch {
		case !hasMean && !hasNominal:
			return Distribution{}, fmt.Errorf("parameter %s: normal distribution needs mean or val", path)
		case !hasMean:
			d.Mean = d.Nominal
		case !hasNominal:
			d.Nominal = d.Mean
		}
	case Uniform:
		var hasMin, hasMax bool
		if d.Min, hasMin, err = number("min"); err != nil {
			return Distribution{}, err
		}
		if d.Max, hasMax, err = number("max"); err != nil {
			return Distribution{}, err
		}
		if !hasMin || !hasMax || d.Max < d.Min {
			return Distribution{}, fmt.Errorf("parameter %s: uniform distribution needs min <= max", path)
		}
		if !hasNominal {
			d.Nominal = (d.Min + d.Max) / 2
		}
	default:
		return Distribution{}, fmt.Errorf("parameter %s: unknown distribution %q", path, kind)
	}
	return d, nil
}
