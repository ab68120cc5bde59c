// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bandwidth implements the reducible bandwidth-function abstraction
// (spec.md §4.2): a deterministic map from a non-empty proper subset of a
// tree edge's endpoints to the BandwidthRange that edge must carry, plus
// reduction (grouping endpoints under hierarchical delegation) and
// tabulation (materialising small-degree functions into a lookup table).
package bandwidth

import "fmt"

// Range is an immutable bandwidth requirement: at least Min, and no more
// than Max unless Max is nil (unbounded).
type Range struct {
	Min float64
	Max *float64
}

// NewRange constructs a Range. With hasMax=false the range is unbounded
// and max is ignored.
func NewRange(min float64, max float64, hasMax bool) Range {
	r := Range{Min: min}
	if hasMax {
		m := max
		r.Max = &m
	}
	return r
}

// Unbounded reports whether r has no maximum.
func (r Range) Unbounded() bool { return r.Max == nil }

func (r Range) String() string {
	if r.Max == nil {
		return fmt.Sprintf("[%g, +inf)", r.Min)
	}
	return fmt.Sprintf("[%g, %g]", r.Min, *r.Max)
}

// Combine returns the tightest Range that satisfies both r and other: the
// larger of the two minimums, and the smaller of the two maximums (nil if
// neither bounds).
func Combine(r, other Range) Range {
	out := Range{Min: r.Min}
	if other.Min > out.Min {
		out.Min = other.Min
	}
	switch {
	case r.Max == nil:
		out.Max = other.Max
	case other.Max == nil:
		out.Max = r.Max
	default:
		m := *r.Max
		if *other.Max < m {
			m = *other.Max
		}
		out.Max = &m
	}
	return out
}
