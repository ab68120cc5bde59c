// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

// Flat is a bandwidth function that returns the same Range for every
// subset, regardless of which endpoints are on which side of the cut
// (spec.md §4.2).
type Flat struct {
	degree int
	value  Range
}

// NewFlat constructs a Flat function of the given degree.
func NewFlat(degree int, value Range) Flat {
	return Flat{degree: degree, value: value}
}

func (f Flat) Degree() int { return f.degree }

func (f Flat) Apply(subset uint64) (Range, error) {
	if err := validateSubset(f.degree, subset); err != nil {
		return Range{}, err
	}
	return f.value, nil
}
