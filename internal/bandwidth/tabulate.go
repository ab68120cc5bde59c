// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

import "github.com/dpbroker/dpb/internal/dpberrors"

// TabulateThreshold is the reference bound (spec.md §4.2) above which a
// function's 2^n - 2 entries are considered too many to materialise.
const TabulateThreshold = 8

// Tabulated is a bandwidth function materialised into a lookup table keyed
// by the subset's integer encoding, so repeated Apply calls during tree
// plotting avoid recomputation.
type Tabulated struct {
	degree int
	table  map[uint64]Range
}

// Tabulate evaluates fn over every non-empty proper subset of its domain
// and returns the resulting lookup table. Fails if fn's degree exceeds
// TabulateThreshold.
func Tabulate(fn Function) (Tabulated, error) {
	n := fn.Degree()
	if n > TabulateThreshold {
		return Tabulated{}, dpberrors.Errorf(dpberrors.CodeInvalidSubset, "bandwidth: degree %d exceeds tabulation threshold %d", n, TabulateThreshold)
	}
	mask := full(n)
	table := make(map[uint64]Range, (1<<uint(n))-2)
	for s := uint64(1); s < mask; s++ {
		r, err := fn.Apply(s)
		if err != nil {
			return Tabulated{}, err
		}
		table[s] = r
	}
	return Tabulated{degree: n, table: table}, nil
}

func (t Tabulated) Degree() int { return t.degree }

func (t Tabulated) Apply(subset uint64) (Range, error) {
	if err := validateSubset(t.degree, subset); err != nil {
		return Range{}, err
	}
	r, ok := t.table[subset]
	if !ok {
		return Range{}, dpberrors.Errorf(dpberrors.CodeInvalidSubset, "bandwidth: subset %#x not present in tabulation", subset)
	}
	return r, nil
}
