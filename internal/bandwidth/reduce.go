// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

import "github.com/dpbroker/dpb/internal/dpberrors"

// Reduced wraps a degree-n base Function behind a partition of its
// endpoints into n' <= n groups, exposing a degree-n' function whose value
// on a group-subset S' is base.Apply(union of the groups indexed by S')
// (spec.md §4.2's reducibility law). It is used when an aggregator
// delegates a slice of its own bandwidth function down to a member
// network: the member only needs the reduced view of its own endpoints.
type Reduced struct {
	base   Function
	groups [][]int
}

// Reduce partitions base's {0,...,base.Degree()-1} endpoints into groups
// (every base endpoint must appear in exactly one group) and returns the
// derived degree-len(groups) function.
func Reduce(base Function, groups [][]int) (Reduced, error) {
	n := base.Degree()
	seen := make([]bool, n)
	for _, g := range groups {
		for _, idx := range g {
			if idx < 0 || idx >= n {
				return Reduced{}, dpberrors.Errorf(dpberrors.CodeInvalidSubset, "bandwidth: reduce group references endpoint %d outside degree %d", idx, n)
			}
			if seen[idx] {
				return Reduced{}, dpberrors.Errorf(dpberrors.CodeInvalidSubset, "bandwidth: reduce groups overlap on endpoint %d", idx)
			}
			seen[idx] = true
		}
	}
	for idx, ok := range seen {
		if !ok {
			return Reduced{}, dpberrors.Errorf(dpberrors.CodeInvalidSubset, "bandwidth: reduce groups omit endpoint %d", idx)
		}
	}
	return Reduced{base: base, groups: groups}, nil
}

func (r Reduced) Degree() int { return len(r.groups) }

func (r Reduced) Apply(subset uint64) (Range, error) {
	nPrime := r.Degree()
	if err := validateSubset(nPrime, subset); err != nil {
		return Range{}, err
	}
	var union uint64
	for i, g := range r.groups {
		if subset&(uint64(1)<<uint(i)) == 0 {
			continue
		}
		for _, idx := range g {
			union |= uint64(1) << uint(idx)
		}
	}
	return r.base.Apply(union)
}
