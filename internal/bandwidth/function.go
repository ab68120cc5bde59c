// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

import (
	"math/bits"

	"github.com/dpbroker/dpb/internal/dpberrors"
)

// Function is a bandwidth function of some fixed Degree (spec.md §4.2):
// Apply must be defined, deterministic, for every non-empty proper subset
// of {0, ..., Degree()-1}, encoded as a bitset where bit i is endpoint i.
type Function interface {
	Degree() int
	Apply(subset uint64) (Range, error)
}

// full returns the bitmask with the low n bits set.
func full(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}

// validateSubset checks that subset is a non-empty proper subset of the
// first n bits, per spec.md §4.2's domain contract. It fails with
// InvalidSubset otherwise.
func validateSubset(n int, subset uint64) error {
	mask := full(n)
	if subset&^mask != 0 {
		return dpberrors.Errorf(dpberrors.CodeInvalidSubset, "bandwidth: subset %#x has bits set beyond degree %d", subset, n)
	}
	if subset == 0 {
		return dpberrors.New(dpberrors.CodeInvalidSubset, "bandwidth: subset is empty")
	}
	if subset == mask {
		return dpberrors.New(dpberrors.CodeInvalidSubset, "bandwidth: subset is the full endpoint set")
	}
	return nil
}

// complement returns the bitset of endpoints in {0,...,n-1} not in subset.
func complement(n int, subset uint64) uint64 {
	return full(n) &^ subset
}

// popcount returns the number of endpoints in subset.
func popcount(subset uint64) int { return bits.OnesCount64(subset) }
