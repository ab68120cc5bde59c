// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

// Matrix is a bandwidth function backed by a symmetric n x n matrix of
// pairwise demands (spec.md §4.2): the demand for subset S is the sum of
// M[i][j] over every pair with i on one side of the cut and j on the
// other.
type Matrix struct {
	M [][]float64
}

// NewMatrix constructs a Matrix function. M must be square and symmetric;
// its dimension is the function's degree.
func NewMatrix(m [][]float64) Matrix {
	return Matrix{M: m}
}

func (f Matrix) Degree() int { return len(f.M) }

func (f Matrix) Apply(subset uint64) (Range, error) {
	n := f.Degree()
	if err := validateSubset(n, subset); err != nil {
		return Range{}, err
	}
	var total float64
	for i := 0; i < n; i++ {
		iIn := subset&(uint64(1)<<uint(i)) != 0
		for j := i + 1; j < n; j++ {
			jIn := subset&(uint64(1)<<uint(j)) != 0
			if iIn != jIn {
				total += f.M[i][j]
			}
		}
	}
	return NewRange(total, total, true), nil
}
