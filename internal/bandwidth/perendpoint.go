// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

// PerEndpoint is a bandwidth function over per-endpoint ingress/egress
// rates (spec.md §4.2): endpoint e contributes ingress rate Ingress[e] and
// egress rate Egress[e]. The demand for a subset S is the lesser of the
// total ingress inside S and the total egress outside S, since that is the
// most either side can actually push across the cut.
type PerEndpoint struct {
	Ingress []float64
	Egress  []float64
}

// NewPerEndpoint constructs a PerEndpoint function. ingress and egress must
// be the same length; that length is the function's degree.
func NewPerEndpoint(ingress, egress []float64) PerEndpoint {
	return PerEndpoint{Ingress: ingress, Egress: egress}
}

func (f PerEndpoint) Degree() int { return len(f.Ingress) }

func (f PerEndpoint) Apply(subset uint64) (Range, error) {
	n := f.Degree()
	if err := validateSubset(n, subset); err != nil {
		return Range{}, err
	}
	var in, out float64
	for i := 0; i < n; i++ {
		bit := uint64(1) << uint(i)
		if subset&bit != 0 {
			in += f.Ingress[i]
		} else {
			out += f.Egress[i]
		}
	}
	bound := in
	if out < bound {
		bound = out
	}
	return NewRange(bound, bound, true), nil
}
