// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

import (
	"testing"

	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlat_ReturnsSameValueForEveryInput(t *testing.T) {
	f := NewFlat(3, NewRange(10, 0, false))
	for _, s := range []uint64{0b001, 0b010, 0b101, 0b110} {
		r, err := f.Apply(s)
		require.NoError(t, err)
		assert.Equal(t, float64(10), r.Min)
		assert.True(t, r.Unbounded())
	}
}

func TestFlat_RejectsEmptyAndFullSubsets(t *testing.T) {
	f := NewFlat(3, NewRange(10, 0, false))
	_, err := f.Apply(0)
	assert.Equal(t, dpberrors.CodeInvalidSubset, dpberrors.GetCode(err))
	_, err = f.Apply(0b111)
	assert.Equal(t, dpberrors.CodeInvalidSubset, dpberrors.GetCode(err))
}

func TestPerEndpoint_MinOfIngressAndEgress(t *testing.T) {
	f := NewPerEndpoint([]float64{5, 3}, []float64{2, 9})
	// S = {0}: ingress(0)=5, egress(1)=9 -> min 5
	r, err := f.Apply(0b01)
	require.NoError(t, err)
	assert.Equal(t, float64(5), r.Min)

	// S = {1}: ingress(1)=3, egress(0)=2 -> min 2
	r, err = f.Apply(0b10)
	require.NoError(t, err)
	assert.Equal(t, float64(2), r.Min)
}

func TestMatrix_SumsCutEdges(t *testing.T) {
	m := NewMatrix([][]float64{
		{0, 1, 2},
		{1, 0, 3},
		{2, 3, 0},
	})
	// S = {0}: cut edges (0,1)=1 and (0,2)=2 -> 3
	r, err := m.Apply(0b001)
	require.NoError(t, err)
	assert.Equal(t, float64(3), r.Min)

	// S = {0,1}: cut edges (0,2)=2 and (1,2)=3 -> 5
	r, err = m.Apply(0b011)
	require.NoError(t, err)
	assert.Equal(t, float64(5), r.Min)
}

func TestReduce_SatisfiesReductionLaw(t *testing.T) {
	m := NewMatrix([][]float64{
		{0, 1, 2, 4},
		{1, 0, 3, 5},
		{2, 3, 0, 6},
		{4, 5, 6, 0},
	})
	// Group endpoints {0,1} and {2,3} into two reduced endpoints.
	reduced, err := Reduce(m, [][]int{{0, 1}, {2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, reduced.Degree())

	got, err := reduced.Apply(0b01)
	require.NoError(t, err)
	want, err := m.Apply(0b0011)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReduce_RejectsOverlappingGroups(t *testing.T) {
	m := NewMatrix([][]float64{{0, 1}, {1, 0}})
	_, err := Reduce(m, [][]int{{0}, {0, 1}})
	assert.Equal(t, dpberrors.CodeInvalidSubset, dpberrors.GetCode(err))
}

func TestReduce_RejectsOmittedEndpoint(t *testing.T) {
	m := NewMatrix([][]float64{
		{0, 1, 2},
		{1, 0, 3},
		{2, 3, 0},
	})
	_, err := Reduce(m, [][]int{{0}, {1}})
	assert.Equal(t, dpberrors.CodeInvalidSubset, dpberrors.GetCode(err))
}

func TestTabulate_MatchesDirectApply(t *testing.T) {
	f := NewPerEndpoint([]float64{5, 3, 7}, []float64{2, 9, 1})
	tab, err := Tabulate(f)
	require.NoError(t, err)

	for _, s := range []uint64{0b001, 0b010, 0b100, 0b011, 0b101, 0b110} {
		direct, err := f.Apply(s)
		require.NoError(t, err)
		tabulated, err := tab.Apply(s)
		require.NoError(t, err)
		assert.Equal(t, direct, tabulated)
	}
}

func TestTabulate_RejectsTooHighDegree(t *testing.T) {
	ingress := make([]float64, TabulateThreshold+1)
	egress := make([]float64, TabulateThreshold+1)
	f := NewPerEndpoint(ingress, egress)
	_, err := Tabulate(f)
	assert.Equal(t, dpberrors.CodeInvalidSubset, dpberrors.GetCode(err))
}

func TestWire_RoundTripsFlat(t *testing.T) {
	f := NewFlat(3, NewRange(10, 20, true))
	data, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Degree())

	r, err := decoded.Apply(0b001)
	require.NoError(t, err)
	assert.Equal(t, float64(10), r.Min)
	require.NotNil(t, r.Max)
	assert.Equal(t, float64(20), *r.Max)
}

func TestWire_RoundTripsReducedOverBase(t *testing.T) {
	m := NewMatrix([][]float64{
		{0, 1, 2, 4},
		{1, 0, 3, 5},
		{2, 3, 0, 6},
		{4, 5, 6, 0},
	})
	reduced, err := Reduce(m, [][]int{{0, 1}, {2, 3}})
	require.NoError(t, err)

	data, err := Encode(reduced)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 2, decoded.Degree())

	want, err := reduced.Apply(0b01)
	require.NoError(t, err)
	got, err := decoded.Apply(0b01)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWire_RoundTripsTabulated(t *testing.T) {
	f := NewPerEndpoint([]float64{5, 3, 7}, []float64{2, 9, 1})
	tab, err := Tabulate(f)
	require.NoError(t, err)

	data, err := Encode(tab)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	want, err := tab.Apply(0b011)
	require.NoError(t, err)
	got, err := decoded.Apply(0b011)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
