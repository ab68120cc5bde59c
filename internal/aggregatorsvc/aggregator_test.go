// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package aggregatorsvc

import (
	"testing"

	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/dpbnet/memnet"
	"github.com/dpbroker/dpb/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoMemberFixture builds an aggregator "agg" over two memnet members,
// "left" and "right", joined by a single trunk between an internal trunk
// terminal on each side. Each member also has an internal link from its
// trunk terminal to its externally exposed one, so a.GetModel computes a
// real multi-hop delay across the whole path.
func twoMemberFixture(t *testing.T) (*Aggregator, *memnet.Network, *memnet.Network, *dpbnet.Trunk) {
	t.Helper()

	left := memnet.New("left")
	left.AddTerminal("a")
	left.AddTerminal("trunk-a")
	left.AddLink("a", "trunk-a", 1, 1000)

	right := memnet.New("right")
	right.AddTerminal("b")
	right.AddTerminal("trunk-b")
	right.AddLink("b", "trunk-b", 1, 1000)

	agg := New("agg", nil)
	agg.AddMember(left)
	agg.AddMember(right)

	_, err := agg.ExposeTerminal("A", "left", "a")
	require.NoError(t, err)
	_, err = agg.ExposeTerminal("B", "right", "b")
	require.NoError(t, err)

	trunk := dpbnet.NewTrunk("t1",
		dpbnet.Terminal{Network: "left", Name: "trunk-a"},
		dpbnet.Terminal{Network: "right", Name: "trunk-b"},
		1, 1000)
	require.NoError(t, trunk.DefineLabelRange(100, 10, 200))
	require.NoError(t, agg.AddTrunk(trunk))

	return agg, left, right, trunk
}

func TestAggregator_ExposeTerminal_RejectsDuplicateAndUnknownMember(t *testing.T) {
	agg, _, _, _ := twoMemberFixture(t)

	_, err := agg.ExposeTerminal("A", "left", "a")
	assert.Equal(t, dpberrors.CodeInvalidTerminal, dpberrors.GetCode(err))

	_, err = agg.ExposeTerminal("C", "nowhere", "x")
	assert.Equal(t, dpberrors.CodeInvalidTerminal, dpberrors.GetCode(err))
}

func TestAggregator_AddTrunk_RejectsNonMemberNetwork(t *testing.T) {
	agg, _, _, _ := twoMemberFixture(t)
	bad := dpbnet.NewTrunk("t2",
		dpbnet.Terminal{Network: "left", Name: "trunk-a"},
		dpbnet.Terminal{Network: "elsewhere", Name: "x"},
		1, 100)
	err := agg.AddTrunk(bad)
	assert.Equal(t, dpberrors.CodeInvalidTerminal, dpberrors.GetCode(err))
}

func TestAggregator_GetTerminal_ReturnsAggregatorQualifiedName(t *testing.T) {
	agg, _, _, _ := twoMemberFixture(t)
	term, err := agg.GetTerminal("A")
	require.NoError(t, err)
	assert.Equal(t, dpbnet.Terminal{Network: "agg", Name: "A"}, term)
	assert.Len(t, agg.ListTerminals(), 2)
}

func TestAggregator_GetModel_ComputesEndToEndDelayAcrossTrunk(t *testing.T) {
	agg, _, _, _ := twoMemberFixture(t)
	model, err := agg.GetModel(0)
	require.NoError(t, err)
	// left/a -> left/trunk-a (1) -> right/trunk-b (1, trunk delay) ->
	// right/b (1): three hops end to end.
	assert.Equal(t, float64(3), model[graph.NewPair("A", "B")])
}

func TestAggregator_GetModel_ExcludesTrunkBelowBandwidthFloor(t *testing.T) {
	agg, _, _, _ := twoMemberFixture(t)
	model, err := agg.GetModel(2000)
	require.NoError(t, err)
	assert.Empty(t, model)
}

func TestAggregator_NewServiceWithHandle_RejectsDuplicate(t *testing.T) {
	agg, _, _, _ := twoMemberFixture(t)
	_, err := agg.NewServiceWithHandle("h1")
	require.NoError(t, err)
	_, err = agg.NewServiceWithHandle("h1")
	assert.Equal(t, dpberrors.CodeHandleInUse, dpberrors.GetCode(err))
}
