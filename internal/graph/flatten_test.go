// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten_SharedEdgeGetsCheaper(t *testing.T) {
	// a - b - c, destinations a and c. (a,b) and (b,c) each appear twice
	// as a next-hop relation in the tables, once at distance 1 and once at
	// distance 2, so both should come out identically reweighted.
	edges := lineEdgesABC()
	tables := Relax([]Node{"a", "c"}, edges)
	out := Flatten([]Node{"a", "c"}, edges, tables)

	wAB := out[NewPair("a", "b")]
	wBC := out[NewPair("b", "c")]
	assert.Equal(t, wAB, wBC)
	assert.Greater(t, wAB, float64(0))
}

func TestFlatten_UntouchedEdgeKeepsBaseWeight(t *testing.T) {
	// x-y is a disconnected component that no FIB ever routes through.
	edges := EdgeSet{
		NewPair("a", "b"): 1,
		NewPair("x", "y"): 7,
	}
	tables := Relax([]Node{"a"}, edges)
	out := Flatten([]Node{"a"}, edges, tables)
	assert.Equal(t, float64(7), out[NewPair("x", "y")])
}

func lineEdgesABC() EdgeSet {
	return EdgeSet{
		NewPair("a", "b"): 1,
		NewPair("b", "c"): 1,
	}
}
