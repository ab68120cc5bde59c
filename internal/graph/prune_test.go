// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrune_RemovesDanglingLeaf(t *testing.T) {
	// a - b - c, plus a leaf x hanging off b. Destinations are a and c.
	edges := EdgeSet{
		NewPair("a", "b"): 1,
		NewPair("b", "c"): 1,
		NewPair("b", "x"): 1,
	}
	pruned := Prune([]Node{"a", "c"}, edges)

	_, hasLeaf := pruned[NewPair("b", "x")]
	assert.False(t, hasLeaf)
	_, hasBackbone := pruned[NewPair("a", "b")]
	assert.True(t, hasBackbone)
	_, hasBackbone2 := pruned[NewPair("b", "c")]
	assert.True(t, hasBackbone2)
}

func TestPrune_KeepsDestinationLeaf(t *testing.T) {
	// a - b - c, c is a destination leaf and must survive.
	edges := EdgeSet{
		NewPair("a", "b"): 1,
		NewPair("b", "c"): 1,
	}
	pruned := Prune([]Node{"a", "c"}, edges)
	assert.Len(t, pruned, 2)
}

func TestPrune_CascadingSpurs(t *testing.T) {
	// a - b - c - x - y, only a and c are destinations; x and y should both go.
	edges := EdgeSet{
		NewPair("a", "b"): 1,
		NewPair("b", "c"): 1,
		NewPair("c", "x"): 1,
		NewPair("x", "y"): 1,
	}
	pruned := Prune([]Node{"a", "c"}, edges)
	assert.Len(t, pruned, 2)
	_, ok := pruned[NewPair("c", "x")]
	assert.False(t, ok)
}

func TestPrune_DoesNotMutateInput(t *testing.T) {
	edges := EdgeSet{
		NewPair("a", "b"): 1,
		NewPair("b", "x"): 1,
	}
	_ = Prune([]Node{"a"}, edges)
	assert.Len(t, edges, 2)
}
