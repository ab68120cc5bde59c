// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

import (
	"fmt"
	"sort"
)

// Admissible reports whether the edge (from, to) may be used to extend a
// spanning tree currently reaching the given set of nodes. from is always
// already reached; to is always not yet reached. Implementations typically
// reject an edge whose endpoint would exceed a resource budget (e.g. a
// trunk's remaining bandwidth or label pool), independent of the edge's
// flattened weight.
type Admissible func(reached map[Node]bool, from, to Node) bool

// OnAdd is invoked once per edge actually added to the tree, in the order
// edges are added. Implementations typically use this to commit the
// resource reservation that made the edge Admissible in the first place.
type OnAdd func(from, to Node, weight float64)

// Tree is the result of spanning-tree construction: the set of edges
// selected, in the order they were added.
type Tree struct {
	Edges EdgeSet
	Order []Pair
}

// SpanningTree grows a tree over edges that connects every node in dests,
// starting from dests[0] (spec.md §4.1):
//
//  1. start with the reached set {dests[0]};
//  2. repeatedly find the minimum-weight edge crossing the frontier (one
//     endpoint reached, one not) for which admit returns true;
//  3. add that edge, mark its new endpoint reached, call onAdd;
//  4. repeat until every destination is reached;
//  5. finally prune spurs not required to connect dests.
//
// Ties among equal-weight admissible frontier edges are broken by the
// canonical Pair ordering, for determinism. Returns an error if no
// admissible edge can reach some destination.
func SpanningTree(dests []Node, edges EdgeSet, admit Admissible, onAdd OnAdd) (Tree, error) {
	if len(dests) == 0 {
		return Tree{Edges: EdgeSet{}}, nil
	}

	want := make(map[Node]bool, len(dests))
	for _, d := range dests {
		want[d] = true
	}

	adj := edges.adjacency()
	reached := map[Node]bool{dests[0]: true}
	remaining := len(want)
	if want[dests[0]] {
		remaining--
	}

	tree := EdgeSet{}
	var order []Pair

	for remaining > 0 {
		type candidate struct {
			from, to Node
			weight   float64
		}
		var best *candidate

		var frontier []Node
		for n := range reached {
			frontier = append(frontier, n)
		}
		sort.Slice(frontier, func(i, j int) bool { return frontier[i] < frontier[j] })

		for _, from := range frontier {
			for _, to := range adj[from] {
				if reached[to] {
					continue
				}
				if !admit(reached, from, to) {
					continue
				}
				w, _ := edges.Weight(from, to)
				c := candidate{from: from, to: to, weight: w}
				if best == nil || c.weight < best.weight ||
					(c.weight == best.weight && NewPair(c.from, c.to).String() < NewPair(best.from, best.to).String()) {
					best = &c
				}
			}
		}

		if best == nil {
			return Tree{}, fmt.Errorf("graph: no admissible edge reaches remaining destinations")
		}

		tree[NewPair(best.from, best.to)] = best.weight
		order = append(order, NewPair(best.from, best.to))
		reached[best.to] = true
		if want[best.to] {
			remaining--
		}
		if onAdd != nil {
			onAdd(best.from, best.to, best.weight)
		}
	}

	return Tree{Edges: Prune(dests, tree), Order: order}, nil
}
