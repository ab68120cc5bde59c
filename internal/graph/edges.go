// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

import "sort"

// EdgeSet is a weighted undirected graph keyed by canonical Pair.
type EdgeSet map[Pair]float64

// Clone returns a shallow copy of e, safe to mutate independently.
func (e EdgeSet) Clone() EdgeSet {
	out := make(EdgeSet, len(e))
	for p, w := range e {
		out[p] = w
	}
	return out
}

// Nodes returns the set of distinct nodes touched by e.
func (e EdgeSet) Nodes() []Node {
	seen := make(map[Node]bool)
	for p := range e {
		a, b := p.Nodes()
		seen[a] = true
		seen[b] = true
	}
	out := make([]Node, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

// adjacency builds a node -> neighbours index over e. Each neighbour list
// is sorted by node name, so "first-seen neighbour" tie-breaking (spec.md
// §4.1) is deterministic for a given EdgeSet value and does not depend on
// Go's randomized map iteration.
func (e EdgeSet) adjacency() map[Node][]Node {
	adj := make(map[Node][]Node)
	for p := range e {
		a, b := p.Nodes()
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	for n := range adj {
		sort.Slice(adj[n], func(i, j int) bool { return adj[n][i] < adj[n][j] })
	}
	return adj
}

// Degree returns the number of edges touching n.
func (e EdgeSet) Degree(n Node) int {
	d := 0
	for p := range e {
		if p.Has(n) {
			d++
		}
	}
	return d
}

// Weight returns the weight of the edge between a and b, and whether it
// exists.
func (e EdgeSet) Weight(a, b Node) (float64, bool) {
	w, ok := e[NewPair(a, b)]
	return w, ok
}
