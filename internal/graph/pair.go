// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package graph implements the broker's topology primitives: unordered
// pairs, distance-vector forwarding tables, spur pruning, terminal-aware
// edge reweighting, and spanning-tree construction (spec.md §4.1).
package graph

// Node identifies a vertex. The broker uses it for both inner-network node
// identities and the synthetic identities an aggregator assigns to member
// networks and trunk endpoints while plotting a tree.
type Node string

// Pair is an unordered pair of nodes: Pair(a, b) == Pair(b, a). Construct it
// with NewPair so the internal ordering is canonicalized and two pairs built
// from swapped arguments compare equal and hash identically when used as a
// map key.
type Pair struct {
	a, b Node
}

// NewPair returns the canonical Pair over a and b.
func NewPair(a, b Node) Pair {
	if a <= b {
		return Pair{a: a, b: b}
	}
	return Pair{a: b, b: a}
}

// Nodes returns the pair's two endpoints in canonical (sorted) order.
func (p Pair) Nodes() (Node, Node) { return p.a, p.b }

// Other returns the endpoint of p that isn't n. It panics if n is not one of
// p's endpoints — callers are expected to only call this on a pair known to
// contain n (e.g. while walking an adjacency list keyed by n).
func (p Pair) Other(n Node) Node {
	switch n {
	case p.a:
		return p.b
	case p.b:
		return p.a
	default:
		panic("graph: node is not an endpoint of pair")
	}
}

// Has reports whether n is one of p's two endpoints.
func (p Pair) Has(n Node) bool { return p.a == n || p.b == n }

func (p Pair) String() string { return string(p.a) + "<->" + string(p.b) }
