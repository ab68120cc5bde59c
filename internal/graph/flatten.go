// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

// Flatten produces terminal-aware edge weights that bias spanning-tree
// selection toward edges shared by many destination-to-destination shortest
// paths (spec.md §4.1, "flatten"). For every (u, nextHop) relation that
// appears in some node's FIB at distance δ, it accumulates a tally
// (Σδ, count); the emitted weight is Σδ × (|dests| + 1 − count), so
// central, frequently-used edges end up cheap and edges that only serve
// distant pairs stay expensive.
//
// Pairs present in base but never touched by any FIB next-hop relation
// (i.e. not on any shortest path in tables) keep their original base
// weight, so Flatten always returns a weight for every base edge.
func Flatten(dests []Node, base EdgeSet, tables Tables) EdgeSet {
	type tally struct {
		sum   float64
		count int
	}
	tallies := make(map[Pair]*tally)

	for x, fib := range tables {
		for _, d := range dests {
			hop, ok := fib[d]
			if !ok || hop.NextHop == x {
				continue
			}
			p := NewPair(x, hop.NextHop)
			t, ok := tallies[p]
			if !ok {
				t = &tally{}
				tallies[p] = t
			}
			t.sum += hop.Distance
			t.count++
		}
	}

	out := base.Clone()
	factor := float64(len(dests) + 1)
	for p, t := range tallies {
		if _, isEdge := base[p]; !isEdge {
			continue
		}
		out[p] = t.sum * (factor - float64(t.count))
	}
	return out
}
