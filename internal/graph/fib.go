// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

// Hop is one entry of a forwarding information base: the next hop to take
// and the total distance to the destination along that path.
type Hop struct {
	NextHop  Node
	Distance float64
}

// FIB maps a destination to the best known Hop towards it.
type FIB map[Node]Hop

// Tables is a per-node set of FIBs: Tables[v][d] is v's route to d.
type Tables map[Node]FIB

// Relax computes forwarding tables for every node reachable from the
// destination set dests over edges, by iterative distance-vector
// relaxation (spec.md §4.1):
//
//  1. each destination's own FIB starts at (self, 0);
//  2. a work set, initially dests, holds nodes whose FIBs may be stale;
//  3. popping u, recompute u's FIB as the per-destination min over u's
//     neighbours n of (n, w(u,n) + n.FIB[d].Distance);
//  4. if u's FIB changed, or u is popped for the first time, re-enqueue
//     all of u's neighbours.
//
// Ties are broken by first-seen neighbour (edges.adjacency's sorted order).
// Terminates because edge weights are non-negative, so no FIB entry's
// distance can decrease without bound.
func Relax(dests []Node, edges EdgeSet) Tables {
	adj := edges.adjacency()
	tables := make(Tables)

	ensure := func(n Node) FIB {
		if f, ok := tables[n]; ok {
			return f
		}
		f := make(FIB)
		tables[n] = f
		return f
	}

	queue := make([]Node, 0, len(dests))
	queued := make(map[Node]bool)
	enqueue := func(n Node) {
		if !queued[n] {
			queued[n] = true
			queue = append(queue, n)
		}
	}

	for _, d := range dests {
		f := ensure(d)
		f[d] = Hop{NextHop: d, Distance: 0}
		enqueue(d)
	}

	visited := make(map[Node]bool)
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		queued[u] = false

		// A node's first visit always counts as a change, so the seeded
		// destinations announce their (self, 0) entries to their neighbours.
		changed := !visited[u]
		visited[u] = true
		uFIB := ensure(u)

		for _, d := range dests {
			best, haveBest := uFIB[d]
			for _, n := range adj[u] {
				w, _ := edges.Weight(u, n)
				nFIB := tables[n]
				nHop, ok := nFIB[d]
				if !ok {
					continue
				}
				cand := Hop{NextHop: n, Distance: w + nHop.Distance}
				if !haveBest || cand.Distance < best.Distance {
					best = cand
					haveBest = true
				}
			}
			if u == d {
				// A destination's route to itself is always (self, 0),
				// never overridden by a path that happens to loop back.
				best = Hop{NextHop: d, Distance: 0}
				haveBest = true
			}
			if haveBest {
				if prev, ok := uFIB[d]; !ok || prev != best {
					uFIB[d] = best
					changed = true
				}
			}
		}

		if changed {
			for _, n := range adj[u] {
				enqueue(n)
			}
		}
	}

	return tables
}
