// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

// Prune removes degree-<=1 non-destination nodes from edges, repeating
// until a fixed point (spec.md §4.1). It returns a new EdgeSet; the input
// is left untouched. Destinations are never removed, regardless of degree.
func Prune(dests []Node, edges EdgeSet) EdgeSet {
	isDest := make(map[Node]bool, len(dests))
	for _, d := range dests {
		isDest[d] = true
	}

	cur := edges.Clone()
	for {
		deg := make(map[Node]int)
		for p := range cur {
			a, b := p.Nodes()
			deg[a]++
			deg[b]++
		}

		var spurs []Node
		for n, d := range deg {
			if d <= 1 && !isDest[n] {
				spurs = append(spurs, n)
			}
		}
		if len(spurs) == 0 {
			return cur
		}

		remove := make(map[Node]bool, len(spurs))
		for _, s := range spurs {
			remove[s] = true
		}
		for p := range cur {
			a, b := p.Nodes()
			if remove[a] || remove[b] {
				delete(cur, p)
			}
		}
	}
}
