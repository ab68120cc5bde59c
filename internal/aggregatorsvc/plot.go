// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package aggregatorsvc

import (
	"sort"
	"time"

	"github.com/dpbroker/dpb/internal/bandwidth"
	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/graph"
)

// tunnelReservation records one trunk tunnel allocated while plotting, so
// it can be returned to its pool if the plot fails atomically or the
// owning service is later released.
type tunnelReservation struct {
	trunk      *dpbnet.Trunk
	startLabel uint32
	bandwidth  float64
}

func releaseTunnels(agg *Aggregator, tunnels []tunnelReservation) {
	for _, tr := range tunnels {
		_ = tr.trunk.ReleaseTunnel(tr.startLabel)
		tr.trunk.ReleaseBandwidth(tr.bandwidth)
		agg.metrics.ObserveTrunk(agg.name, tr.trunk)
	}
}

// memberGroup is one member network's slice of a plotted tree: the inner
// circuits it must realise and the indices into the requesting service's
// endpoint list those circuits came from (used to derive the member's
// share of the aggregate bandwidth function via bandwidth.Reduce).
type memberGroup struct {
	name     string
	network  dpbnet.Network
	circuits []dpbnet.Circuit
	indices  []int
}

type plotResult struct {
	groups  []memberGroup
	tunnels []tunnelReservation
}

// memberOf extracts the network portion of a graph.Node built by nodeFor
// (spec.md §4.4 step 6's admissibility rule needs to tell which member
// network a node belongs to).
func memberOf(n graph.Node) string {
	s := string(n)
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i]
		}
	}
	return s
}

// plotTree implements spec.md §4.4's tree-plotting algorithm. endpoints is
// the service's requested circuits (on this aggregator's exposed
// terminals); bwFunc is the bandwidth function derived from their demands;
// minBandwidth is the threshold candidate trunks and member models must
// clear to be considered at all.
//
// Steps, matching spec.md §4.4 exactly:
//  1. map each requested circuit to its inner circuit on the wrapped
//     member-network terminal;
//  2. filter trunks by remaining bandwidth and free labels;
//  3. union each reachable member's getModel(minBandwidth);
//  4. prune spurs against the inner destination terminals;
//  5. compute FIBs and flatten edge weights;
//  6. grow a spanning tree, rejecting edges that would redundantly
//     re-cross into an already-reached member network;
//  7. walk the tree's added edges, allocating one trunk tunnel per
//     inter-network edge for the bandwidth the cut actually requires;
//  8. group endpoints by member network.
//
// Any failure releases whatever tunnels were allocated so far and returns
// atomically: no partial state survives a failed plot.
func (a *Aggregator) plotTree(endpoints []dpbnet.Circuit, bwFunc bandwidth.Function, minBandwidth float64) (result plotResult, err error) {
	start := time.Now()
	defer func() {
		a.metrics.ObservePlotDuration(time.Since(start).Seconds(), err != nil)
		if err == nil {
			for _, tr := range result.tunnels {
				a.metrics.ObserveTrunk(a.name, tr.trunk)
			}
		}
	}()

	type innerEndpoint struct {
		member  string
		network dpbnet.Network
		circuit dpbnet.Circuit
		node    graph.Node
	}

	inner := make([]innerEndpoint, 0, len(endpoints))
	for _, c := range endpoints {
		mt, err := a.innerTerminal(c.Terminal.Name)
		if err != nil {
			return plotResult{}, err
		}
		inner = append(inner, innerEndpoint{
			member:  mt.inner.Network,
			network: mt.network,
			circuit: dpbnet.Circuit{Terminal: mt.inner, Label: c.Label},
			node:    nodeFor(mt.inner),
		})
	}

	nodeToIndices := make(map[graph.Node][]int)
	destSet := make(map[graph.Node]bool)
	var dests []graph.Node
	for i, e := range inner {
		nodeToIndices[e.node] = append(nodeToIndices[e.node], i)
		if !destSet[e.node] {
			destSet[e.node] = true
			dests = append(dests, e.node)
		}
	}
	sort.Slice(dests, func(i, j int) bool { return dests[i] < dests[j] })

	edges, trunkByPair, err := a.candidateGraph(minBandwidth)
	if err != nil {
		return plotResult{}, err
	}

	if len(dests) == 0 {
		return plotResult{}, nil
	}

	pruned := graph.Prune(dests, edges)
	tables := graph.Relax(dests, pruned)
	flattened := graph.Flatten(dests, pruned, tables)

	admit := func(reached map[graph.Node]bool, from, to graph.Node) bool {
		fromNet, toNet := memberOf(from), memberOf(to)
		if fromNet == toNet {
			return true
		}
		for r := range reached {
			if r == from {
				continue
			}
			if memberOf(r) == toNet {
				return false
			}
		}
		return true
	}

	reachedLocal := map[graph.Node]bool{dests[0]: true}
	subsetFor := func() uint64 {
		var bits uint64
		for n := range reachedLocal {
			for _, idx := range nodeToIndices[n] {
				bits |= uint64(1) << uint(idx)
			}
		}
		return bits
	}

	var (
		tunnels []tunnelReservation
		plotErr error
	)
	onAdd := func(from, to graph.Node, weight float64) {
		if plotErr != nil {
			reachedLocal[to] = true
			return
		}
		if trunk, ok := trunkByPair[graph.NewPair(from, to)]; ok {
			rng, err := bwFunc.Apply(subsetFor())
			if err != nil {
				plotErr = err
				reachedLocal[to] = true
				return
			}
			alloc, err := trunk.AllocateTunnel(rng.Min)
			if err != nil {
				plotErr = err
				reachedLocal[to] = true
				return
			}
			tunnels = append(tunnels, tunnelReservation{trunk: trunk, startLabel: alloc.StartLabel, bandwidth: rng.Min})
		}
		reachedLocal[to] = true
	}

	_, err = graph.SpanningTree(dests, flattened, admit, onAdd)
	if err != nil {
		releaseTunnels(a, tunnels)
		return plotResult{}, dpberrors.Wrapf(err, dpberrors.CodeInsufficientResources, "aggregatorsvc: no spanning tree connects the requested circuits")
	}
	if plotErr != nil {
		releaseTunnels(a, tunnels)
		return plotResult{}, dpberrors.Wrapf(plotErr, dpberrors.CodeInsufficientResources, "aggregatorsvc: tunnel allocation failed while plotting")
	}

	groups := make(map[string]*memberGroup)
	var order []string
	for i, e := range inner {
		g, ok := groups[e.member]
		if !ok {
			g = &memberGroup{name: e.member, network: e.network}
			groups[e.member] = g
			order = append(order, e.member)
		}
		g.circuits = append(g.circuits, e.circuit)
		g.indices = append(g.indices, i)
	}
	sort.Strings(order)

	out := make([]memberGroup, 0, len(order))
	for _, name := range order {
		out = append(out, *groups[name])
	}

	return plotResult{groups: out, tunnels: tunnels}, nil
}

// partitionIndices returns the endpoint-index partition implied by groups,
// suitable for bandwidth.Reduce.
func partitionIndices(groups []memberGroup) [][]int {
	out := make([][]int, len(groups))
	for i, g := range groups {
		out[i] = g.indices
	}
	return out
}

// memberBandwidthCap derives the bandwidth cap a single member group's
// subordinate segment should carry: when the request spans more than one
// member, it reduces bwFunc over the plotted partition and reads off the
// value for this group's side of that cut (spec.md §4.4's subordinate
// fan-out step); with a single member there is no cut to reduce over, so
// the original segment's cap applies unchanged.
func memberBandwidthCap(bwFunc bandwidth.Function, groups []memberGroup, idx int, fallback float64) (float64, error) {
	if len(groups) <= 1 {
		return fallback, nil
	}
	reduced, err := bandwidth.Reduce(bwFunc, partitionIndices(groups))
	if err != nil {
		return 0, err
	}
	rng, err := reduced.Apply(uint64(1) << uint(idx))
	if err != nil {
		return 0, err
	}
	return rng.Min, nil
}

// flowsForGroup extracts the TrafficFlow values for g's circuits from the
// original segment, keyed by the inner circuit the member network will
// see.
func flowsForGroup(g memberGroup, endpoints []dpbnet.Circuit, seg dpbnet.Segment) map[dpbnet.Circuit]dpbnet.TrafficFlow {
	out := make(map[dpbnet.Circuit]dpbnet.TrafficFlow, len(g.circuits))
	for k, idx := range g.indices {
		out[g.circuits[k]] = seg.Flows[endpoints[idx]]
	}
	return out
}

// buildFunction derives the bandwidth function describing endpoints' own
// demands (spec.md §4.2's PerEndpoint realisation): the client supplies
// ingress/egress per circuit, not a pairwise matrix or a flat bound.
func buildFunction(endpoints []dpbnet.Circuit, seg dpbnet.Segment) bandwidth.Function {
	ingress := make([]float64, len(endpoints))
	egress := make([]float64, len(endpoints))
	for i, c := range endpoints {
		flow := seg.Flows[c]
		ingress[i] = flow.Ingress
		egress[i] = flow.Egress
	}
	return bandwidth.NewPerEndpoint(ingress, egress)
}
