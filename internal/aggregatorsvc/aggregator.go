// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package aggregatorsvc implements the aggregator service engine
// (spec.md §4.4): a virtual network whose topology is the union of its
// trunks and the models of its member networks. It plots spanning trees
// over that topology, allocates trunk tunnels, delegates slices to
// member networks as subordinate services, and drives an observable
// lifecycle state machine with partial-failure handling.
package aggregatorsvc

import (
	"sort"
	"sync"

	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/graph"
	"github.com/dpbroker/dpb/internal/logging"
	"github.com/dpbroker/dpb/internal/metrics"
	"github.com/google/uuid"
)

// memberTerminal binds one of the aggregator's exposed terminal names to
// the inner terminal of a member network it wraps (spec.md §3: "a
// terminal name is bound to at most one inner terminal").
type memberTerminal struct {
	exposed dpbnet.Terminal
	network dpbnet.Network
	inner   dpbnet.Terminal
}

// Aggregator is a named virtual network composed of trunks between
// member networks (spec.md §4.4). A single mutex guards its service
// map, terminal map and trunk map (spec.md §5's per-aggregator lock);
// the canonical lock order when code must also hold service or trunk
// locks is aggregator lock first, then service lock, and trunks are
// always locked in sorted-ID order.
type Aggregator struct {
	name string

	mu        sync.Mutex
	terminals map[string]memberTerminal
	trunks    map[string]*dpbnet.Trunk
	members   map[string]dpbnet.Network
	services  map[string]*Service

	log *logging.Logger

	// metrics is set once via SetMetrics during wiring, before the
	// aggregator serves any traffic, and read without locking
	// thereafter; a nil Recorder makes every metrics call a no-op.
	metrics *metrics.Recorder
}

// SetMetrics wires a metrics.Recorder into the aggregator. Call it once
// during startup, before any service is created.
func (a *Aggregator) SetMetrics(m *metrics.Recorder) {
	a.metrics = m
}

// New constructs an empty Aggregator. Member networks, terminals and
// trunks are wired in afterwards with AddMember/ExposeTerminal/AddTrunk.
func New(name string, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.New(logging.DefaultConfig())
	}
	return &Aggregator{
		name:      name,
		terminals: make(map[string]memberTerminal),
		trunks:    make(map[string]*dpbnet.Trunk),
		members:   make(map[string]dpbnet.Network),
		services:  make(map[string]*Service),
		log:       log.With("aggregator", name),
	}
}

func newHandle() string { return uuid.NewString() }

// nodeFor is the graph.Node identity used for an inner terminal while
// plotting: the terminal's own network-qualified name, so trunk edges
// (which connect terminals across two networks) and member-model edges
// (which stay within one network) share a single node namespace.
func nodeFor(t dpbnet.Terminal) graph.Node { return graph.Node(t.String()) }

// AddMember registers a member network so its terminals can be exposed
// and its model consulted during tree plotting.
func (a *Aggregator) AddMember(n dpbnet.Network) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.members[n.Name()] = n
}

// ExposeTerminal binds exposedName on this aggregator to terminal
// innerName on member network network. Fails if exposedName is already
// bound or the member/inner terminal don't exist.
func (a *Aggregator) ExposeTerminal(exposedName, network, innerName string) (dpbnet.Terminal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.terminals[exposedName]; ok {
		return dpbnet.Terminal{}, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "aggregatorsvc: terminal %q already exposed on %q", exposedName, a.name)
	}
	member, ok := a.members[network]
	if !ok {
		return dpbnet.Terminal{}, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "aggregatorsvc: unknown member network %q", network)
	}
	inner, err := member.GetTerminal(innerName)
	if err != nil {
		return dpbnet.Terminal{}, err
	}

	exposed := dpbnet.Terminal{Network: a.name, Name: exposedName}
	a.terminals[exposedName] = memberTerminal{exposed: exposed, network: member, inner: inner}
	return exposed, nil
}

// AddTrunk registers a trunk between two member-network terminals. Both
// terminal networks must already be wired via AddMember.
func (a *Aggregator) AddTrunk(t *dpbnet.Trunk) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.members[t.Start.Network]; !ok {
		return dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "aggregatorsvc: trunk start network %q is not a member", t.Start.Network)
	}
	if _, ok := a.members[t.End.Network]; !ok {
		return dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "aggregatorsvc: trunk end network %q is not a member", t.End.Network)
	}
	a.trunks[t.ID] = t
	return nil
}

// Trunks returns every trunk registered on this aggregator, in canonical
// (ID-sorted) order. Used by internal/persistence's recovery driver to
// reconcile each trunk's label pool after replaying recovered services.
func (a *Aggregator) Trunks() []*dpbnet.Trunk {
	return a.sortedTrunks()
}

// sortedTrunks returns every registered trunk in canonical (ID-sorted)
// order, the lock ordering spec.md §5 requires whenever more than one
// trunk lock must be held at once.
func (a *Aggregator) sortedTrunks() []*dpbnet.Trunk {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*dpbnet.Trunk, 0, len(a.trunks))
	for _, t := range a.trunks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (a *Aggregator) membersSnapshot() map[string]dpbnet.Network {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]dpbnet.Network, len(a.members))
	for name, m := range a.members {
		out[name] = m
	}
	return out
}

func (a *Aggregator) Name() string { return a.name }

// Log returns the aggregator's logger, scoped with its own name, for
// callers outside the package (e.g. internal/persistence's recovery
// driver) that need to report a per-aggregator failure.
func (a *Aggregator) Log() *logging.Logger { return a.log }

func (a *Aggregator) GetTerminal(name string) (dpbnet.Terminal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mt, ok := a.terminals[name]
	if !ok {
		return dpbnet.Terminal{}, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "aggregatorsvc: %q has no terminal %q", a.name, name)
	}
	return mt.exposed, nil
}

func (a *Aggregator) ListTerminals() []dpbnet.Terminal {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]dpbnet.Terminal, 0, len(a.terminals))
	for _, mt := range a.terminals {
		out = append(out, mt.exposed)
	}
	return out
}

func (a *Aggregator) innerTerminal(exposedName string) (memberTerminal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	mt, ok := a.terminals[exposedName]
	if !ok {
		return memberTerminal{}, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "aggregatorsvc: %q has no terminal %q", a.name, exposedName)
	}
	return mt, nil
}

func (a *Aggregator) NewService() (dpbnet.Service, error) {
	return a.NewServiceWithHandle(newHandle())
}

func (a *Aggregator) NewServiceWithHandle(handle string) (dpbnet.Service, error) {
	a.mu.Lock()
	if _, ok := a.services[handle]; ok {
		a.mu.Unlock()
		return nil, dpberrors.Errorf(dpberrors.CodeHandleInUse, "aggregatorsvc: %q already has a service %q", a.name, handle)
	}
	svc := newServiceLocked(handle, a)
	a.services[handle] = svc
	a.mu.Unlock()
	return svc, nil
}

func (a *Aggregator) GetService(id string) (dpbnet.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	svc, ok := a.services[id]
	if !ok {
		return nil, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "aggregatorsvc: %q has no service %q", a.name, id)
	}
	return svc, nil
}

func (a *Aggregator) ListServices() []dpbnet.Service {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]dpbnet.Service, 0, len(a.services))
	for _, s := range a.services {
		out = append(out, s)
	}
	return out
}

func (a *Aggregator) removeService(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.services, id)
}

// candidateGraph builds the union of trunk edges (filtered to
// remainingBandwidth >= minBandwidth and >= 1 free label) and every
// member network's own GetModel(minBandwidth) (spec.md §4.4 tree
// plotting, steps 2-3). It also returns the trunk behind each
// inter-network edge, for plotTree's tunnel allocation during spanning-
// tree growth.
func (a *Aggregator) candidateGraph(minBandwidth float64) (graph.EdgeSet, map[graph.Pair]*dpbnet.Trunk, error) {
	edges := graph.EdgeSet{}
	trunkByPair := make(map[graph.Pair]*dpbnet.Trunk)

	for _, t := range a.sortedTrunks() {
		if t.RemainingBandwidth() < minBandwidth || t.FreeLabels() < 1 {
			continue
		}
		p := graph.NewPair(nodeFor(t.Start), nodeFor(t.End))
		edges[p] = t.Delay
		trunkByPair[p] = t
	}

	for name, member := range a.membersSnapshot() {
		model, err := member.GetModel(minBandwidth)
		if err != nil {
			return nil, nil, dpberrors.Wrapf(err, dpberrors.CodeInsufficientResources, "aggregatorsvc: getModel failed for member %q", name)
		}
		for p, w := range model {
			u, v := p.Nodes()
			nu := nodeFor(dpbnet.Terminal{Network: name, Name: string(u)})
			nv := nodeFor(dpbnet.Terminal{Network: name, Name: string(v)})
			pair := graph.NewPair(nu, nv)
			if existing, ok := edges[pair]; !ok || w < existing {
				edges[pair] = w
			}
		}
	}

	return edges, trunkByPair, nil
}

// GetModel returns the weighted mesh among this aggregator's own exposed
// terminals (spec.md §4.3), letting a superior aggregator treat this one
// as an ordinary member network.
func (a *Aggregator) GetModel(minBandwidth float64) (graph.EdgeSet, error) {
	edges, _, err := a.candidateGraph(minBandwidth)
	if err != nil {
		return nil, err
	}

	var exposedNodes []graph.Node
	exposedByNode := make(map[graph.Node]string)
	a.mu.Lock()
	for name, mt := range a.terminals {
		n := nodeFor(mt.inner)
		exposedNodes = append(exposedNodes, n)
		exposedByNode[n] = name
	}
	a.mu.Unlock()

	tables := graph.Relax(exposedNodes, edges)
	model := graph.EdgeSet{}
	for _, d := range exposedNodes {
		for u, fib := range tables {
			if u == d {
				continue
			}
			uName, isExposed := exposedByNode[u]
			if !isExposed {
				continue
			}
			hop, ok := fib[d]
			if !ok {
				continue
			}
			p := graph.NewPair(graph.Node(uName), graph.Node(exposedByNode[d]))
			if existing, has := model[p]; !has || hop.Distance < existing {
				model[p] = hop.Distance
			}
		}
	}
	return model, nil
}
