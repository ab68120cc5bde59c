// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package memnet is the transient in-memory reference implementation of
// the dpbnet.Network contract (spec.md §4.3): a leaf fabric with no
// subordinates of its own, suitable for tests, simulation, and as the
// member-network stand-in an aggregatorsvc.Aggregator delegates to. A
// real physical-switch or persistent-network implementation follows the
// same shape with its backend swapped in.
package memnet

import (
	"sync"

	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/graph"
	"github.com/google/uuid"
)

// Link is an internal point-to-point connection between two of a
// Network's own terminals, used to build the reachability model GetModel
// returns to a superior aggregator.
type Link struct {
	A, B      string
	Delay     float64
	Bandwidth float64
}

// Network is an in-memory Network implementation: a fixed set of
// terminals wired by internal Links, and a service index guarded by a
// single mutex (the per-aggregator-equivalent lock of spec.md §5, scoped
// here to a leaf network with no trunks of its own).
type Network struct {
	name string

	mu        sync.Mutex
	terminals map[string]dpbnet.Terminal
	links     []Link
	services  map[string]*Service
}

// New constructs an empty in-memory network. Terminals and links are
// added afterwards with AddTerminal and AddLink.
func New(name string) *Network {
	return &Network{
		name:      name,
		terminals: make(map[string]dpbnet.Terminal),
		services:  make(map[string]*Service),
	}
}

// AddTerminal registers a new terminal owned by this network.
func (n *Network) AddTerminal(name string) dpbnet.Terminal {
	n.mu.Lock()
	defer n.mu.Unlock()
	t := dpbnet.Terminal{Network: n.name, Name: name}
	n.terminals[name] = t
	return t
}

// AddLink registers an internal link between two of this network's
// terminals, used by GetModel's reachability computation.
func (n *Network) AddLink(a, b string, delay, bandwidth float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, Link{A: a, B: b, Delay: delay, Bandwidth: bandwidth})
}

func (n *Network) Name() string { return n.name }

func (n *Network) GetTerminal(name string) (dpbnet.Terminal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.terminals[name]
	if !ok {
		return dpbnet.Terminal{}, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "memnet: network %q has no terminal %q", n.name, name)
	}
	return t, nil
}

func (n *Network) ListTerminals() []dpbnet.Terminal {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]dpbnet.Terminal, 0, len(n.terminals))
	for _, t := range n.terminals {
		out = append(out, t)
	}
	return out
}

func (n *Network) NewService() (dpbnet.Service, error) {
	return n.NewServiceWithHandle(uuid.NewString())
}

func (n *Network) NewServiceWithHandle(handle string) (dpbnet.Service, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.services[handle]; ok {
		return nil, dpberrors.Errorf(dpberrors.CodeHandleInUse, "memnet: network %q already has a service %q", n.name, handle)
	}
	svc := newService(handle, n.name, n.removeService)
	n.services[handle] = svc
	return svc, nil
}

func (n *Network) removeService(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.services, id)
}

func (n *Network) GetService(id string) (dpbnet.Service, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	svc, ok := n.services[id]
	if !ok {
		return nil, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "memnet: network %q has no service %q", n.name, id)
	}
	return svc, nil
}

func (n *Network) ListServices() []dpbnet.Service {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]dpbnet.Service, 0, len(n.services))
	for _, s := range n.services {
		out = append(out, s)
	}
	return out
}

// GetModel returns the weighted mesh among this network's terminals
// reachable over internal links with capacity >= minBandwidth (spec.md
// §4.3). It computes all-pairs shortest delay over the filtered link set
// via the same distance-vector relaxation used for tree plotting, in a
// single run with every terminal as a destination.
func (n *Network) GetModel(minBandwidth float64) (graph.EdgeSet, error) {
	n.mu.Lock()
	edges := graph.EdgeSet{}
	var dests []graph.Node
	for name := range n.terminals {
		dests = append(dests, graph.Node(name))
	}
	for _, l := range n.links {
		if l.Bandwidth < minBandwidth {
			continue
		}
		edges[graph.NewPair(graph.Node(l.A), graph.Node(l.B))] = l.Delay
	}
	n.mu.Unlock()

	tables := graph.Relax(dests, edges)
	model := graph.EdgeSet{}
	for _, d := range dests {
		for u, fib := range tables {
			if u == d {
				continue
			}
			hop, ok := fib[d]
			if !ok {
				continue
			}
			p := graph.NewPair(u, d)
			if existing, has := model[p]; !has || hop.Distance < existing {
				model[p] = hop.Distance
			}
		}
	}
	return model, nil
}
