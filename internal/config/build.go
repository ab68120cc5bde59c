// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/dpbroker/dpb/internal/aggregatorsvc"
	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/dpbnet/memnet"
	"github.com/dpbroker/dpb/internal/logging"
)

// Topology is built into a set of live, wired fabrics: the leaf member
// networks and the aggregators composed over them. Aggregators are
// addressable as dpbnet.Network too, since one can nest as a member of a
// superior aggregator (spec.md §4.3).
type Built struct {
	Networks    map[string]dpbnet.Network
	Aggregators map[string]*aggregatorsvc.Aggregator
}

// Network looks up a built fabric (leaf or aggregator) by name.
func (b *Built) Network(name string) (dpbnet.Network, bool) {
	n, ok := b.Networks[name]
	return n, ok
}

// Build wires the decoded topology into live networks and aggregators.
// Aggregator blocks are processed in file order, so an aggregator's
// `members` list may name either a network block or an earlier
// aggregator block (recursive composition, spec.md §4.3), but not a
// later one.
func (t *Topology) Build(log *logging.Logger) (*Built, error) {
	built := &Built{
		Networks:    make(map[string]dpbnet.Network),
		Aggregators: make(map[string]*aggregatorsvc.Aggregator),
	}

	for _, nc := range t.Networks {
		if _, exists := built.Networks[nc.Name]; exists {
			return nil, dpberrors.Errorf(dpberrors.CodeInvalidSegment, "config: duplicate network %q", nc.Name)
		}
		n := memnet.New(nc.Name)
		for _, term := range nc.Terminals {
			n.AddTerminal(term)
		}
		for _, l := range nc.Links {
			n.AddLink(l.A, l.B, l.Delay, l.Bandwidth)
		}
		built.Networks[nc.Name] = n
	}

	for _, ac := range t.Aggregators {
		if _, exists := built.Networks[ac.Name]; exists {
			return nil, dpberrors.Errorf(dpberrors.CodeInvalidSegment, "config: duplicate network %q", ac.Name)
		}
		agg := aggregatorsvc.New(ac.Name, log)
		for _, member := range ac.Members {
			mn, ok := built.Networks[member]
			if !ok {
				return nil, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "config: aggregator %q references unknown or not-yet-built member %q", ac.Name, member)
			}
			agg.AddMember(mn)
		}
		for _, exp := range ac.Exposed {
			if _, err := agg.ExposeTerminal(exp.Name, exp.Network, exp.Terminal); err != nil {
				return nil, err
			}
		}
		for _, tc := range ac.Trunks {
			trunk := dpbnet.NewTrunk(tc.Name,
				dpbnet.Terminal{Network: tc.StartNetwork, Name: tc.StartTerminal},
				dpbnet.Terminal{Network: tc.EndNetwork, Name: tc.EndTerminal},
				tc.Delay, tc.Bandwidth)
			for _, lr := range tc.LabelRange {
				if err := trunk.DefineLabelRange(lr.StartBase, lr.Count, lr.EndBase); err != nil {
					return nil, err
				}
			}
			if err := agg.AddTrunk(trunk); err != nil {
				return nil, err
			}
		}
		built.Networks[ac.Name] = agg
		built.Aggregators[ac.Name] = agg
	}

	return built, nil
}
