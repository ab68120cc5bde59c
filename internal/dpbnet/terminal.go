// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dpbnet implements the topology and demand model shared by every
// fabric: terminals, circuits, traffic flows, segments and trunks
// (spec.md §3, §4.3, §4.5). Cyclic references (terminal <-> network) are
// broken by holding the owning network's name rather than a back-pointer,
// per spec.md §9's design note.
package dpbnet

import "fmt"

// Terminal identifies a connection point owned by a network. Terminal
// values are comparable and hashable: two Terminals are equal iff they
// name the same network and local terminal name.
type Terminal struct {
	Network string
	Name    string
}

func (t Terminal) String() string { return fmt.Sprintf("%s/%s", t.Network, t.Name) }

// Circuit is a Terminal subdivided by a non-negative integer label (a
// VLAN-like tag). Two circuits are equal iff their Terminal and Label are
// equal (spec.md §3).
type Circuit struct {
	Terminal Terminal
	Label    uint32
}

func (c Circuit) String() string { return fmt.Sprintf("%s:%d", c.Terminal, c.Label) }

// TrafficFlow is an immutable ingress/egress rate pair, both non-negative.
type TrafficFlow struct {
	Ingress float64
	Egress  float64
}
