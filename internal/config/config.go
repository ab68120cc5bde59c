// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the broker's static topology — member networks,
// their internal links, aggregators, and the trunks joining them — from
// HCL (spec.md §9's "injected configuration"), mirroring the teacher's
// internal/config package shape: hcl struct tags decoded via
// hashicorp/hcl/v2, doc-comment @default annotations, a schema version
// constant.
package config

// CurrentSchemaVersion is the schema version this package decodes.
const CurrentSchemaVersion = 1

// Topology is the root HCL document: a set of member networks and a set
// of aggregators composed over them.
type Topology struct {
	// @default: 1
	SchemaVersion int `hcl:"schema_version,optional"`

	Networks    []NetworkConfig    `hcl:"network,block"`
	Aggregators []AggregatorConfig `hcl:"aggregator,block"`
}

// NetworkConfig describes one leaf member network realised as a
// memnet.Network: its terminals and the internal links between them that
// back GetModel (spec.md §4.3).
type NetworkConfig struct {
	Name      string         `hcl:"name,label"`
	Terminals []string       `hcl:"terminals"`
	Links     []LinkConfig   `hcl:"link,block"`
}

// LinkConfig is one internal point-to-point link within a NetworkConfig.
type LinkConfig struct {
	A string `hcl:"a"`
	B string `hcl:"b"`
	// @default: 0
	Delay float64 `hcl:"delay,optional"`
	// @example: mbps(100)
	Bandwidth float64 `hcl:"bandwidth"`
}

// ExposeConfig binds one of an aggregator's exposed terminal names to a
// member network's own terminal (spec.md §4.4's terminal wrapping).
type ExposeConfig struct {
	Name     string `hcl:"name,label"`
	Network  string `hcl:"network"`
	Terminal string `hcl:"terminal"`
}

// LabelRangeConfig reserves one contiguous block of tunnel labels on a
// trunk (spec.md §4.5's defineLabelRange).
type LabelRangeConfig struct {
	StartBase uint32 `hcl:"start_base"`
	Count     uint32 `hcl:"count"`
	EndBase   uint32 `hcl:"end_base"`
}

// TrunkConfig is a bidirectional inter-network link between two member
// networks' own terminals (spec.md §4.5).
type TrunkConfig struct {
	Name          string             `hcl:"name,label"`
	StartNetwork  string             `hcl:"start_network"`
	StartTerminal string             `hcl:"start_terminal"`
	EndNetwork    string             `hcl:"end_network"`
	EndTerminal   string             `hcl:"end_terminal"`
	// @default: 0
	Delay float64 `hcl:"delay,optional"`
	// @example: mbps(1000)
	Bandwidth  float64            `hcl:"bandwidth"`
	LabelRange []LabelRangeConfig `hcl:"label_range,block"`
}

// AggregatorConfig describes one aggregatorsvc.Aggregator: the member
// networks it composes, the terminals it exposes from them, and the
// trunks joining those members.
type AggregatorConfig struct {
	Name     string         `hcl:"name,label"`
	Members  []string       `hcl:"members"`
	Exposed  []ExposeConfig `hcl:"expose,block"`
	Trunks   []TrunkConfig  `hcl:"trunk,block"`
}
