// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dpbnet

import (
	"github.com/dpbroker/dpb/internal/bandwidth"
	"github.com/dpbroker/dpb/internal/dpberrors"
)

// BandwidthRange is the demand range a segment or tree edge must satisfy.
// It is exactly bandwidth.Range; the alias keeps callers in this package
// from importing internal/bandwidth just to spell the type.
type BandwidthRange = bandwidth.Range

// Segment is an immutable definition of circuits and their traffic
// demands within a single network (spec.md §3). Once passed to a
// Service's Define, it must not be mutated; construct a new Segment to
// redefine a service.
type Segment struct {
	Flows            map[Circuit]TrafficFlow
	DelayCeiling     float64
	ErrorRateCeiling float64
	BandwidthCap     float64
}

// Validate checks the segment's own structural invariants: every circuit's
// terminal belongs to network, and the flow map has no duplicate circuit
// (guaranteed by Go map keys, but we re-check non-emptiness and degree).
// It does not check trunk or graph feasibility; that is plotTree's job.
func (s Segment) Validate(network string) error {
	if len(s.Flows) == 0 {
		return dpberrors.New(dpberrors.CodeInvalidSegment, "dpbnet: segment has zero circuits")
	}
	for c := range s.Flows {
		if c.Terminal.Network != network {
			return dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "dpbnet: circuit %s is not on network %q", c, network)
		}
	}
	return nil
}

// Circuits returns the segment's circuits in no particular order.
func (s Segment) Circuits() []Circuit {
	out := make([]Circuit, 0, len(s.Flows))
	for c := range s.Flows {
		out = append(out, c)
	}
	return out
}
