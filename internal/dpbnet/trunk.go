// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dpbnet

import (
	"sort"
	"sync"

	"github.com/dpbroker/dpb/internal/dpberrors"
)

// TunnelAllocation is the result of a successful Trunk.AllocateTunnel: the
// circuits on each side of the tunnel and the label pair that connects
// them.
type TunnelAllocation struct {
	StartCircuit Circuit
	EndCircuit   Circuit
	StartLabel   uint32
	EndLabel     uint32
}

// Trunk is a bidirectional inter-network link (spec.md §4.5): two
// terminals on distinct member networks, a non-negative delay, a
// bandwidth pool, and a bidirectional start<->end label mapping with an
// "available" pool over start labels. A single mutex guards the label
// pool and bandwidth counter, the per-trunk lock of spec.md §5.
type Trunk struct {
	// ID gives trunks a stable, comparable identity used for the
	// canonical lock ordering spec.md §5 requires when code must hold
	// more than one trunk lock at a time (sort trunks by ID first).
	ID    string
	Start Terminal
	End   Terminal
	Delay float64

	mu               sync.Mutex
	initialBandwidth float64
	remainingBw      float64
	startToEnd       map[uint32]uint32
	endToStart       map[uint32]uint32
	available        map[uint32]bool
	allocated        map[uint32]bool
}

// NewTrunk constructs an empty Trunk with the given initial bandwidth
// pool. Label ranges are added afterwards via DefineLabelRange.
func NewTrunk(id string, start, end Terminal, delay, bandwidth float64) *Trunk {
	return &Trunk{
		ID:               id,
		Start:            start,
		End:              end,
		Delay:            delay,
		initialBandwidth: bandwidth,
		remainingBw:      bandwidth,
		startToEnd:       make(map[uint32]uint32),
		endToStart:       make(map[uint32]uint32),
		available:        make(map[uint32]bool),
		allocated:        make(map[uint32]bool),
	}
}

// RemainingBandwidth returns the trunk's currently unreserved bandwidth.
func (t *Trunk) RemainingBandwidth() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingBw
}

// FreeLabels returns the number of unallocated start labels.
func (t *Trunk) FreeLabels() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.available)
}

// DefineLabelRange atomically reserves [startBase, startBase+count) on the
// start side, mapped pairwise to [endBase, endBase+count) on the end
// side, and adds them to the available pool. Fails if any label in
// either range is already defined.
func (t *Trunk) DefineLabelRange(startBase, count, endBase uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := uint32(0); i < count; i++ {
		s, e := startBase+i, endBase+i
		if _, ok := t.startToEnd[s]; ok {
			return dpberrors.Errorf(dpberrors.CodeUnknownLabel, "dpbnet: trunk %s start label %d already defined", t.ID, s)
		}
		if _, ok := t.endToStart[e]; ok {
			return dpberrors.Errorf(dpberrors.CodeUnknownLabel, "dpbnet: trunk %s end label %d already defined", t.ID, e)
		}
	}
	for i := uint32(0); i < count; i++ {
		s, e := startBase+i, endBase+i
		t.startToEnd[s] = e
		t.endToStart[e] = s
		t.available[s] = true
	}
	return nil
}

// AllocateTunnel pops a start label from the available pool and
// decrements the remaining bandwidth by bw, returning the resulting
// circuits and label pair. Fails with CodeNoTunnelsAvailable if the pool
// is empty, or CodeInsufficientBandwidth if bw exceeds what remains; in
// either failure case the trunk's state is left unchanged.
func (t *Trunk) AllocateTunnel(bw float64) (TunnelAllocation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if bw > t.remainingBw {
		return TunnelAllocation{}, dpberrors.Errorf(dpberrors.CodeInsufficientBandwidth, "dpbnet: trunk %s has %g remaining, need %g", t.ID, t.remainingBw, bw)
	}
	label, ok := t.popAvailable()
	if !ok {
		return TunnelAllocation{}, dpberrors.Errorf(dpberrors.CodeNoTunnelsAvailable, "dpbnet: trunk %s has no free labels", t.ID)
	}

	peer := t.startToEnd[label]
	t.allocated[label] = true
	t.remainingBw -= bw

	return TunnelAllocation{
		StartCircuit: Circuit{Terminal: t.Start, Label: label},
		EndCircuit:   Circuit{Terminal: t.End, Label: peer},
		StartLabel:   label,
		EndLabel:     peer,
	}, nil
}

// popAvailable removes and returns the lowest-numbered available label,
// for deterministic allocation order. Caller must hold t.mu.
func (t *Trunk) popAvailable() (uint32, bool) {
	if len(t.available) == 0 {
		return 0, false
	}
	labels := make([]uint32, 0, len(t.available))
	for l := range t.available {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	l := labels[0]
	delete(t.available, l)
	return l, true
}

// ReleaseTunnel idempotently returns a start label to the available pool.
// Fails with CodeUnknownLabel if the label was never defined on this
// trunk; returning an already-available (never-allocated) label is a
// no-op, not an error.
func (t *Trunk) ReleaseTunnel(startLabel uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.startToEnd[startLabel]; !ok {
		return dpberrors.Errorf(dpberrors.CodeUnknownLabel, "dpbnet: trunk %s has no such label %d", t.ID, startLabel)
	}
	delete(t.allocated, startLabel)
	t.available[startLabel] = true
	return nil
}

// ReleaseBandwidth idempotently refunds bw to the remaining pool, capped
// at the trunk's initial bandwidth.
func (t *Trunk) ReleaseBandwidth(bw float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remainingBw += bw
	if t.remainingBw > t.initialBandwidth {
		t.remainingBw = t.initialBandwidth
	}
}

// Peer resolves a circuit on one side of the trunk to its mapped circuit
// on the other side. Fails with CodeUnknownLabel if c's terminal and
// label don't name a defined mapping.
func (t *Trunk) Peer(c Circuit) (Circuit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch c.Terminal {
	case t.Start:
		if e, ok := t.startToEnd[c.Label]; ok {
			return Circuit{Terminal: t.End, Label: e}, nil
		}
	case t.End:
		if s, ok := t.endToStart[c.Label]; ok {
			return Circuit{Terminal: t.Start, Label: s}, nil
		}
	}
	return Circuit{}, dpberrors.Errorf(dpberrors.CodeUnknownLabel, "dpbnet: trunk %s has no peer for %s", t.ID, c)
}

// RetainTunnels releases every currently allocated label not present in
// keep; persistence.Recover calls it on every trunk. Bandwidth is not
// touched: the released labels' bandwidth is not returned to the trunk.
func (t *Trunk) RetainTunnels(keep map[uint32]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for label := range t.allocated {
		if !keep[label] {
			delete(t.allocated, label)
			t.available[label] = true
		}
	}
}

// AllocatedLabels returns the set of currently allocated start labels.
func (t *Trunk) AllocatedLabels() map[uint32]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint32]bool, len(t.allocated))
	for l := range t.allocated {
		out[l] = true
	}
	return out
}
