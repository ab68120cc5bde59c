// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package aggregatorsvc

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dpbroker/dpb/internal/bandwidth"
	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"golang.org/x/sync/errgroup"
)

// subordinate is one member network's service realising its slice of a
// plotted tree.
type subordinate struct {
	network dpbnet.Network
	svc     dpbnet.Service
	remove  func()
}

// Service is the aggregator's Service implementation (spec.md §4.4): it
// owns a set of subordinate services, one per member network in the
// plotted tree, plus the trunk-tunnel reservations connecting them, and
// drives the DORMANT -> ESTABLISHING -> INACTIVE <-> (ACTIVATING ->
// ACTIVE -> DEACTIVATING -> INACTIVE) state machine with any-state ->
// FAILED / RELEASED. A single mutex guards everything but the listener
// loop itself (spec.md §5's per-service lock); no subordinate or trunk
// call is ever made while it is held.
type Service struct {
	id  string
	agg *Aggregator

	mu             sync.Mutex
	state          dpbnet.ServiceState
	definition     dpbnet.Segment
	hasDef         bool
	endpoints      []dpbnet.Circuit
	bwFunc         bandwidth.Function
	activityIntent bool
	faults         []error
	changed        chan struct{}

	subordinates map[string]*subordinate
	tunnels      []tunnelReservation

	unresponded int
	activeCount int

	loop *dpbnet.EventLoop
}

func newServiceLocked(handle string, agg *Aggregator) *Service {
	return &Service{
		id:      handle,
		agg:     agg,
		state:   dpbnet.Dormant,
		changed: make(chan struct{}),
		loop:    dpbnet.NewEventLoop(),
	}
}

func (s *Service) ID() string { return s.id }

func (s *Service) Status() dpbnet.ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) Faults() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.faults))
	copy(out, s.faults)
	return out
}

func (s *Service) Definition() (dpbnet.Segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.definition, s.hasDef
}

func (s *Service) AddListener(l dpbnet.Listener) (remove func()) {
	return s.loop.AddListener(l)
}

// setState transitions state and wakes every AwaitStatus waiter. Caller
// must hold s.mu.
func (s *Service) setState(next dpbnet.ServiceState, clearFaults bool) {
	s.state = next
	if clearFaults {
		s.faults = nil
	}
	close(s.changed)
	s.changed = make(chan struct{})

	s.agg.metrics.ObserveServiceState(s.agg.name, s.id, next)
	if next == dpbnet.Released {
		s.agg.metrics.ForgetService(s.agg.name, s.id)
	}
}

func (s *Service) allSubordinatesLocked() []*subordinate {
	out := make([]*subordinate, 0, len(s.subordinates))
	for _, sub := range s.subordinates {
		out = append(out, sub)
	}
	return out
}

// Define records seg, derives the demand function, and moves the service
// to ESTABLISHING; tree plotting and subordinate fan-out run
// asynchronously on establish() so Define itself returns promptly
// (spec.md §5).
func (s *Service) Define(seg dpbnet.Segment) error {
	if err := seg.Validate(s.agg.name); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == dpbnet.Released {
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeReleasedService, "aggregatorsvc: service is released")
	}

	endpoints := seg.Circuits()
	sort.Slice(endpoints, func(i, j int) bool { return endpoints[i].String() < endpoints[j].String() })

	s.definition = seg
	s.hasDef = true
	s.endpoints = endpoints
	s.bwFunc = buildFunction(endpoints, seg)
	s.setState(dpbnet.Establishing, true)
	s.mu.Unlock()

	go s.establish()
	return nil
}

// establish plots a tree for the service's current definition and fans
// it out to subordinate services (spec.md §4.4). It runs on its own
// goroutine, never while s.mu is held.
//
// Each subordinate's listener is attached before Define is called on it,
// not after: a leaf network's Define fires its own `ready` event
// synchronously off the call, and a listener attached afterwards could
// miss an event that already landed on an unlistened EventLoop.
func (s *Service) establish() {
	s.mu.Lock()
	seg := s.definition
	endpoints := s.endpoints
	bwFunc := s.bwFunc
	s.mu.Unlock()

	result, err := s.agg.plotTree(endpoints, bwFunc, seg.BandwidthCap)
	if err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	if s.state != dpbnet.Establishing {
		s.mu.Unlock()
		releaseTunnels(s.agg, result.tunnels)
		return
	}
	s.tunnels = result.tunnels
	s.subordinates = make(map[string]*subordinate, len(result.groups))
	s.unresponded = len(result.groups)
	s.activeCount = 0
	s.mu.Unlock()

	if len(result.groups) == 0 {
		s.mu.Lock()
		if s.state == dpbnet.Establishing {
			s.setState(dpbnet.Inactive, false)
		}
		s.mu.Unlock()
		s.loop.Publish(dpbnet.Event{Kind: dpbnet.EventReady, Service: s.id})
		return
	}

	for i, g := range result.groups {
		bwCap, err := memberBandwidthCap(bwFunc, result.groups, i, seg.BandwidthCap)
		if err != nil {
			s.fail(err)
			return
		}
		memberSeg := dpbnet.Segment{
			Flows:            flowsForGroup(g, endpoints, seg),
			DelayCeiling:     seg.DelayCeiling,
			ErrorRateCeiling: seg.ErrorRateCeiling,
			BandwidthCap:     bwCap,
		}

		svc, err := g.network.NewService()
		if err != nil {
			s.fail(err)
			return
		}

		name := g.name
		sub := &subordinate{network: g.network, svc: svc}
		sub.remove = svc.AddListener(func(e dpbnet.Event) {
			s.handleSubordinateEvent(name, e)
		})

		s.mu.Lock()
		if s.state != dpbnet.Establishing {
			s.mu.Unlock()
			sub.remove()
			_ = svc.Release()
			return
		}
		s.subordinates[name] = sub
		s.mu.Unlock()

		if err := svc.Define(memberSeg); err != nil {
			s.fail(err)
			return
		}
	}
}

// fail records err as a fault, moves the service to FAILED, and releases
// every subordinate and tunnel attached so far, unless the service is
// already settled (RELEASED or previously FAILED) — the idempotency
// guard doubles as the "first error wins" rule spec.md §4.4's counters
// describe, since a second failure arriving after the first is a no-op.
func (s *Service) fail(err error) {
	s.mu.Lock()
	if s.state == dpbnet.Released || s.state == dpbnet.Failed {
		s.mu.Unlock()
		return
	}
	s.faults = append(s.faults, err)
	s.setState(dpbnet.Failed, false)
	s.mu.Unlock()

	s.releaseSubordinatesAndTunnels()
	s.loop.Publish(dpbnet.Event{Kind: dpbnet.EventFailed, Service: s.id, Cause: err})
}

// handleSubordinateEvent folds one subordinate's lifecycle event into the
// aggregator service's counters (spec.md §4.4's "counters and
// completion"), deciding under lock whether the aggregate state advances,
// then performs any resulting subordinate calls and listener publish
// outside the lock.
func (s *Service) handleSubordinateEvent(member string, e dpbnet.Event) {
	if e.Kind == dpbnet.EventFailed {
		s.fail(dpberrors.Wrapf(e.Cause, dpberrors.CodeSubordinateFailed, "aggregatorsvc: member %q failed", member))
		return
	}

	s.mu.Lock()
	if s.state == dpbnet.Released || s.state == dpbnet.Failed {
		s.mu.Unlock()
		return
	}

	var (
		publish    *dpbnet.Event
		toActivate []*subordinate
	)

	switch e.Kind {
	case dpbnet.EventReady:
		if s.unresponded > 0 {
			s.unresponded--
		}
		if s.unresponded == 0 {
			if s.activityIntent {
				toActivate = s.allSubordinatesLocked()
				s.setState(dpbnet.Activating, false)
			} else {
				s.setState(dpbnet.Inactive, false)
			}
			ev := dpbnet.Event{Kind: dpbnet.EventReady, Service: s.id}
			publish = &ev
		}
	case dpbnet.EventActivated:
		s.activeCount++
		if s.activeCount >= len(s.subordinates) {
			s.setState(dpbnet.Active, false)
			ev := dpbnet.Event{Kind: dpbnet.EventActivated, Service: s.id}
			publish = &ev
		}
	case dpbnet.EventDeactivated:
		if s.activeCount > 0 {
			s.activeCount--
		}
		if s.activeCount == 0 {
			s.setState(dpbnet.Inactive, false)
			ev := dpbnet.Event{Kind: dpbnet.EventDeactivated, Service: s.id}
			publish = &ev
		}
	}
	s.mu.Unlock()

	for _, sub := range toActivate {
		_ = sub.svc.Activate()
	}
	if publish != nil {
		s.loop.Publish(*publish)
	}
}

// releaseSubordinatesAndTunnels performs best-effort cleanup of every
// subordinate and tunnel without touching state (the caller has already
// transitioned to FAILED).
func (s *Service) releaseSubordinatesAndTunnels() {
	s.mu.Lock()
	subs := s.allSubordinatesLocked()
	s.subordinates = nil
	tunnels := s.tunnels
	s.tunnels = nil
	s.mu.Unlock()

	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		if sub.remove != nil {
			sub.remove()
		}
		g.Go(func() error { return sub.svc.Release() })
	}
	_ = g.Wait()
	releaseTunnels(s.agg, tunnels)
}

func (s *Service) Activate() error {
	s.mu.Lock()
	switch s.state {
	case dpbnet.Released:
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeReleasedService, "aggregatorsvc: service is released")
	case dpbnet.Dormant:
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeDormantService, "aggregatorsvc: service has no definition")
	case dpbnet.Failed:
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeInUseService, "aggregatorsvc: service has failed")
	}

	s.activityIntent = true
	switch s.state {
	case dpbnet.Active, dpbnet.Activating, dpbnet.Establishing:
		// Intent recorded; establish()/handleSubordinateEvent act on it
		// once ESTABLISHING completes, or it's already satisfied.
		s.mu.Unlock()
		return nil
	}

	subs := s.allSubordinatesLocked()
	s.setState(dpbnet.Activating, false)
	s.mu.Unlock()

	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error { return sub.svc.Activate() })
	}
	if err := g.Wait(); err != nil {
		s.fail(dpberrors.Wrapf(err, dpberrors.CodeSubordinateFailed, "aggregatorsvc: subordinate activate failed"))
	}
	return nil
}

func (s *Service) Deactivate() error {
	s.mu.Lock()
	if s.state == dpbnet.Released {
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeReleasedService, "aggregatorsvc: service is released")
	}

	s.activityIntent = false
	switch s.state {
	case dpbnet.Inactive, dpbnet.Deactivating, dpbnet.Dormant, dpbnet.Establishing, dpbnet.Failed:
		s.mu.Unlock()
		return nil
	}

	subs := s.allSubordinatesLocked()
	s.setState(dpbnet.Deactivating, false)
	s.mu.Unlock()

	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error { return sub.svc.Deactivate() })
	}
	if err := g.Wait(); err != nil {
		s.fail(dpberrors.Wrapf(err, dpberrors.CodeSubordinateFailed, "aggregatorsvc: subordinate deactivate failed"))
	}
	return nil
}

// Release is idempotent: it produces exactly one released event no
// matter how many times it is called, releasing every subordinate and
// returning every trunk tunnel even if plotting was still in flight
// (spec.md §4.4's release discipline, §8 scenario 4).
func (s *Service) Release() error {
	s.mu.Lock()
	if s.state == dpbnet.Released {
		s.mu.Unlock()
		return nil
	}

	subs := s.allSubordinatesLocked()
	tunnels := s.tunnels
	s.tunnels = nil
	s.subordinates = nil
	s.setState(dpbnet.Released, false)
	s.mu.Unlock()

	var releaseGroup errgroup.Group
	for _, sub := range subs {
		sub := sub
		if sub.remove != nil {
			sub.remove()
		}
		releaseGroup.Go(func() error { return sub.svc.Release() })
	}
	_ = releaseGroup.Wait()
	releaseTunnels(s.agg, tunnels)
	s.agg.removeService(s.id)

	s.loop.Publish(dpbnet.Event{Kind: dpbnet.EventReleased, Service: s.id})
	s.loop.Close()
	return nil
}

// AwaitStatus blocks until the service's state is in set, the context is
// done, or timeout elapses, whichever comes first; FAILED matches any
// awaited set containing it, and a timeout returns the current state
// without error (spec.md §9's resolved open question).
func (s *Service) AwaitStatus(ctx context.Context, set map[dpbnet.ServiceState]bool, timeout time.Duration) (dpbnet.ServiceState, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		cur := s.state
		ch := s.changed
		s.mu.Unlock()

		if set[cur] {
			return cur, nil
		}

		select {
		case <-ch:
			continue
		case <-ctx.Done():
			return cur, ctx.Err()
		case <-deadline.C:
			return cur, nil
		}
	}
}
