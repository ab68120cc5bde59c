// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package memnet

import (
	"context"
	"sync"
	"time"

	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
)

// Service is the in-memory reference Service implementation. A leaf
// network has no subordinates to fan out to, so define/activate/
// deactivate complete synchronously under the service's own lock
// (spec.md §5's per-service lock); no external call is ever made while
// it is held.
type Service struct {
	id      string
	network string
	onGone  func(id string)

	mu         sync.Mutex
	state      dpbnet.ServiceState
	definition dpbnet.Segment
	hasDef     bool
	faults     []error
	changed    chan struct{} // closed and replaced on every state change

	loop *dpbnet.EventLoop
}

func newService(id, network string, onGone func(string)) *Service {
	return &Service{
		id:      id,
		network: network,
		onGone:  onGone,
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

// setState transitions state, clears faults when clear is true, and
// wakes every AwaitStatus waiter. Caller must hold s.mu; it is released
// and an event is published after, never while held.
func (s *Service) setState(next dpbnet.ServiceState, clearFaults bool) {
	s.state = next
	if clearFaults {
		s.faults = nil
	}
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Service) Define(seg dpbnet.Segment) error {
	if err := seg.Validate(s.network); err != nil {
		return err
	}

	s.mu.Lock()
	switch s.state {
	case dpbnet.Released:
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeReleasedService, "memnet: service is released")
	}
	s.definition = seg
	s.hasDef = true
	s.setState(dpbnet.Inactive, true)
	s.mu.Unlock()

	s.loop.Publish(dpbnet.Event{Kind: dpbnet.EventReady, Service: s.id})
	return nil
}

func (s *Service) Activate() error {
	s.mu.Lock()
	switch s.state {
	case dpbnet.Released:
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeReleasedService, "memnet: service is released")
	case dpbnet.Dormant:
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeDormantService, "memnet: service has no definition")
	case dpbnet.Active, dpbnet.Activating:
		// activate() when intent already set is a no-op (spec.md §8).
		s.mu.Unlock()
		return nil
	}
	s.setState(dpbnet.Active, false)
	s.mu.Unlock()

	s.loop.Publish(dpbnet.Event{Kind: dpbnet.EventActivated, Service: s.id})
	return nil
}

func (s *Service) Deactivate() error {
	s.mu.Lock()
	switch s.state {
	case dpbnet.Released:
		s.mu.Unlock()
		return dpberrors.New(dpberrors.CodeReleasedService, "memnet: service is released")
	case dpbnet.Inactive, dpbnet.Deactivating:
		s.mu.Unlock()
		return nil
	}
	s.setState(dpbnet.Inactive, false)
	s.mu.Unlock()

	s.loop.Publish(dpbnet.Event{Kind: dpbnet.EventDeactivated, Service: s.id})
	return nil
}

// Release is idempotent: it produces exactly one released event no
// matter how many times it is called (spec.md §8).
func (s *Service) Release() error {
	s.mu.Lock()
	if s.state == dpbnet.Released {
		s.mu.Unlock()
		return nil
	}
	s.setState(dpbnet.Released, false)
	s.mu.Unlock()

	s.loop.Publish(dpbnet.Event{Kind: dpbnet.EventReleased, Service: s.id})
	s.loop.Close()
	if s.onGone != nil {
		s.onGone(s.id)
	}
	return nil
}

// AwaitStatus blocks until the service's state is in set, the context is
// done, or timeout elapses, whichever comes first. FAILED matches any
// awaited set containing it; otherwise AwaitStatus returns the current
// state on timeout without error (spec.md §9's resolved open question).
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
