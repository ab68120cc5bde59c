// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dpbnet

import (
	"context"
	"time"

	"github.com/dpbroker/dpb/internal/graph"
)

// ServiceState is one of a Service's lifecycle states (spec.md §4.4).
type ServiceState int

const (
	Dormant ServiceState = iota
	Establishing
	Inactive
	Activating
	Active
	Deactivating
	Failed
	Released
)

func (s ServiceState) String() string {
	switch s {
	case Dormant:
		return "DORMANT"
	case Establishing:
		return "ESTABLISHING"
	case Inactive:
		return "INACTIVE"
	case Activating:
		return "ACTIVATING"
	case Active:
		return "ACTIVE"
	case Deactivating:
		return "DEACTIVATING"
	case Failed:
		return "FAILED"
	case Released:
		return "RELEASED"
	default:
		return "UNKNOWN"
	}
}

// EventKind identifies the kind of lifecycle event fired to a Service's
// listeners.
type EventKind int

const (
	EventReady EventKind = iota
	EventFailed
	EventActivated
	EventDeactivated
	EventReleased
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventFailed:
		return "failed"
	case EventActivated:
		return "activated"
	case EventDeactivated:
		return "deactivated"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification delivered to a Service listener, in
// the order it was generated (spec.md §5's per-listener FIFO guarantee).
type Event struct {
	Kind    EventKind
	Service string
	Cause   error
}

// Listener receives a service's lifecycle Events. Implementations must
// not block for long: the engine delivers events from a single
// per-service worker goroutine, and a slow listener stalls every
// subsequent event for that service.
type Listener func(Event)

// Service is the contract every fabric's service implementation exposes
// (spec.md §4.3). All methods return promptly except AwaitStatus.
type Service interface {
	ID() string
	Define(seg Segment) error
	Definition() (Segment, bool)
	Activate() error
	Deactivate() error
	Status() ServiceState
	Release() error
	Faults() []error
	AddListener(l Listener) (remove func())
	AwaitStatus(ctx context.Context, set map[ServiceState]bool, timeout time.Duration) (ServiceState, error)
}

// Network is the contract every fabric exposes (spec.md §4.3): a physical
// switch wrapper, a transient in-memory network, a persistent network, or
// an aggregator.
type Network interface {
	Name() string
	GetTerminal(name string) (Terminal, error)
	ListTerminals() []Terminal
	NewService() (Service, error)
	NewServiceWithHandle(handle string) (Service, error)
	GetService(id string) (Service, error)
	ListServices() []Service
	// GetModel returns a weighted mesh among this network's external
	// terminals: for each unordered pair mutually reachable using only
	// internal links with capacity >= minBandwidth, the edge weight is
	// the best attainable delay. A superior aggregator unions this into
	// its own candidate graph during tree plotting.
	GetModel(minBandwidth float64) (graph.EdgeSet, error)
}
