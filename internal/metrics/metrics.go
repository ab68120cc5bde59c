// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the broker's runtime state as Prometheus
// metrics: one gauge per service's lifecycle state, trunk bandwidth and
// label-pool occupancy, and a histogram of tree-plotting latency
// (spec.md §4.4's plotTree is the one operation expensive enough to be
// worth timing).
package metrics

import (
	"net/http"

	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects the broker's metrics into its own registry. A nil
// *Recorder is valid and every method on it is a no-op, so components
// can be built without a Recorder wired in (e.g. in tests) without
// guarding every call site.
type Recorder struct {
	registry *prometheus.Registry

	serviceState   *prometheus.GaugeVec
	trunkBandwidth *prometheus.GaugeVec
	trunkLabels    *prometheus.GaugeVec
	plotLatency    prometheus.Histogram
	plotFailures   prometheus.Counter
}

// New builds a Recorder with its own registry, separate from the global
// default so multiple brokers in one process (as in tests) don't
// collide registering the same metric names.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		serviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dpb",
			Subsystem: "service",
			Name:      "state",
			Help:      "Current lifecycle state of a service (1 if the service is in this state, 0 otherwise).",
		}, []string{"aggregator", "service_id", "state"}),
		trunkBandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dpb",
			Subsystem: "trunk",
			Name:      "remaining_bandwidth",
			Help:      "Remaining unreserved bandwidth on a trunk, in the topology's native units.",
		}, []string{"aggregator", "trunk"}),
		trunkLabels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dpb",
			Subsystem: "trunk",
			Name:      "free_labels",
			Help:      "Count of unallocated tunnel labels remaining on a trunk.",
		}, []string{"aggregator", "trunk"}),
		plotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dpb",
			Subsystem: "aggregator",
			Name:      "plot_tree_seconds",
			Help:      "Time spent plotting a spanning tree and allocating trunk tunnels for one service.",
			Buckets:   prometheus.DefBuckets,
		}),
		plotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dpb",
			Subsystem: "aggregator",
			Name:      "plot_tree_failures_total",
			Help:      "Count of plotTree invocations that returned an error.",
		}),
	}

	reg.MustRegister(r.serviceState, r.trunkBandwidth, r.trunkLabels, r.plotLatency, r.plotFailures)
	return r
}

// Handler returns an http.Handler serving this Recorder's registry in
// the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// allStates enumerates every dpbnet.ServiceState so ObserveServiceState
// can zero out the states a service isn't currently in; otherwise a
// service that leaves a state would leave a stale "1" gauge behind.
var allStates = []dpbnet.ServiceState{
	dpbnet.Dormant, dpbnet.Establishing, dpbnet.Inactive,
	dpbnet.Activating, dpbnet.Active, dpbnet.Deactivating,
	dpbnet.Failed, dpbnet.Released,
}

// ObserveServiceState records that service (identified by its owning
// aggregator's name and its own handle) is now in state.
func (r *Recorder) ObserveServiceState(aggregator, serviceID string, state dpbnet.ServiceState) {
	if r == nil {
		return
	}
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		r.serviceState.WithLabelValues(aggregator, serviceID, s.String()).Set(v)
	}
}

// ForgetService removes a released service's gauges so they don't
// accumulate forever across a long-running broker's service churn.
func (r *Recorder) ForgetService(aggregator, serviceID string) {
	if r == nil {
		return
	}
	for _, s := range allStates {
		r.serviceState.DeleteLabelValues(aggregator, serviceID, s.String())
	}
}

// ObserveTrunk records a trunk's current remaining bandwidth and free
// label count, called after every allocation or release.
func (r *Recorder) ObserveTrunk(aggregator string, trunk *dpbnet.Trunk) {
	if r == nil || trunk == nil {
		return
	}
	r.trunkBandwidth.WithLabelValues(aggregator, trunk.ID).Set(trunk.RemainingBandwidth())
	r.trunkLabels.WithLabelValues(aggregator, trunk.ID).Set(float64(trunk.FreeLabels()))
}

// ObservePlotDuration records one plotTree invocation's wall-clock cost.
func (r *Recorder) ObservePlotDuration(seconds float64, failed bool) {
	if r == nil {
		return
	}
	r.plotLatency.Observe(seconds)
	if failed {
		r.plotFailures.Inc()
	}
}
