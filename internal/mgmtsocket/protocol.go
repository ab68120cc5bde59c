// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mgmtsocket

import (
	"github.com/dpbroker/dpb/internal/dpbnet"
)

// endpointSpec is one circuit within a request's endpoints array.
type endpointSpec struct {
	Terminal string  `json:"terminal"`
	Label    uint32  `json:"label"`
	Ingress  float64 `json:"ingress"`
	Egress   float64 `json:"egress"`
}

// request is one client-sent JSON object; Type selects the operation
// (spec.md §6: "each request object carries a type field selecting an
// operation").
type request struct {
	Type      string         `json:"type"`
	Handle    string         `json:"handle"`
	Endpoints []endpointSpec `json:"endpoints,omitempty"`
	Bandwidth float64        `json:"bandwidth,omitempty"`
}

// response is one server-sent JSON object answering a request. Each
// request gets exactly one response; the server sends no unsolicited
// notifications.
type response struct {
	Type   string `json:"type,omitempty"`
	Handle string `json:"handle,omitempty"`
	State  string `json:"state,omitempty"`
	Error  string `json:"error,omitempty"`
}

func segmentFromRequest(network string, req request) dpbnet.Segment {
	flows := make(map[dpbnet.Circuit]dpbnet.TrafficFlow, len(req.Endpoints))
	for _, ep := range req.Endpoints {
		c := dpbnet.Circuit{Terminal: dpbnet.Terminal{Network: network, Name: ep.Terminal}, Label: ep.Label}
		flows[c] = dpbnet.TrafficFlow{Ingress: ep.Ingress, Egress: ep.Egress}
	}
	return dpbnet.Segment{Flows: flows, BandwidthCap: req.Bandwidth}
}
