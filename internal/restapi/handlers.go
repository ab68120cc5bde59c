// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package restapi implements the service-handle-oriented REST surface of
// spec.md §6: PUT to define and activate a service under a caller-chosen
// UUID handle, DELETE/POST release to tear it down.
package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/dpbroker/dpb/internal/aggregatorsvc"
	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/logging"
)

// ActivateTimeout is how long PUT /service/by-handle/{uuid} waits for a
// newly defined service to reach ACTIVE before reporting 507 (spec.md
// §6: "awaits ACTIVE up to 30s").
const ActivateTimeout = 30 * time.Second

// Handlers serves the REST surface for a single managed aggregator.
type Handlers struct {
	agg *aggregatorsvc.Aggregator
	log *logging.Logger
}

// NewHandlers builds Handlers bound to agg.
func NewHandlers(agg *aggregatorsvc.Aggregator) *Handlers {
	return &Handlers{agg: agg, log: agg.Log()}
}

// RegisterRoutes wires this Handlers' endpoints onto router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/service/by-handle/{uuid}", h.putServiceByHandle).Methods(http.MethodPut)
	router.HandleFunc("/service/by-handle/{uuid}", h.releaseServiceByHandle).Methods(http.MethodDelete)
	router.HandleFunc("/service/by-handle/{uuid}/release", h.releaseServiceByHandle).Methods(http.MethodPost)
}

// endpointRequest is one entry of a PUT request's "endpoints" array.
type endpointRequest struct {
	IslandSwitchPort    int     `json:"island_switch_port"`
	IslandServiceVlanID uint32  `json:"island_service_vlan_id"`
	IngressBandwidth    float64 `json:"ingress_bandwidth"`
	EgressBandwidth     float64 `json:"egress_bandwidth"`
}

// putServiceRequest is PUT /service/by-handle/{uuid}'s body (spec.md §6).
type putServiceRequest struct {
	Endpoints []endpointRequest `json:"endpoints"`
	Bandwidth float64           `json:"bandwidth"`
}

// terminalName maps a switch-port identifier onto this aggregator's
// exposed terminal naming convention. Topologies built by internal/config
// name terminals by role (e.g. "customer-a"), so the broker's operator
// interface is expected to expose ports under a "port<N>" name; this is
// the REST adapter's resolution of spec.md §6's illustrative endpoint
// shape, which otherwise leaves port-to-terminal binding unspecified.
func terminalName(port int) string {
	return "port" + strconv.Itoa(port)
}

func (h *Handlers) putServiceByHandle(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["uuid"]

	var req putServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_segment", err.Error())
		return
	}

	flows := make(map[dpbnet.Circuit]dpbnet.TrafficFlow, len(req.Endpoints))
	for _, ep := range req.Endpoints {
		circuit := dpbnet.Circuit{
			Terminal: dpbnet.Terminal{Network: h.agg.Name(), Name: terminalName(ep.IslandSwitchPort)},
			Label:    ep.IslandServiceVlanID,
		}
		flows[circuit] = dpbnet.TrafficFlow{Ingress: ep.IngressBandwidth, Egress: ep.EgressBandwidth}
	}

	svc, err := h.agg.NewServiceWithHandle(handle)
	if err != nil {
		if dpberrors.GetCode(err) == dpberrors.CodeHandleInUse {
			respondWithError(w, http.StatusConflict, "handle_in_use", err.Error())
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	seg := dpbnet.Segment{Flows: flows, BandwidthCap: req.Bandwidth}
	if err := svc.Define(seg); err != nil {
		_ = svc.Release()
		respondWithError(w, http.StatusBadRequest, codeName(err), err.Error())
		return
	}

	if err := svc.Activate(); err != nil {
		_ = svc.Release()
		respondWithError(w, http.StatusBadRequest, codeName(err), err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ActivateTimeout)
	defer cancel()

	set := map[dpbnet.ServiceState]bool{dpbnet.Active: true, dpbnet.Failed: true}
	state, err := svc.AwaitStatus(ctx, set, ActivateTimeout)
	if err != nil || state != dpbnet.Active {
		h.log.Warn("restapi: service did not activate in time", "handle", handle, "state", state.String())
		respondWithError(w, http.StatusInsufficientStorage, "activation_failed", "service did not reach ACTIVE within the timeout")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"handle": handle, "state": state.String()})
}

func (h *Handlers) releaseServiceByHandle(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["uuid"]

	svc, err := h.agg.GetService(handle)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown_handle", err.Error())
		return
	}
	if err := svc.Release(); err != nil {
		respondWithError(w, http.StatusBadRequest, codeName(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"handle": handle, "released": true})
}

func codeName(err error) string {
	switch dpberrors.GetCode(err) {
	case dpberrors.CodeInvalidTerminal:
		return "invalid_terminal"
	case dpberrors.CodeInvalidSegment:
		return "invalid_segment"
	case dpberrors.CodeInsufficientResources:
		return "insufficient_resources"
	default:
		return "internal"
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, kind, detail string) {
	respondWithJSON(w, code, map[string]string{"error": kind, "detail": detail})
}
