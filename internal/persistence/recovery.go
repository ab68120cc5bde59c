// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package persistence

import (
	"context"
	"time"

	"github.com/dpbroker/dpb/internal/aggregatorsvc"
	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
)

// RecoveryTimeout bounds how long Recover waits for each reconstructed
// service to settle out of ESTABLISHING before moving to the next one.
const RecoveryTimeout = 10 * time.Second

// Recover replays every service persisted for agg's slice (spec.md
// §4.4's Recovery paragraph, §8 scenario 5): each service is redefined
// from its stored endpoints, intent=true services are additionally
// activated, and once every service has settled RetainTunnels is called
// on each of the aggregator's trunks with that trunk's own currently
// allocated labels. That call releases nothing: a label held by anything
// other than a recovered service is kept as well.
//
// A single service's recovery failure does not abort the rest: spec.md
// §7's propagation policy scopes a fatal infrastructure error to the
// affected service only.
func Recover(store *Store, agg *aggregatorsvc.Aggregator) error {
	records, err := store.LoadSlice(agg.Name())
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := recoverOne(store, agg, rec); err != nil {
			agg.Log().Error("recovery: service did not settle", "service", rec.ID, "error", err)
		}
	}

	keep := make(map[uint32]bool)
	for _, t := range agg.Trunks() {
		for label := range t.AllocatedLabels() {
			keep[label] = true
		}
		t.RetainTunnels(keep)
		for k := range keep {
			delete(keep, k)
		}
	}
	return nil
}

func recoverOne(store *Store, agg *aggregatorsvc.Aggregator, rec ServiceRecord) error {
	if len(rec.Endpoints) == 0 {
		return dpberrors.Errorf(dpberrors.CodeInvalidSegment, "persistence: service %s has no persisted endpoints", rec.ID)
	}

	flows := make(map[dpbnet.Circuit]dpbnet.TrafficFlow, len(rec.Endpoints))
	for _, e := range rec.Endpoints {
		name, err := store.TerminalName(agg.Name(), e.TerminalID)
		if err != nil {
			return err
		}
		circuit := dpbnet.Circuit{Terminal: dpbnet.Terminal{Network: agg.Name(), Name: name}, Label: e.Label}
		flows[circuit] = dpbnet.TrafficFlow{Ingress: e.Metering, Egress: e.Shaping}
	}

	svc, err := agg.NewServiceWithHandle(rec.ID)
	if err != nil {
		return err
	}
	if err := svc.Define(dpbnet.Segment{Flows: flows}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), RecoveryTimeout)
	defer cancel()
	settled := map[dpbnet.ServiceState]bool{dpbnet.Inactive: true, dpbnet.Failed: true}
	state, err := svc.AwaitStatus(ctx, settled, RecoveryTimeout)
	if err != nil {
		return err
	}
	if state == dpbnet.Failed {
		return dpberrors.Errorf(dpberrors.CodeSubordinateFailed, "persistence: service %s failed during recovery: %v", rec.ID, svc.Faults())
	}

	if !rec.Intent {
		return nil
	}
	if err := svc.Activate(); err != nil {
		return err
	}
	active := map[dpbnet.ServiceState]bool{dpbnet.Active: true, dpbnet.Failed: true}
	if _, err := svc.AwaitStatus(ctx, active, RecoveryTimeout); err != nil {
		return err
	}
	return nil
}
