// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package persistence

import (
	"path/filepath"
	"testing"

	"github.com/dpbroker/dpb/internal/aggregatorsvc"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/dpbnet/memnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dpb.sqlite")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// recoveryFixture builds an aggregator with two members joined by one
// trunk, its exposed terminals persisted so the recovery driver can
// resolve endpoint terminal IDs back to names.
func recoveryFixture(t *testing.T, store *Store) *aggregatorsvc.Aggregator {
	t.Helper()
	left := memnet.New("left")
	left.AddTerminal("exit")
	left.AddTerminal("a")
	left.AddLink("exit", "a", 1, 1000)

	right := memnet.New("right")
	right.AddTerminal("exit")
	right.AddTerminal("b")
	right.AddLink("exit", "b", 1, 1000)

	agg := aggregatorsvc.New("core", nil)
	agg.AddMember(left)
	agg.AddMember(right)

	_, err := agg.ExposeTerminal("a", "left", "a")
	require.NoError(t, err)
	_, err = agg.ExposeTerminal("b", "right", "b")
	require.NoError(t, err)

	trunk := dpbnet.NewTrunk("backbone",
		dpbnet.Terminal{Network: "left", Name: "exit"},
		dpbnet.Terminal{Network: "right", Name: "exit"},
		1, 1000)
	require.NoError(t, trunk.DefineLabelRange(1, 4, 101))
	require.NoError(t, agg.AddTrunk(trunk))

	require.NoError(t, store.SaveTerminal("core", "t-a", "a", ""))
	require.NoError(t, store.SaveTerminal("core", "t-b", "b", ""))

	return agg
}

func TestStore_SaveAndLoadSlice_RoundTripsServicesAndEndpoints(t *testing.T) {
	store := openTestStore(t)

	eps := []EndpointRecord{
		{TerminalID: "t-a", Label: 1, Metering: 10, Shaping: 10},
		{TerminalID: "t-b", Label: 1, Metering: 10, Shaping: 10},
	}
	require.NoError(t, store.SaveService("core", "svc-1", true, eps))

	records, err := store.LoadSlice("core")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "svc-1", records[0].ID)
	assert.True(t, records[0].Intent)
	assert.Len(t, records[0].Endpoints, 2)
}

func TestStore_DeleteService_RemovesServiceAndEndpoints(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveService("core", "svc-1", false, []EndpointRecord{{TerminalID: "t-a", Label: 1}}))
	require.NoError(t, store.DeleteService("core", "svc-1"))

	records, err := store.LoadSlice("core")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecover_ReconstructsIntentTrueServiceAsActive(t *testing.T) {
	store := openTestStore(t)
	agg := recoveryFixture(t, store)

	eps := []EndpointRecord{
		{TerminalID: "t-a", Label: 1, Metering: 10, Shaping: 10},
		{TerminalID: "t-b", Label: 1, Metering: 10, Shaping: 10},
	}
	require.NoError(t, store.SaveService("core", "svc-active", true, eps))

	require.NoError(t, Recover(store, agg))

	svc, err := agg.GetService("svc-active")
	require.NoError(t, err)
	assert.Equal(t, dpbnet.Active, svc.Status())
}

func TestRecover_ReconstructsIntentFalseServiceAsInactive(t *testing.T) {
	store := openTestStore(t)
	agg := recoveryFixture(t, store)

	eps := []EndpointRecord{
		{TerminalID: "t-a", Label: 1, Metering: 10, Shaping: 10},
		{TerminalID: "t-b", Label: 1, Metering: 10, Shaping: 10},
	}
	require.NoError(t, store.SaveService("core", "svc-inactive", false, eps))

	require.NoError(t, Recover(store, agg))

	svc, err := agg.GetService("svc-inactive")
	require.NoError(t, err)
	assert.Equal(t, dpbnet.Inactive, svc.Status())
}

func TestRecover_RetainsOnlyRecoveredServicesTunnels(t *testing.T) {
	store := openTestStore(t)
	agg := recoveryFixture(t, store)

	eps := []EndpointRecord{
		{TerminalID: "t-a", Label: 1, Metering: 10, Shaping: 10},
		{TerminalID: "t-b", Label: 1, Metering: 10, Shaping: 10},
	}
	require.NoError(t, store.SaveService("core", "svc-1", false, eps))

	require.NoError(t, Recover(store, agg))

	trunks := agg.Trunks()
	require.Len(t, trunks, 1)
	assert.Len(t, trunks[0].AllocatedLabels(), 1)
}
