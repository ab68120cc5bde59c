// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package restapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpbroker/dpb/internal/aggregatorsvc"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/dpbnet/memnet"
)

func testRouter(t *testing.T) (*mux.Router, *aggregatorsvc.Aggregator) {
	t.Helper()
	left := memnet.New("left")
	left.AddTerminal("exit")
	left.AddTerminal("port0")
	left.AddLink("exit", "port0", 1, 1000)

	right := memnet.New("right")
	right.AddTerminal("exit")
	right.AddTerminal("port1")
	right.AddLink("exit", "port1", 1, 1000)

	agg := aggregatorsvc.New("core", nil)
	agg.AddMember(left)
	agg.AddMember(right)
	_, err := agg.ExposeTerminal("port0", "left", "port0")
	require.NoError(t, err)
	_, err = agg.ExposeTerminal("port1", "right", "port1")
	require.NoError(t, err)

	trunk := dpbnet.NewTrunk("backbone",
		dpbnet.Terminal{Network: "left", Name: "exit"},
		dpbnet.Terminal{Network: "right", Name: "exit"},
		1, 1000)
	require.NoError(t, trunk.DefineLabelRange(1, 4, 101))
	require.NoError(t, agg.AddTrunk(trunk))

	router := mux.NewRouter()
	NewHandlers(agg).RegisterRoutes(router)
	return router, agg
}

func putBody(bandwidth float64) []byte {
	body, _ := json.Marshal(putServiceRequest{
		Endpoints: []endpointRequest{
			{IslandSwitchPort: 0, IslandServiceVlanID: 1, IngressBandwidth: 10, EgressBandwidth: 10},
			{IslandSwitchPort: 1, IslandServiceVlanID: 1, IngressBandwidth: 10, EgressBandwidth: 10},
		},
		Bandwidth: bandwidth,
	})
	return body
}

func TestPutServiceByHandle_CreatesAndActivatesService(t *testing.T) {
	router, _ := testRouter(t)
	handle := uuid.NewString()

	req := httptest.NewRequest("PUT", "/service/by-handle/"+handle, bytes.NewReader(putBody(10)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, 200, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ACTIVE", resp["state"])
}

func TestPutServiceByHandle_RejectsDuplicateHandle(t *testing.T) {
	router, _ := testRouter(t)
	handle := uuid.NewString()

	req := httptest.NewRequest("PUT", "/service/by-handle/"+handle, bytes.NewReader(putBody(10)))
	router.ServeHTTP(httptest.NewRecorder(), req)

	req2 := httptest.NewRequest("PUT", "/service/by-handle/"+handle, bytes.NewReader(putBody(10)))
	rr2 := httptest.NewRecorder()
	router.ServeHTTP(rr2, req2)

	assert.Equal(t, 409, rr2.Code)
}

func TestPutServiceByHandle_RejectsMalformedBody(t *testing.T) {
	router, _ := testRouter(t)
	req := httptest.NewRequest("PUT", "/service/by-handle/"+uuid.NewString(), bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, 400, rr.Code)
}

func TestReleaseServiceByHandle_ReleasesExistingService(t *testing.T) {
	router, _ := testRouter(t)
	handle := uuid.NewString()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("PUT", "/service/by-handle/"+handle, bytes.NewReader(putBody(10))))

	req := httptest.NewRequest("POST", "/service/by-handle/"+handle+"/release", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, 200, rr.Code)
}

func TestReleaseServiceByHandle_UnknownHandleReturns404(t *testing.T) {
	router, _ := testRouter(t)
	req := httptest.NewRequest("DELETE", "/service/by-handle/"+uuid.NewString(), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, 404, rr.Code)
}
