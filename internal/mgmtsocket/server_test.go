// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mgmtsocket

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpbroker/dpb/internal/aggregatorsvc"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/dpbnet/memnet"
)

func fixtureAggregator(t *testing.T) *aggregatorsvc.Aggregator {
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
	return agg
}

func TestReadHandshake_ParsesManageThenNetworkLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("manage core\nauth :secret\ncore\n"))
	hs, err := readHandshake(r)
	require.NoError(t, err)
	assert.Equal(t, AccessManage, hs.Access)
	assert.Equal(t, "core", hs.Network)
	assert.Equal(t, "secret", hs.AuthToken)
}

func TestReadHandshake_ParsesControlAndAuthMatch(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("control core\nauth-match :^svc-.*$\ncore\n"))
	hs, err := readHandshake(r)
	require.NoError(t, err)
	assert.Equal(t, AccessControl, hs.Access)
	assert.Equal(t, "^svc-.*$", hs.AuthMatch)
}

func TestReadHandshake_DropEndsSessionEarly(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("manage core\ndrop\n"))
	_, err := readHandshake(r)
	assert.ErrorIs(t, err, ErrDropped)
}

func TestReadHandshake_RejectsNetworkNeverGranted(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("manage core\nother\n"))
	_, err := readHandshake(r)
	require.Error(t, err)
}

// serveOn lets the test drive a single already-created listener instead of
// having ListenAndServe create (and leak) a second one.
func (s *Server) serveOn(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func TestServer_DefineActivateStatusReleaseRoundTrip(t *testing.T) {
	agg := fixtureAggregator(t)
	srv := NewServer(map[string]*aggregatorsvc.Aggregator{"core": agg}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go srv.serveOn(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	conn.Write([]byte("manage core\ncore\n"))

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)

	handle := uuid.NewString()
	require.NoError(t, enc.Encode(request{
		Type:   "define",
		Handle: handle,
		Endpoints: []endpointSpec{
			{Terminal: "port0", Label: 1, Ingress: 10, Egress: 10},
			{Terminal: "port1", Label: 1, Ingress: 10, Egress: 10},
		},
	}))
	var resp response
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "defined", resp.Type)
	assert.Empty(t, resp.Error)

	require.NoError(t, enc.Encode(request{Type: "activate", Handle: handle}))
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "activated", resp.Type)
	assert.Empty(t, resp.Error)

	// Activation completes asynchronously, so poll status until it settles.
	require.Eventually(t, func() bool {
		var st response
		if enc.Encode(request{Type: "status", Handle: handle}) != nil || dec.Decode(&st) != nil {
			return false
		}
		return st.State == "ACTIVE"
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, enc.Encode(request{Type: "status", Handle: handle}))
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "ACTIVE", resp.State)

	require.NoError(t, enc.Encode(request{Type: "release", Handle: handle}))
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "RELEASED", resp.State)
}

func TestServer_ControlAccessCannotDefine(t *testing.T) {
	agg := fixtureAggregator(t)
	srv := NewServer(map[string]*aggregatorsvc.Aggregator{"core": agg}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go srv.serveOn(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.Write([]byte("control core\ncore\n"))

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)
	require.NoError(t, enc.Encode(request{Type: "define", Handle: uuid.NewString()}))

	var resp response
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "forbidden", resp.Error)
}

func TestServer_UnknownNetworkClosesWithError(t *testing.T) {
	agg := fixtureAggregator(t)
	srv := NewServer(map[string]*aggregatorsvc.Aggregator{"core": agg}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go srv.serveOn(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.Write([]byte("manage other\nother\n"))

	dec := json.NewDecoder(conn)
	var resp response
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "unknown_network", resp.Error)
}
