// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mgmtsocket

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"

	"github.com/dpbroker/dpb/internal/aggregatorsvc"
	"github.com/dpbroker/dpb/internal/dpberrors"
	"github.com/dpbroker/dpb/internal/dpbnet"
	"github.com/dpbroker/dpb/internal/logging"
)

// Server accepts management-socket connections and dispatches JSON
// requests against a fixed set of named networks (normally one
// aggregator per deployment, but the handshake addresses by name so a
// single daemon may expose several).
type Server struct {
	networks map[string]*aggregatorsvc.Aggregator
	log      *logging.Logger
}

// NewServer builds a Server over the given name-to-aggregator mapping.
func NewServer(networks map[string]*aggregatorsvc.Aggregator, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New(logging.DefaultConfig())
	}
	return &Server{networks: networks, log: log}
}

// ListenAndServe listens on the given network/address (e.g. "unix",
// "/run/dpbd/mgmt.sock", or "tcp", the value of mgmt.bindaddr) and
// serves connections until the listener is closed or an unrecoverable
// accept error occurs.
func (s *Server) ListenAndServe(network, address string) error {
	l, err := net.Listen(network, address)
	if err != nil {
		return dpberrors.Wrapf(err, dpberrors.CodeInternal, "mgmtsocket: listen on %s %s", network, address)
	}
	defer l.Close()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return dpberrors.Wrapf(err, dpberrors.CodeInternal, "mgmtsocket: accept")
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	hs, err := readHandshake(br)
	if errors.Is(err, ErrDropped) {
		return
	}
	if err != nil {
		s.log.Warn("mgmtsocket: handshake failed", "error", err)
		return
	}

	agg, ok := s.networks[hs.Network]
	if !ok {
		json.NewEncoder(conn).Encode(response{Error: "unknown_network"})
		return
	}

	dec := json.NewDecoder(br)
	enc := json.NewEncoder(conn)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn("mgmtsocket: malformed request", "network", hs.Network, "error", err)
			}
			return
		}
		enc.Encode(s.dispatch(agg, hs, req))
	}
}

func (s *Server) dispatch(agg *aggregatorsvc.Aggregator, hs Handshake, req request) response {
	switch req.Type {
	case "define":
		return s.handleDefine(agg, hs, req)
	case "activate":
		return s.handleTransition(agg, hs, req, func(svc dpbnet.Service) error { return svc.Activate() })
	case "deactivate":
		return s.handleTransition(agg, hs, req, func(svc dpbnet.Service) error { return svc.Deactivate() })
	case "release":
		return s.handleTransition(agg, hs, req, func(svc dpbnet.Service) error { return svc.Release() })
	case "status":
		svc, err := agg.GetService(req.Handle)
		if err != nil {
			return errorResponse(req.Handle, err)
		}
		return response{Type: "status", Handle: req.Handle, State: svc.Status().String()}
	default:
		return response{Handle: req.Handle, Error: "unknown_type"}
	}
}

func (s *Server) handleDefine(agg *aggregatorsvc.Aggregator, hs Handshake, req request) response {
	if hs.Access != AccessManage {
		return response{Handle: req.Handle, Error: "forbidden"}
	}

	svc, err := agg.GetService(req.Handle)
	if err != nil {
		svc, err = agg.NewServiceWithHandle(req.Handle)
		if err != nil {
			return errorResponse(req.Handle, err)
		}
	}
	if err := svc.Define(segmentFromRequest(agg.Name(), req)); err != nil {
		return errorResponse(req.Handle, err)
	}
	return response{Type: "defined", Handle: req.Handle, State: svc.Status().String()}
}

func (s *Server) handleTransition(agg *aggregatorsvc.Aggregator, hs Handshake, req request, op func(dpbnet.Service) error) response {
	if hs.Access == AccessNone {
		return response{Handle: req.Handle, Error: "forbidden"}
	}
	svc, err := agg.GetService(req.Handle)
	if err != nil {
		return errorResponse(req.Handle, err)
	}
	if err := op(svc); err != nil {
		return errorResponse(req.Handle, err)
	}
	return response{Type: req.Type + "d", Handle: req.Handle, State: svc.Status().String()}
}

func errorResponse(handle string, err error) response {
	kind := "internal"
	switch dpberrors.GetCode(err) {
	case dpberrors.CodeInvalidTerminal:
		kind = "invalid_terminal"
	case dpberrors.CodeInvalidSegment:
		kind = "invalid_segment"
	case dpberrors.CodeHandleInUse:
		kind = "handle_in_use"
	case dpberrors.CodeReleasedService:
		kind = "released_service"
	case dpberrors.CodeDormantService:
		kind = "dormant_service"
	case dpberrors.CodeInUseService:
		kind = "in_use_service"
	}
	return response{Handle: handle, Error: kind}
}
