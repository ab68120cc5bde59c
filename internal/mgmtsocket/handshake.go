// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package mgmtsocket implements the local management socket of spec.md
// §6: a newline-terminated handshake granting access to a network,
// followed by a bidirectional stream of JSON request/response objects.
package mgmtsocket

import (
	"bufio"
	"errors"
	"strings"

	"github.com/dpbroker/dpb/internal/dpberrors"
)

// Access is the level of access a handshake line grants over a network.
type Access int

const (
	// AccessNone is the zero value: no access granted yet.
	AccessNone Access = iota
	// AccessControl permits activate/deactivate/release but not define.
	AccessControl
	// AccessManage permits every operation, including define.
	AccessManage
)

// ErrDropped is returned by readHandshake when the client sends "drop"
// before naming a network, ending the session without error.
var ErrDropped = errors.New("mgmtsocket: handshake dropped by client")

// Handshake is the result of one client's handshake lines (spec.md §6):
// the access level and network it was granted, plus any auth token or
// match pattern it set for services it creates or looks up.
type Handshake struct {
	Access    Access
	Network   string
	AuthToken string
	AuthMatch string
}

// readHandshake consumes newline-terminated ASCII lines from r until a
// line that isn't a recognised directive arrives; that line names the
// network the session addresses and ends the handshake. A "drop" line
// ends the handshake early with ErrDropped.
func readHandshake(r *bufio.Reader) (Handshake, error) {
	var hs Handshake
	grantedNetwork := ""

	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return Handshake{}, dpberrors.Wrapf(err, dpberrors.CodeInternal, "mgmtsocket: handshake read failed")
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		switch {
		case line == "drop":
			return Handshake{}, ErrDropped
		case strings.HasPrefix(line, "manage "):
			grantedNetwork = strings.TrimPrefix(line, "manage ")
			hs.Access = AccessManage
		case strings.HasPrefix(line, "control "):
			grantedNetwork = strings.TrimPrefix(line, "control ")
			if hs.Access != AccessManage {
				hs.Access = AccessControl
			}
		case strings.HasPrefix(line, "auth :"):
			hs.AuthToken = strings.TrimPrefix(line, "auth :")
		case strings.HasPrefix(line, "auth-match :"):
			hs.AuthMatch = strings.TrimPrefix(line, "auth-match :")
		default:
			hs.Network = line
			if hs.Network != grantedNetwork {
				return Handshake{}, dpberrors.Errorf(dpberrors.CodeInvalidTerminal, "mgmtsocket: session addresses %q, which was never granted access", hs.Network)
			}
			return hs, nil
		}
	}
}
