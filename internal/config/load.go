// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/dpbroker/dpb/internal/dpberrors"
)

// LoadFile decodes a topology file from disk (network.config.server of
// spec.md §6's environment variables names this path).
func LoadFile(path string) (*Topology, error) {
	var top Topology
	if err := hclsimple.DecodeFile(path, evalContext(), &top); err != nil {
		return nil, dpberrors.Wrapf(err, dpberrors.CodeInvalidSegment, "config: failed to decode %q", path)
	}
	if top.SchemaVersion == 0 {
		top.SchemaVersion = CurrentSchemaVersion
	}
	return &top, nil
}

// LoadBytes decodes a topology document already in memory, filename used
// only for diagnostics.
func LoadBytes(filename string, src []byte) (*Topology, error) {
	var top Topology
	if err := hclsimple.Decode(filename, src, evalContext(), &top); err != nil {
		return nil, dpberrors.Wrapf(err, dpberrors.CodeInvalidSegment, "config: failed to decode %q", filename)
	}
	if top.SchemaVersion == 0 {
		top.SchemaVersion = CurrentSchemaVersion
	}
	return &top, nil
}
