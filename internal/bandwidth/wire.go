// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bandwidth

import (
	"encoding/json"
	"strconv"

	"github.com/dpbroker/dpb/internal/dpberrors"
)

// Wire kinds for the tagged serialised form of a bandwidth function that
// Encode produces and Decode reads, in place of embedding a script
// interpreter (spec.md §9's design notes). The management-socket request
// format does not carry this form.
const (
	KindFlat      = "flat"
	KindPair      = "pair"
	KindMatrix    = "matrix"
	KindReduced   = "reduced"
	KindTabulated = "tabulated"
)

type envelope struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

type flatBody struct {
	Degree int      `json:"degree"`
	Min    float64  `json:"min"`
	Max    *float64 `json:"max,omitempty"`
}

type pairBody struct {
	Ingress []float64 `json:"ingress"`
	Egress  []float64 `json:"egress"`
}

type matrixBody struct {
	M [][]float64 `json:"matrix"`
}

type reducedBody struct {
	Base   envelope `json:"base"`
	Groups [][]int  `json:"groups"`
}

type tabulatedBody struct {
	Degree int                 `json:"degree"`
	Table  map[string]flatBody `json:"table"`
}

// Encode serialises fn into its tagged wire form.
func Encode(fn Function) ([]byte, error) {
	env, err := toEnvelope(fn)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func toEnvelope(fn Function) (envelope, error) {
	switch f := fn.(type) {
	case Flat:
		body, err := json.Marshal(rangeToBody(f.degree, f.value))
		if err != nil {
			return envelope{}, err
		}
		return envelope{Kind: KindFlat, Body: body}, nil

	case PerEndpoint:
		body, err := json.Marshal(pairBody{Ingress: f.Ingress, Egress: f.Egress})
		if err != nil {
			return envelope{}, err
		}
		return envelope{Kind: KindPair, Body: body}, nil

	case Matrix:
		body, err := json.Marshal(matrixBody{M: f.M})
		if err != nil {
			return envelope{}, err
		}
		return envelope{Kind: KindMatrix, Body: body}, nil

	case Reduced:
		baseEnv, err := toEnvelope(f.base)
		if err != nil {
			return envelope{}, err
		}
		body, err := json.Marshal(reducedBody{Base: baseEnv, Groups: f.groups})
		if err != nil {
			return envelope{}, err
		}
		return envelope{Kind: KindReduced, Body: body}, nil

	case Tabulated:
		table := make(map[string]flatBody, len(f.table))
		for subset, r := range f.table {
			table[subsetKey(subset)] = rangeToBody(f.degree, r)
		}
		body, err := json.Marshal(tabulatedBody{Degree: f.degree, Table: table})
		if err != nil {
			return envelope{}, err
		}
		return envelope{Kind: KindTabulated, Body: body}, nil

	default:
		return envelope{}, dpberrors.Errorf(dpberrors.CodeInternal, "bandwidth: unsupported function type %T", fn)
	}
}

// Decode reconstructs a Function from its tagged wire form.
func Decode(data []byte) (Function, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, dpberrors.Wrap(err, dpberrors.CodeInternal, "bandwidth: decode envelope")
	}
	return fromEnvelope(env)
}

func fromEnvelope(env envelope) (Function, error) {
	switch env.Kind {
	case KindFlat:
		var b flatBody
		if err := json.Unmarshal(env.Body, &b); err != nil {
			return nil, dpberrors.Wrap(err, dpberrors.CodeInternal, "bandwidth: decode flat")
		}
		return NewFlat(b.Degree, bodyToRange(b)), nil

	case KindPair:
		var b pairBody
		if err := json.Unmarshal(env.Body, &b); err != nil {
			return nil, dpberrors.Wrap(err, dpberrors.CodeInternal, "bandwidth: decode pair")
		}
		return NewPerEndpoint(b.Ingress, b.Egress), nil

	case KindMatrix:
		var b matrixBody
		if err := json.Unmarshal(env.Body, &b); err != nil {
			return nil, dpberrors.Wrap(err, dpberrors.CodeInternal, "bandwidth: decode matrix")
		}
		return NewMatrix(b.M), nil

	case KindReduced:
		var b reducedBody
		if err := json.Unmarshal(env.Body, &b); err != nil {
			return nil, dpberrors.Wrap(err, dpberrors.CodeInternal, "bandwidth: decode reduced")
		}
		base, err := fromEnvelope(b.Base)
		if err != nil {
			return nil, err
		}
		return Reduce(base, b.Groups)

	case KindTabulated:
		var b tabulatedBody
		if err := json.Unmarshal(env.Body, &b); err != nil {
			return nil, dpberrors.Wrap(err, dpberrors.CodeInternal, "bandwidth: decode tabulated")
		}
		table := make(map[uint64]Range, len(b.Table))
		for key, fb := range b.Table {
			subset, err := keyToSubset(key)
			if err != nil {
				return nil, err
			}
			table[subset] = bodyToRange(fb)
		}
		return Tabulated{degree: b.Degree, table: table}, nil

	default:
		return nil, dpberrors.Errorf(dpberrors.CodeInternal, "bandwidth: unknown wire kind %q", env.Kind)
	}
}

func rangeToBody(degree int, r Range) flatBody {
	return flatBody{Degree: degree, Min: r.Min, Max: r.Max}
}

func bodyToRange(b flatBody) Range {
	return Range{Min: b.Min, Max: b.Max}
}

func subsetKey(subset uint64) string {
	return strconv.FormatUint(subset, 10)
}

func keyToSubset(key string) (uint64, error) {
	v, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return 0, dpberrors.Wrapf(err, dpberrors.CodeInternal, "bandwidth: malformed table key %q", key)
	}
	return v, nil
}
