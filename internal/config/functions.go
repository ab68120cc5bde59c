// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// rateFunc builds an HCL function that scales its single numeric argument
// by factor, for the bandwidth unit helpers (kbps, mbps, gbps) topology
// files use instead of writing raw bits-per-second literals.
func rateFunc(factor float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "value", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			v, _ := args[0].AsBigFloat().Float64()
			return cty.NumberFloatVal(v * factor), nil
		},
	})
}

// evalContext supplies the unit-conversion functions topology files call
// (mbps(100), gbps(1), kbps(10)) so bandwidth figures can be written at a
// human scale rather than as raw float literals.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"kbps": rateFunc(1_000),
			"mbps": rateFunc(1_000_000),
			"gbps": rateFunc(1_000_000_000),
		},
	}
}
