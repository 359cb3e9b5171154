package graph

import (
	"fmt"
	"math"

	"github.com/roach88/animgraph/internal/ir"
)

type unaryFn func(float64) float64

type foldFn func(acc, x float64) float64

type compareFn func(a, b float64) bool

var unaryOps = map[string]unaryFn{
	"sqrt":  math.Sqrt,
	"log":   math.Log,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"acos":  math.Acos,
	"asin":  math.Asin,
	"atan":  math.Atan,
	"exp":   math.Exp,
	"round": func(x float64) float64 { return math.Floor(x + 0.5) },
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
}

var foldOps = map[string]foldFn{
	"add":      func(a, b float64) float64 { return a + b },
	"sub":      func(a, b float64) float64 { return a - b },
	"multiply": func(a, b float64) float64 { return a * b },
	"divide":   func(a, b float64) float64 { return a / b },
	"pow":      math.Pow,
	// modulo keeps the sign of the divisor
	"modulo": func(a, b float64) float64 { return math.Mod(math.Mod(a, b)+b, b) },
	"min":    math.Min,
	"max":    math.Max,
}

var compareOps = map[string]compareFn{
	"lessThan":    func(a, b float64) bool { return a < b },
	"greaterThan": func(a, b float64) bool { return a > b },
	"lessOrEq":    func(a, b float64) bool { return a <= b },
	"greaterOrEq": func(a, b float64) bool { return a >= b },
}

func boolNumber(b bool) ir.Value {
	if b {
		return ir.Number(1)
	}
	return ir.Number(0)
}

// evalOp evaluates an operator node. and/or short-circuit; every other
// operator reads all inputs in order first.
func (g *Graph) evalOp(n *node, s ir.OpSpec, depth int) (ir.Value, error) {
	if arity, known := ir.Ops[s.Op]; !known || !arity.AcceptsInputs(len(s.Inputs)) {
		return nil, &Error{
			Code:    ErrCodeInvalidConfig,
			Message: fmt.Sprintf("operator %q cannot take %d inputs", s.Op, len(s.Inputs)),
			NodeID:  n.id,
		}
	}

	switch s.Op {
	case "and", "or":
		want := s.Op == "or"
		for _, ref := range s.Inputs {
			v, err := g.input(n, ref, depth)
			if err != nil {
				return nil, err
			}
			if ir.Truthy(v) == want {
				return boolNumber(want), nil
			}
		}
		return boolNumber(!want), nil
	}

	vals := make([]ir.Value, len(s.Inputs))
	for i, ref := range s.Inputs {
		v, err := g.input(n, ref, depth)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}

	switch s.Op {
	case "not":
		return boolNumber(!ir.Truthy(vals[0])), nil
	case "defined":
		switch v := vals[0].(type) {
		case nil, ir.Null:
			return boolNumber(false), nil
		case ir.Number:
			return boolNumber(!math.IsNaN(float64(v))), nil
		}
		return boolNumber(true), nil
	case "eq":
		return boolNumber(ir.Equal(vals[0], vals[1])), nil
	case "neq":
		return boolNumber(!ir.Equal(vals[0], vals[1])), nil
	}

	nums := make([]float64, len(vals))
	for i, v := range vals {
		f, err := toNumber(v)
		if err != nil {
			return nil, &Error{
				Code:    ErrCodeKindMismatch,
				Message: fmt.Sprintf("operator %q input %d: %v", s.Op, i, err),
				NodeID:  n.id,
				RefID:   s.Inputs[i],
			}
		}
		nums[i] = f
	}

	if fn, ok := unaryOps[s.Op]; ok {
		return ir.Number(fn(nums[0])), nil
	}
	if fn, ok := compareOps[s.Op]; ok {
		return boolNumber(fn(nums[0], nums[1])), nil
	}
	if fn, ok := foldOps[s.Op]; ok {
		acc := nums[0]
		for _, x := range nums[1:] {
			acc = fn(acc, x)
		}
		return ir.Number(acc), nil
	}
	return nil, &Error{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("unknown operator %q", s.Op), NodeID: n.id}
}

// toNumber coerces an operator input. Bools count as 1 and 0; Null is NaN.
func toNumber(v ir.Value) (float64, error) {
	switch x := v.(type) {
	case ir.Number:
		return float64(x), nil
	case ir.Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case nil, ir.Null:
		return math.NaN(), nil
	}
	return 0, fmt.Errorf("expected number, got %s", ir.TypeName(v))
}
