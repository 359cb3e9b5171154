package ir

import (
	"fmt"
	"math"
)

// ValidateSpec checks the kind-specific invariants of a spec that its Go
// type cannot express. DecodeSpec applies it to decoded configuration; typed
// specs built in code must pass it before a graph accepts them.
func ValidateSpec(s Spec) error {
	if s == nil {
		return &SpecError{Message: "nil spec"}
	}
	fail := func(field, format string, args ...any) error {
		return &SpecError{Kind: s.Kind(), Field: field, Message: fmt.Sprintf(format, args...)}
	}

	switch x := s.(type) {
	case OpSpec:
		arity, known := Ops[x.Op]
		if !known {
			return fail("op", "unknown operator %q", x.Op)
		}
		if !arity.AcceptsInputs(len(x.Inputs)) {
			return fail("input", "operator %q takes %s, got %d", x.Op, arity, len(x.Inputs))
		}

	case PropsSpec:
		return validateKeyRefs(s.Kind(), "props", x.Props)

	case StyleSpec:
		return validateKeyRefs(s.Kind(), "style", x.Style)

	case EventSpec:
		for i, m := range x.Mapping {
			if len(m.Path) == 0 {
				return fail(fmt.Sprintf("mapping[%d].path", i), "expected non-empty array of keys")
			}
		}

	case TransformSpec:
		for i, t := range x.Transforms {
			if t.Property == "" {
				return fail(fmt.Sprintf("transform[%d].property", i), "must not be empty")
			}
		}

	case BezierSpec:
		points := []struct {
			name string
			v    float64
		}{{"mX1", x.X1}, {"mY1", x.Y1}, {"mX2", x.X2}, {"mY2", x.Y2}}
		for _, p := range points {
			if math.IsNaN(p.v) || math.IsInf(p.v, 0) {
				return fail(p.name, "must be finite")
			}
		}
		if x.X1 < 0 || x.X1 > 1 {
			return fail("mX1", "must be within [0, 1], got %s", FormatNumber(x.X1))
		}
		if x.X2 < 0 || x.X2 > 1 {
			return fail("mX2", "must be within [0, 1], got %s", FormatNumber(x.X2))
		}

	case CallFuncSpec:
		if len(x.Args) != len(x.Params) {
			return fail("args", "got %d args for %d params", len(x.Args), len(x.Params))
		}
	}
	return nil
}

func validateKeyRefs(kind Kind, field string, refs []KeyRef) error {
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if seen[r.Key] {
			return &SpecError{Kind: kind, Field: field + "." + r.Key, Message: "duplicate key"}
		}
		seen[r.Key] = true
	}
	return nil
}
