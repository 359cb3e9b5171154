package ir

// OpArity describes how many inputs an operator accepts.
type OpArity int

const (
	// ArityUnary operators take exactly one input.
	ArityUnary OpArity = iota
	// ArityBinary operators take exactly two inputs.
	ArityBinary
	// ArityVariadic operators take one or more inputs and fold left.
	ArityVariadic
)

// Ops maps every supported operator name to its arity.
var Ops = map[string]OpArity{
	// arithmetic
	"add":      ArityVariadic,
	"sub":      ArityVariadic,
	"multiply": ArityVariadic,
	"divide":   ArityVariadic,
	"pow":      ArityVariadic,
	"modulo":   ArityVariadic,
	"min":      ArityVariadic,
	"max":      ArityVariadic,

	// unary math
	"sqrt":  ArityUnary,
	"log":   ArityUnary,
	"sin":   ArityUnary,
	"cos":   ArityUnary,
	"tan":   ArityUnary,
	"acos":  ArityUnary,
	"asin":  ArityUnary,
	"atan":  ArityUnary,
	"exp":   ArityUnary,
	"round": ArityUnary,
	"abs":   ArityUnary,
	"floor": ArityUnary,
	"ceil":  ArityUnary,

	// comparison
	"lessThan":    ArityBinary,
	"eq":          ArityBinary,
	"greaterThan": ArityBinary,
	"lessOrEq":    ArityBinary,
	"greaterOrEq": ArityBinary,
	"neq":         ArityBinary,

	// logic
	"and":     ArityVariadic,
	"or":      ArityVariadic,
	"not":     ArityUnary,
	"defined": ArityUnary,
}

// AcceptsInputs reports whether n inputs satisfy the arity.
func (a OpArity) AcceptsInputs(n int) bool {
	switch a {
	case ArityUnary:
		return n == 1
	case ArityBinary:
		return n == 2
	default:
		return n >= 1
	}
}

func (a OpArity) String() string {
	switch a {
	case ArityUnary:
		return "exactly 1 input"
	case ArityBinary:
		return "exactly 2 inputs"
	default:
		return "at least 1 input"
	}
}
