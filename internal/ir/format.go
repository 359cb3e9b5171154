package ir

import (
	"math"
	"strconv"
)

// FormatNumber renders f in fixed notation with the shortest precision that
// round-trips: never scientific, never locale dependent. Negative zero
// renders as "0". Non-finite values render as NaN, Infinity and -Infinity.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Stringify renders a value the way Concat joins its inputs. Numbers use
// FormatNumber, Null renders empty, arrays and bundles render as canonical JSON.
func Stringify(v Value) (string, error) {
	switch x := v.(type) {
	case nil, Null:
		return "", nil
	case Number:
		return FormatNumber(float64(x)), nil
	case String:
		return string(x), nil
	case Bool:
		if x {
			return "true", nil
		}
		return "false", nil
	default:
		data, err := MarshalCanonical(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
