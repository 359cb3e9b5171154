package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"unicode/utf16"
)

// Value is the sealed sum type for everything a node can evaluate to.
// Only types in this package implement it.
type Value interface {
	value() // sealed marker
}

// Null is the absent value. Cond without an else branch evaluates to Null.
type Null struct{}

func (Null) value() {}

// MarshalJSON serializes Null as JSON null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Number is a 64-bit float. Every numeric node works in float64.
type Number float64

func (Number) value() {}

// String is a string value.
type String string

func (String) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Array is an ordered list of values.
type Array []Value

func (Array) value() {}

// Bundle is a keyed mapping pushed through the host sink interface.
type Bundle map[string]Value

func (Bundle) value() {}

// Pair is a key-value pair for building bundles in a fixed order.
type Pair struct {
	Key   string
	Value Value
}

// P creates a Pair.
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewBundle builds a Bundle from pairs. Later pairs overwrite earlier ones.
func NewBundle(pairs ...Pair) Bundle {
	b := make(Bundle, len(pairs))
	for _, p := range pairs {
		b[p.Key] = p.Value
	}
	return b
}

// SortedKeys returns bundle keys in RFC 8785 order (UTF-16 code units).
func (b Bundle) SortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeysRFC8785(keys[i], keys[j]) < 0
	})
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as RFC 8785 requires.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// MarshalJSON emits the bundle in canonical form.
func (b Bundle) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(b)
}

// UnmarshalJSON decodes a JSON object into a Bundle.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	bundle, ok := v.(Bundle)
	if !ok {
		return fmt.Errorf("expected JSON object, got %s", TypeName(v))
	}
	*b = bundle
	return nil
}

// TypeName returns a short lowercase name for the dynamic type of v.
func TypeName(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case Number:
		return "number"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Array:
		return "array"
	case Bundle:
		return "bundle"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Truthy reports whether v counts as true for Cond and logic operators:
// non-zero non-NaN number, non-empty string, true bool, non-empty array or bundle.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case Number:
		f := float64(x)
		return f != 0 && !math.IsNaN(f)
	case String:
		return x != ""
	case Bool:
		return bool(x)
	case Array:
		return len(x) > 0
	case Bundle:
		return len(x) > 0
	default:
		return false
	}
}

// Equal reports deep equality. NaN equals NaN so equality stays reflexive.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Number:
		y, ok := b.(Number)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Array:
		y, ok := b.(Array)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Bundle:
		y, ok := b.(Bundle)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts decoded Go data (from encoding/json, yaml.v3 or CUE) into
// a Value. Integers of any width become Number.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case int:
		return Number(x), nil
	case int32:
		return Number(x), nil
	case int64:
		return Number(x), nil
	case uint64:
		return Number(x), nil
	case float32:
		return Number(x), nil
	case float64:
		return Number(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", x, err)
		}
		return Number(f), nil
	case []any:
		arr := make(Array, len(x))
		for i, elem := range x {
			val, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil
	case map[string]any:
		b := make(Bundle, len(x))
		for k, elem := range x {
			val, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			b[k] = val
		}
		return b, nil
	case map[any]any:
		b := make(Bundle, len(x))
		for k, elem := range x {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v (%T)", k, k)
			}
			val, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			b[key] = val
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// ToAny converts a Value back into plain Go data for encoding/json or
// text rendering.
func ToAny(v Value) any {
	switch x := v.(type) {
	case Number:
		return float64(x)
	case String:
		return string(x)
	case Bool:
		return bool(x)
	case Array:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = ToAny(elem)
		}
		return out
	case Bundle:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// UnmarshalValue decodes JSON into a Value. Numbers decode as float64.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode value: trailing data")
	}
	return FromAny(raw)
}
