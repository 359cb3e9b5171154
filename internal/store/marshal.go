package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/animgraph/internal/ir"
)

// marshalBundle converts a Bundle to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalBundle(b ir.Bundle) (string, error) {
	if b == nil {
		b = ir.Bundle{}
	}
	data, err := ir.MarshalCanonical(b)
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}
	return string(data), nil
}

// unmarshalBundle parses canonical JSON TEXT to a Bundle.
func unmarshalBundle(data string) (ir.Bundle, error) {
	if data == "" || data == "{}" {
		return ir.Bundle{}, nil
	}
	var b ir.Bundle
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}
	return b, nil
}
