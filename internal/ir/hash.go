package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainDefinition = "animgraph/definition/v1"
	DomainPayload    = "animgraph/payload/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DefinitionHash identifies a graph definition by content. Two definitions
// hash equal iff their canonical encodings are equal, so the hash is stable
// across CUE formatting changes and file splits.
func DefinitionHash(def *GraphDef) (string, error) {
	data, err := MarshalCanonical(def.ToBundle())
	if err != nil {
		return "", fmt.Errorf("definition hash: %w", err)
	}
	return hashWithDomain(DomainDefinition, data), nil
}

// PayloadHash identifies a sink update payload. Replay compares recorded and
// re-executed sink streams by this hash.
func PayloadHash(b Bundle) (string, error) {
	data, err := MarshalCanonical(b)
	if err != nil {
		return "", fmt.Errorf("payload hash: %w", err)
	}
	return hashWithDomain(DomainPayload, data), nil
}
