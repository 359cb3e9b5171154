package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string) Session {
	t.Helper()
	sess := Session{
		ID:                id,
		DefinitionHash:    "test-hash",
		DefinitionVersion: ir.DefinitionVersion,
		EngineVersion:     ir.EngineVersion,
		Source:            "testdata/basic",
		Definition:        ir.Bundle{"version": ir.String(ir.DefinitionVersion)},
	}
	require.NoError(t, s.WriteSession(context.Background(), sess))
	return sess
}
