package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/ir"
)

func TestLoadParallax(t *testing.T) {
	result, errs := Load("testdata/parallax", LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result.Def)

	assert.Equal(t, 1, result.FileCount)
	assert.Len(t, result.Def.Nodes, 9)
	assert.Len(t, result.Def.Edges, 8)
	assert.Equal(t, []ir.ViewBinding{{Node: 30, View: 7}}, result.Def.Views)
	assert.Equal(t, []ir.EventBinding{{View: 7, EventName: "onScroll", Node: 20}}, result.Def.Events)
	assert.Equal(t, ir.PropsConfig{UI: []string{"opacity"}, Native: []string{"top"}}, result.Def.Props)

	hash, err := ir.DefinitionHash(result.Def)
	require.NoError(t, err)
	assert.Equal(t, hash, result.Hash)
	assert.Empty(t, Validate(result.Def))
	assert.Empty(t, AnalyzeCycles(result.Def))
}

func TestLoadMergesFilesOfOnePackage(t *testing.T) {
	def, err := LoadDir("testdata/split")
	require.NoError(t, err)

	require.Len(t, def.Nodes, 4)
	assert.Equal(t, "box", def.Nodes[3].Label)
	assert.Equal(t, []ir.ViewBinding{{Node: 4, View: 1}}, def.Views)
}

func TestLoadCollectAll(t *testing.T) {
	result, errs := Load("testdata/invalid", LoadModeCollectAll)
	require.Len(t, errs, 2)
	requireCompileError(t, errs[0], ErrCodeUnknownKind)
	ce := requireCompileError(t, errs[1], ErrCodeInvalidConfig)
	assert.Equal(t, "node.broken.input", ce.Field)
	assert.True(t, ce.Pos.IsValid(), "compile errors carry a source position")

	require.NotNil(t, result)
	assert.Empty(t, result.Hash, "no hash for a definition with errors")
}

func TestLoadFailFast(t *testing.T) {
	_, errs := Load("testdata/invalid", LoadModeFailFast)
	require.Len(t, errs, 1)
	requireCompileError(t, errs[0], ErrCodeUnknownKind)
}

func TestLoadDirRejectsInvalidDefinition(t *testing.T) {
	dir := t.TempDir()
	src := `package dangling

node: a: {id: 1, kind: "function", what: 2}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.cue"), []byte(src), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrCodeUndefinedRef, verr.Code)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, errs := Load(filepath.Join(t.TempDir(), "absent"), LoadModeFailFast)
	require.Len(t, errs, 1)
	requireCompileError(t, errs[0], ErrCodeNotFound)
}

func TestLoadNotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.cue")
	require.NoError(t, os.WriteFile(path, []byte("node: {}"), 0o644))

	_, errs := Load(path, LoadModeFailFast)
	require.Len(t, errs, 1)
	requireCompileError(t, errs[0], ErrCodeNotFound)
}

func TestLoadNoCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("nothing here"), 0o644))

	_, errs := Load(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	requireCompileError(t, errs[0], ErrCodeNoFiles)
}

func TestFindCUEFiles(t *testing.T) {
	files, err := FindCUEFiles("testdata/split")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join("testdata", "split", "bindings.cue"),
		filepath.Join("testdata", "split", "nodes.cue"),
	}, files)
}
