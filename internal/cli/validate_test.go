package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/animgraph/internal/compiler"
)

func TestValidateValidGraph(t *testing.T) {
	out, err := execute(t, "validate", writeGraph(t, headerGraph))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Graph definition valid")
}

func TestValidateValidGraphJSON(t *testing.T) {
	out, err := execute(t, "validate", "--format", "json", writeGraph(t, headerGraph))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateCompileErrors(t *testing.T) {
	dir := writeGraph(t, `package bad

node: {
	ok: {id: 1, kind: "value", value: 0}
	spring: {id: 2, kind: "spring", stiffness: 100}
	broken: {id: 3, kind: "op", op: "multiply"}
}
`)

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrCodeUnknownKind)
	assert.Contains(t, out, compiler.ErrCodeInvalidConfig)
}

func TestValidateReferenceErrorsJSON(t *testing.T) {
	dir := writeGraph(t, `package dangling

node: {
	a: {id: 1, kind: "function", what: 2}
	b: {id: 3, kind: "value", value: 1}
}
view: [{node: 3, view: 9}]
`)

	out, err := execute(t, "validate", "--format", "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	var codes []string
	for _, e := range resp.Data.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, compiler.ErrCodeUndefinedRef)
	assert.Contains(t, codes, compiler.ErrCodeViewNotProps)
	require.NotNil(t, resp.Error)
	assert.Equal(t, resp.Data.Errors[0].Code, resp.Error.Code)
}

func TestValidateCycleIsWarning(t *testing.T) {
	dir := writeGraph(t, `package loop

node: {
	a: {id: 1, kind: "function", what: 2}
	b: {id: 2, kind: "function", what: 1}
}
`)

	out, err := execute(t, "validate", dir)
	require.NoError(t, err, "evaluation cycles do not fail validation")
	assert.Contains(t, out, "warning: ")
	assert.Contains(t, out, "✓ Graph definition valid")

	out, err = execute(t, "validate", "--format", "json", dir)
	require.NoError(t, err)
	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.Warnings)
	assert.Equal(t, "warning", resp.Data.Warnings[0].Level)
}

func TestValidateMissingDirectory(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+compiler.ErrCodeNotFound+"]")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), compiler.ErrCodeNoFiles)
}

func TestToValidationError(t *testing.T) {
	got := toValidationError(&compiler.CompileError{Code: compiler.ErrCodeInvalidConfig, Field: "node.a.what", Message: "required"})
	assert.Equal(t, compiler.ValidationError{Field: "node.a.what", Message: "required", Code: compiler.ErrCodeInvalidConfig}, got)

	got = toValidationError(assert.AnError)
	assert.Equal(t, ErrCodeGeneric, got.Code)
	assert.Equal(t, "definition", got.Field)
}
