package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const followScenario = `name: follow
description: "A props node follows a value written by the host"
session: cli-follow
steps:
  - create: {id: 1, kind: value, config: {value: 0}}
  - create: {id: 2, kind: props, config: {props: {left: 1}}}
  - connect: {parent: 1, child: 2}
  - view: {id: 2, view: 5}
  - tick: {}
  - set: {id: 1, value: 10}
  - mark: 1
  - tick: {}
assertions:
  - type: sink_sequence
    view: 5
    key: left
    values: [0, 10]
`

const headerScenario = `name: header
description: "Scrolling moves and fades the header"
definition: graph
steps:
  - dispatch: {view: 7, event: onScroll, payload: {y: 50}, handled: true}
  - tick: {}
assertions:
  - type: channel_update
    channel: native
    view: 7
    props: {top: 25}
  - type: no_diagnostics
`

const brokenScenario = `name: broken
description: "Expects an update that never happens"
steps:
  - tick: {}
assertions:
  - type: sink_count
    count: 1
`

// writeScenarios lays out a scenarios directory with the header graph
// next to the scenario files.
func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	graphDir := filepath.Join(dir, "graph")
	require.NoError(t, os.MkdirAll(graphDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(graphDir, "graph.cue"), []byte(headerGraph), 0o644))
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestTestCommandAllPass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"follow.yaml": followScenario,
		"header.yml":  headerScenario,
	})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ follow")
	assert.Contains(t, out, "✓ header")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"follow.yaml": followScenario,
		"broken.yaml": brokenScenario,
	})

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "Assertion failed: sink_count")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"follow.yaml": followScenario,
		"broken.yaml": brokenScenario,
	})

	out, err := execute(t, "test", "--format", "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "JSON output carries no progress lines")
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"follow.yaml": followScenario})
	goldenPath := filepath.Join(dir, "golden", "follow.golden")

	out, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ follow (golden updated)")
	require.FileExists(t, goldenPath)

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"session":"cli-follow"`)

	out, err = execute(t, "test", "--format", "json", dir)
	require.NoError(t, err)
	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"follow","trace":[]}`), 0o644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"follow.yaml": followScenario,
		"broken.yaml": brokenScenario,
	})

	out, err := execute(t, "test", "--filter", "fol*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")

	_, err = execute(t, "test", "--filter", "[", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandLoadError(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"bad.yaml": "name: bad\nsteps: [\n"})

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "scroll.golden"), goldenFilePath(filepath.Join("s", "scroll.yaml")))
	assert.Equal(t, filepath.Join("golden", "a.b.golden"), goldenFilePath("a.b.yml"))
}
