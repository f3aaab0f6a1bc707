package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

const failingScenario = `name: failing
description: "Expects a link no rule makes"
rules:
  connect:
    "^a:out$": "^b:in$"
ports:
  - name: b:in
    flags: [input]
  - name: c:in
    flags: [input]
steps:
  - register: { name: "a:out", flags: [output] }
assertions:
  - type: connected
    from: a:out
    to: c:in
`

func runSimulateCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewSimulateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSimulate_MissingArgs(t *testing.T) {
	_, err := runSimulateCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestSimulate_NonExistentPath(t *testing.T) {
	_, err := runSimulateCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenario path not found")
}

func TestSimulate_EmptyDir(t *testing.T) {
	out, err := runSimulateCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestSimulate_EmptyDirJSON(t *testing.T) {
	out, err := runSimulateCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestSimulate_PassingScenarios(t *testing.T) {
	out, err := runSimulateCommand(t, "text", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ deadbeef_to_nonmixer")
	assert.Contains(t, out, "✓ disconnect_and_unregister")
	assert.Contains(t, out, "✓ filtered_overlap")
	assert.Contains(t, out, "3 passed, 0 failed, 3 total")
}

func TestSimulate_Filter(t *testing.T) {
	out, err := runSimulateCommand(t, "text", scenariosDir, "--filter", "dead*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ deadbeef_to_nonmixer")
	assert.NotContains(t, out, "filtered_overlap")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestSimulate_BadFilter(t *testing.T) {
	_, err := runSimulateCommand(t, "text", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_Trace(t *testing.T) {
	out, err := runSimulateCommand(t, "text", filepath.Join(scenariosDir, "deadbeef_to_nonmixer.yaml"), "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "[0] startup")
	assert.Contains(t, out, "batch-1 #1 connect deadbeef:deadbeef_1 -> Non-Mixer/music:in-1 (ok)")
}

func TestSimulate_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yaml", failingScenario)

	out, err := runSimulateCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "Assertion failed: connected")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestSimulate_FailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yaml", failingScenario)
	// Non-YAML files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	out, err := runSimulateCommand(t, "json", dir, "--trace")
	require.Error(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   SimulateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Trace)
	assert.Equal(t, [][2]string{{"a:out", "b:in"}}, resp.Data.Scenarios[0].Connections)
}

func TestSimulate_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, err := runSimulateCommand(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "Load error")
}
