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

const passingScenario = `
name: top_orders
description: "Top orders by quantity"
globals:
  orders: [{name: a, qty: 5}, {name: b, qty: 1}, {name: d, qty: 7}]
steps:
  - name: top two
    plan:
      query:
        select:
          from:
            limit:
              count: 2
              input:
                sort:
                  specs: [{expr: {path: {root: {id: o}, steps: [qty]}}, desc: true}]
                  input: {scan: {expr: {id: orders}, as: o}}
          value: {path: {root: {id: o}, steps: [name]}}
    expect:
      value: [d, a]
`

const failingScenario = `
name: wrong_count
description: "Expects the wrong delete count"
globals:
  orders: [{qty: 5}, {qty: 1}]
steps:
  - plan:
      delete:
        target: {id: orders}
        as: o
        where: {call: {name: lt, args: [{path: {root: {id: o}, steps: [qty]}}, 4]}}
    expect:
      count: 2
`

// scenarioDirs creates testdata-style scenarios and golden directories.
func scenarioDirs(t *testing.T, scenarios map[string]string) (scenariosDir, goldenDir string) {
	t.Helper()
	root := t.TempDir()
	scenariosDir = filepath.Join(root, "scenarios")
	goldenDir = filepath.Join(root, "golden")
	require.NoError(t, os.MkdirAll(scenariosDir, 0o755))
	for name, content := range scenarios {
		writeFile(t, scenariosDir, name, content)
	}
	return scenariosDir, goldenDir
}

func TestTestCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	dir, _ := scenarioDirs(t, nil)

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	dir, _ := scenarioDirs(t, nil)

	out, err := execute(t, "test", "--format", "json", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandPassing(t *testing.T) {
	dir, _ := scenarioDirs(t, map[string]string{"top_orders.yaml": passingScenario})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ top_orders")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandFailing(t *testing.T) {
	dir, _ := scenarioDirs(t, map[string]string{
		"top_orders.yaml":  passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	out, err := execute(t, "test", "--format", "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	for _, s := range resp.Data.Scenarios {
		if s.Name == "wrong_count" {
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "expected count 2, got deleted 1 from orders")
		}
	}
}

func TestTestCommandFilter(t *testing.T) {
	dir, _ := scenarioDirs(t, map[string]string{
		"top_orders.yaml":  passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	out, err := execute(t, "test", "--filter", "top_*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	_, err = execute(t, "test", "--filter", "[", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandGolden(t *testing.T) {
	dir, goldenDir := scenarioDirs(t, map[string]string{"top_orders.yaml": passingScenario})
	goldenPath := filepath.Join(goldenDir, "top_orders.golden")

	out, err := execute(t, "test", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ top_orders (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), "-- top two --\n")
	assert.Contains(t, string(golden), "=> ['d', 'a']\n")

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("-- stale --\n"), 0o644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "golden file mismatch")
}

func TestTestCommandGoldenFlag(t *testing.T) {
	dir, _ := scenarioDirs(t, map[string]string{"top_orders.yaml": passingScenario})
	custom := filepath.Join(t.TempDir(), "snapshots")

	_, err := execute(t, "test", "--update", "--golden", custom, dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(custom, "top_orders.golden"))
}

func TestTestCommandLoadError(t *testing.T) {
	dir, _ := scenarioDirs(t, map[string]string{"broken.yaml": "name: broken\nsteps: []\n"})

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "load error")
}
