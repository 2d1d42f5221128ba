package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplain(t *testing.T) {
	dir := t.TempDir()
	globals := writeFile(t, dir, "globals.yaml", ordersGlobals)
	planPath := writeFile(t, dir, "top.yaml", topOrdersPlan)

	out, err := execute(t, "explain", "--globals", globals, planPath)
	require.NoError(t, err)
	assert.Contains(t, out, "sort[topk] specs=[o@0.qty desc nulls last] fetch=2")
	assert.Contains(t, out, "scan[default] expr=global:orders as=o@0")
	assert.Contains(t, out, "fingerprint: ")
}

func TestExplainIsStable(t *testing.T) {
	dir := t.TempDir()
	globals := writeFile(t, dir, "globals.yaml", ordersGlobals)
	planPath := writeFile(t, dir, "top.yaml", topOrdersPlan)

	first, err := execute(t, "explain", "--globals", globals, planPath)
	require.NoError(t, err)
	second, err := execute(t, "explain", "--globals", globals, planPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExplainJSONWithWarnings(t *testing.T) {
	dir := t.TempDir()
	planPath := writeFile(t, dir, "plus.yaml", `query: {call: {name: plus, args: [1, x]}}`)

	out, err := execute(t, "explain", "--format", "json", "--mode", "permissive", planPath)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ExplainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, resp.Data.Explain, "plus(1, 'x')")
	assert.NotEmpty(t, resp.Data.Fingerprint)
	assert.Equal(t, []string{"P103"}, resp.Data.Problems.Codes())
}

func TestExplainDatabaseScan(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "pql.db")
	values := writeFile(t, dir, "orders.yaml", "[{name: a, qty: 5}]")
	planPath := writeFile(t, dir, "all.yaml", allOrdersPlan)

	_, err := execute(t, "load", "--db", db, "orders", values)
	require.NoError(t, err)

	out, err := execute(t, "explain", "--db", db, planPath)
	require.NoError(t, err)
	assert.Contains(t, out, "scan[sqlite] expr=global:orders")
}

func TestExplainConfigRoute(t *testing.T) {
	dir := t.TempDir()
	globals := writeFile(t, dir, "globals.yaml", ordersGlobals)
	planPath := writeFile(t, dir, "top.yaml", topOrdersPlan)
	cfg := writeFile(t, dir, "pql.cue", `builtin_strategies: false`)

	out, err := execute(t, "explain", "--config", cfg, "--globals", globals, planPath)
	require.NoError(t, err)
	assert.Contains(t, out, "sort[default]")
	assert.NotContains(t, out, "topk")
}
