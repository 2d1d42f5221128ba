package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValid(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pql.cue", `
typing_mode: "permissive"
impls: [{kind: "scan", impl: "sqlite"}, {kind: "sort", impl: "topk"}]
`)

	out, err := execute(t, "check", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid (typing mode permissive)")
	assert.NotContains(t, out, "warning")
}

func TestCheckWarnsOnUnknownImpl(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pql.cue", `impls: [{kind: "filter", impl: "gpu"}]`)

	out, err := execute(t, "check", "--format", "json", cfg)
	require.NoError(t, err)

	var resp struct {
		Data CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Contains(t, resp.Data.Warnings[0], "gpu")
}

func TestCheckInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pql.cue", "typing_mode: \"loose\"\n")

	out, err := execute(t, "check", "--format", "json", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Equal(t, "C003", resp.Error.Details["config_code"])
}

func TestCheckMissingFile(t *testing.T) {
	out, err := execute(t, "check", filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeRead+"]")
}
