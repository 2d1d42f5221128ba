package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/top_orders.yaml")
	require.NoError(t, err)

	assert.Equal(t, "top_orders", s.Name)
	assert.Equal(t, "2024-01-02T00:00:00Z", s.Now)
	assert.Equal(t, yaml.MappingNode, s.Globals.Kind)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, "top two", s.Steps[0].Name)
	require.NotNil(t, s.Steps[1].Expect.Count)
	assert.Equal(t, 2, *s.Steps[1].Expect.Count)
	assert.Equal(t, []string{"sort[topk]", "fetch=2"}, s.Steps[0].Expect.Explain)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertFinalState, s.Assertions[0].Type)
}

func TestLoadScenarioValueExpectations(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/top_orders.yaml")
	require.NoError(t, err)
	assert.Equal(t, yaml.SequenceNode, s.Steps[0].Expect.Value.Kind)
	assert.Zero(t, s.Steps[1].Expect.Value.Kind)

	s = parse(t, "name: n\ndescription: d\nsteps: [{plan: {query: 1}, expect: {value: !bag [1, !missing ~]}}]")
	assert.Equal(t, "!bag", s.Steps[0].Expect.Value.Tag)
}

func TestLoadEveryScenario(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Steps)
		})
	}
}

func TestLoadScenarioResolvesConfig(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/strict.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "config", "strict.cue"), s.Config)
}

func TestLoadScenarioErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name:     "missing name",
			yaml:     "description: d\nsteps: [{plan: {query: 1}}]",
			contains: "name is required",
		},
		{
			name:     "missing description",
			yaml:     "name: n\nsteps: [{plan: {query: 1}}]",
			contains: "description is required",
		},
		{
			name:     "no steps",
			yaml:     "name: n\ndescription: d",
			contains: "steps list is required",
		},
		{
			name:     "unknown field",
			yaml:     "name: n\ndescription: d\nflow: []\nsteps: [{plan: {query: 1}}]",
			contains: "field flow not found",
		},
		{
			name:     "step without plan",
			yaml:     "name: n\ndescription: d\nsteps: [{name: x}]",
			contains: "steps[0]: plan is required",
		},
		{
			name:     "conflicting expectations",
			yaml:     "name: n\ndescription: d\nsteps: [{plan: {query: 1}, expect: {value: 1, error: X}}]",
			contains: "mutually exclusive",
		},
		{
			name:     "bad now",
			yaml:     "name: n\ndescription: d\nnow: yesterday\nsteps: [{plan: {query: 1}}]",
			contains: "now",
		},
		{
			name:     "globals not a mapping",
			yaml:     "name: n\ndescription: d\nglobals: [1]\nsteps: [{plan: {query: 1}}]",
			contains: "globals must be a mapping",
		},
		{
			name:     "missing config",
			yaml:     "name: n\ndescription: d\nconfig: nope.cue\nsteps: [{plan: {query: 1}}]",
			contains: "config file not found",
		},
		{
			name:     "unknown assertion",
			yaml:     "name: n\ndescription: d\nsteps: [{plan: {query: 1}}]\nassertions: [{type: trace_order, global: g}]",
			contains: `unknown assertion type "trace_order"`,
		},
		{
			name:     "final_state without expect",
			yaml:     "name: n\ndescription: d\nsteps: [{plan: {query: 1}}]\nassertions: [{type: final_state, global: g}]",
			contains: "expect is required for final_state",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario file")
}
