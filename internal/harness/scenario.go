package harness

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Scenario is a conformance scenario: globals, a sequence of statements
// with expectations, and assertions over the final globals.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is an optional CUE configuration file. Relative paths are
	// resolved against the scenario file's directory.
	Config string `yaml:"config,omitempty"`

	// Mode overrides the configured typing mode ("legacy" or "permissive").
	Mode string `yaml:"mode,omitempty"`

	// Now is the RFC 3339 start of the session clock. Default:
	// testutil.Epoch.
	Now string `yaml:"now,omitempty"`

	// Globals maps names to values, registered in document order.
	Globals yaml.Node `yaml:"globals,omitempty"`

	// Steps are executed in order against the same catalog.
	Steps []Step `yaml:"steps"`

	// Assertions validate the globals after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one statement and its expected outcome.
type Step struct {
	// Name labels the step in failures and golden output.
	Name string `yaml:"name,omitempty"`

	// Plan is the statement document (query, insert or delete).
	Plan yaml.Node `yaml:"plan"`

	// Expect is optional; without it the step only has to execute.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step's expected outcome. Value, Error and Count are
// mutually exclusive.
type Expect struct {
	// Value is the expected query result. A zero Kind means no value is
	// expected; an explicit null expects NULL.
	Value yaml.Node `yaml:"value,omitempty"`

	// Error is the expected error code: an evaluation error code such as
	// TYPE_MISMATCH, or a problem code such as P100 for statements that
	// fail to compile.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of inserted or deleted elements.
	Count *int `yaml:"count,omitempty"`

	// Problems lists every expected problem code, warnings included.
	Problems []string `yaml:"problems,omitempty"`

	// Explain lists fragments the EXPLAIN output must contain.
	Explain []string `yaml:"explain,omitempty"`
}

// Assertion validates the globals after the last step.
type Assertion struct {
	// Type is the assertion type: final_state or global_count.
	Type string `yaml:"type"`

	// Global names the global to check.
	Global string `yaml:"global"`

	// Expect is the expected value (used by final_state).
	Expect yaml.Node `yaml:"expect,omitempty"`

	// Count is the expected number of elements (used by global_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState  = "final_state"
	AssertGlobalCount = "global_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and a relative config path is resolved against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario file")
	}
	return LoadScenarioWithBasePath(data, filepath.Dir(path))
}

// LoadScenarioWithBasePath parses scenario YAML, resolving the config path
// relative to basePath.
func LoadScenarioWithBasePath(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "parse YAML")
	}

	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) && basePath != "" {
		scenario.Config = filepath.Join(basePath, scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339Nano, s.Now); err != nil {
			return errors.Wrap(err, "now")
		}
	}
	if s.Globals.Kind != 0 && s.Globals.Kind != yaml.MappingNode {
		return errors.Newf("line %d: globals must be a mapping", s.Globals.Line)
	}
	if s.Config != "" {
		if _, err := os.Stat(s.Config); err != nil {
			return errors.Newf("config file not found: %s", s.Config)
		}
	}

	for i, step := range s.Steps {
		if step.Plan.Kind == 0 {
			return errors.Newf("steps[%d]: plan is required", i)
		}
		if err := validateExpect(step.Expect); err != nil {
			return errors.Wrapf(err, "steps[%d].expect", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(e *Expect) error {
	if e == nil {
		return nil
	}
	set := 0
	if e.Value.Kind != 0 {
		set++
	}
	if e.Error != "" {
		set++
	}
	if e.Count != nil {
		set++
	}
	if set > 1 {
		return errors.New("value, error and count are mutually exclusive")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return errors.Newf("assertions[%d]: type is required", index)
	}
	if a.Global == "" {
		return errors.Newf("assertions[%d]: global is required", index)
	}
	switch a.Type {
	case AssertFinalState:
		if a.Expect.Kind == 0 {
			return errors.Newf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertGlobalCount:
		if a.Count < 0 {
			return errors.Newf("assertions[%d]: count must be non-negative for global_count", index)
		}
	default:
		return errors.Newf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
