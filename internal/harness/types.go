package harness

// StepResult records what one step did.
type StepResult struct {
	// Name is the step name, or "step N" (1-based) when unnamed.
	Name string `json:"name"`

	// Explain is the EXPLAIN output, empty if compilation failed.
	Explain string `json:"explain,omitempty"`

	// Fingerprint identifies the compiled plan.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Problems are the problem codes found while planning.
	Problems []string `json:"problems,omitempty"`

	// Outcome is the formatted result: a value, "inserted N", "deleted N"
	// or "error CODE".
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expectation and assertion
	// held.
	Pass bool `json:"pass"`

	// Steps holds one entry per executed step.
	Steps []StepResult `json:"steps"`

	// Errors contains the failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
