package harness

import (
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/testutil"
)

// Lookup is one backend call made while a step ran.
type Lookup struct {
	Method string `json:"method"`
	Model  string `json:"model"`
	Field  string `json:"field,omitempty"`
	Count  int    `json:"count"`
}

func lookupsFrom(calls []testutil.Call) []Lookup {
	out := make([]Lookup, len(calls))
	for i, c := range calls {
		out[i] = Lookup{Method: c.Method, Model: c.Model, Field: c.Field, Count: len(c.Values)}
	}
	return out
}

// StepResult is the outcome of one query step.
type StepResult struct {
	Model string `json:"model"`

	// Selection is the normalized selection the step parsed to.
	Selection string `json:"selection,omitempty"`

	// Records holds the projected output. Nil when the step failed.
	Records []*record.ClientRecord `json:"records,omitempty"`

	// Error is the error code of a failed step.
	Error string `json:"error,omitempty"`

	// Message is the full error text of a failed step.
	Message string `json:"message,omitempty"`

	// Lookups lists the backend calls in call order.
	Lookups []Lookup `json:"lookups"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion holds.
	Pass bool `json:"pass"`

	// Steps holds one result per scenario step, in order.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
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
