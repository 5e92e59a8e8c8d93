package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a query scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists paths to CUE model files to compile and load.
	// Relative paths are resolved against the scenario file's directory.
	Specs []string `yaml:"specs"`

	// Data seeds the backend, keyed by server model name.
	Data map[string][]map[string]any `yaml:"data,omitempty"`

	// Associations provides static association values, keyed by
	// "Model.field" and then by owner id.
	Associations map[string]map[string][]any `yaml:"associations,omitempty"`

	// RequestID is the fixed request id. Defaults to "test-request".
	RequestID string `yaml:"request_id,omitempty"`

	// Steps are the queries to run, in order.
	Steps []QueryStep `yaml:"steps"`

	// Assertions validate the step results after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// QueryStep is one Find call.
type QueryStep struct {
	// Model is the client model to query.
	Model string `yaml:"model"`

	// Fields is the selection string. Empty selects the defaults.
	Fields string `yaml:"fields,omitempty"`

	// IDs fetches records by id. Takes precedence over Filter.
	IDs []any `yaml:"ids,omitempty"`

	// Filter restricts a listing by filter fields.
	Filter map[string]any `yaml:"filter,omitempty"`

	Limit  int `yaml:"limit,omitempty"`
	Offset int `yaml:"offset,omitempty"`

	Generic       bool `yaml:"generic,omitempty"`
	IgnoreInvalid bool `yaml:"ignore_invalid,omitempty"`
	OmitID        bool `yaml:"omit_id,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must merely
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// Error is the expected error code (e.g. "VALIDATION_ERROR").
	// When set, the step must fail with this code.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of records.
	Count *int `yaml:"count,omitempty"`

	// Records are matched pairwise against the output with subset
	// semantics. Only the given records are checked.
	Records []map[string]any `yaml:"records,omitempty"`
}

// Assertion validates step results.
type Assertion struct {
	// Type specifies the assertion type:
	// - "lookup_count": Check lookups issued against a model
	// - "field_order": Check a record's key order
	// - "record_matches": Check a record's values
	// - "same_output": Check several steps produced the same output
	Type string `yaml:"type"`

	// Step is the step index (all types except same_output).
	Step int `yaml:"step,omitempty"`

	// Steps are the step indexes compared by same_output.
	Steps []int `yaml:"steps,omitempty"`

	// Model is the backend model (used by lookup_count).
	Model string `yaml:"model,omitempty"`

	// Count is the expected number of lookups (used by lookup_count).
	Count int `yaml:"count,omitempty"`

	// Index is the record index (used by field_order and record_matches).
	Index int `yaml:"index,omitempty"`

	// Keys is the expected key order (used by field_order).
	Keys []string `yaml:"keys,omitempty"`

	// Expect contains expected values (used by record_matches).
	// Subset match - only specified keys are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertLookupCount   = "lookup_count"
	AssertFieldOrder    = "field_order"
	AssertRecordMatches = "record_matches"
	AssertSameOutput    = "same_output"
)

// LoadScenario reads and parses a scenario YAML file, resolving spec paths
// relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve spec paths BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the YAML files directly inside dir, sorted by name.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for key := range s.Associations {
		if model, fieldName, ok := strings.Cut(key, "."); !ok || model == "" || fieldName == "" {
			return fmt.Errorf("associations: key %q must be Model.field", key)
		}
	}

	for i, step := range s.Steps {
		if step.Model == "" {
			return fmt.Errorf("steps[%d]: model is required", i)
		}
		if step.Limit < 0 || step.Offset < 0 {
			return fmt.Errorf("steps[%d]: limit and offset must be non-negative", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && (step.Expect.Count != nil || len(step.Expect.Records) > 0) {
			return fmt.Errorf("steps[%d].expect: error cannot be combined with count or records", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	checkStep := func(step int) error {
		if step < 0 || step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, step)
		}
		return nil
	}

	switch a.Type {
	case AssertLookupCount:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for lookup_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for lookup_count", index)
		}
		return checkStep(a.Step)
	case AssertFieldOrder:
		if len(a.Keys) == 0 {
			return fmt.Errorf("assertions[%d]: keys list is required for field_order", index)
		}
		return checkStep(a.Step)
	case AssertRecordMatches:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record_matches", index)
		}
		return checkStep(a.Step)
	case AssertSameOutput:
		if len(a.Steps) < 2 {
			return fmt.Errorf("assertions[%d]: at least two steps are required for same_output", index)
		}
		for _, step := range a.Steps {
			if err := checkStep(step); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
