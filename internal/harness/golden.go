package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/selectapi/internal/wire"
)

// Snapshot captures the output of a scenario run.
type Snapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Steps        []StepResult `json:"steps"`
}

// object orders the snapshot for stable golden files. Error messages are
// left out; codes are enough to pin behavior.
func (s *Snapshot) object() wire.Object {
	steps := make([]any, len(s.Steps))
	for i, sr := range s.Steps {
		step := wire.Object{
			{Key: "model", Value: sr.Model},
		}
		if sr.Selection != "" {
			step = append(step, wire.Pair{Key: "selection", Value: sr.Selection})
		}
		if sr.Error != "" {
			step = append(step, wire.Pair{Key: "error", Value: sr.Error})
		} else {
			records := make([]any, len(sr.Records))
			for j, rec := range sr.Records {
				records[j] = rec
			}
			step = append(step, wire.Pair{Key: "records", Value: records})
		}
		lookups := make([]any, len(sr.Lookups))
		for j, l := range sr.Lookups {
			obj := wire.Object{
				{Key: "method", Value: l.Method},
				{Key: "model", Value: l.Model},
			}
			if l.Field != "" {
				obj = append(obj, wire.Pair{Key: "field", Value: l.Field})
			}
			lookups[j] = append(obj, wire.Pair{Key: "count", Value: l.Count})
		}
		steps[i] = append(step, wire.Pair{Key: "lookups", Value: lookups})
	}
	return wire.Object{
		{Key: "scenario_name", Value: s.ScenarioName},
		{Key: "steps", Value: steps},
	}
}

// Marshal renders the snapshot as indented JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return wire.MarshalIndent(s.object(), "", "  ")
}

// RunWithGolden executes a scenario and compares its output against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if output doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{ScenarioName: scenarioName, Steps: result.Steps}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
