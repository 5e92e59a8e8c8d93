package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/selectapi/internal/wire"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Lookups  []Lookup // Lookups of the step, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Lookups) > 0 {
		fmt.Fprintf(&buf, "\nLookups:\n")
		for i, l := range e.Lookups {
			if l.Field != "" {
				fmt.Fprintf(&buf, "  [%d] %s %s.%s (%d values)\n", i+1, l.Method, l.Model, l.Field, l.Count)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s %s (%d values)\n", i+1, l.Method, l.Model, l.Count)
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertLookupCount:
			err = assertLookupCount(result, a)
		case AssertFieldOrder:
			err = assertFieldOrder(result, a)
		case AssertRecordMatches:
			err = assertRecordMatches(result, a)
		case AssertSameOutput:
			err = assertSameOutput(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func stepOf(result *Result, i int) (*StepResult, error) {
	if i < 0 || i >= len(result.Steps) {
		return nil, fmt.Errorf("step %d out of range (%d steps)", i, len(result.Steps))
	}
	return &result.Steps[i], nil
}

// assertLookupCount checks the number of lookups a step made against a model.
func assertLookupCount(result *Result, a Assertion) error {
	sr, err := stepOf(result, a.Step)
	if err != nil {
		return err
	}
	count := 0
	for _, l := range sr.Lookups {
		if l.Model == a.Model {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertLookupCount,
			Expected: fmt.Sprintf("%d lookups of %s", a.Count, a.Model),
			Actual:   fmt.Sprintf("%d lookups", count),
			Lookups:  sr.Lookups,
		}
	}
	return nil
}

// assertFieldOrder checks a record's keys appear exactly in the given order.
func assertFieldOrder(result *Result, a Assertion) error {
	sr, err := stepOf(result, a.Step)
	if err != nil {
		return err
	}
	if a.Index < 0 || a.Index >= len(sr.Records) {
		return &AssertionError{
			Type:     AssertFieldOrder,
			Expected: fmt.Sprintf("record %d", a.Index),
			Actual:   fmt.Sprintf("%d records", len(sr.Records)),
		}
	}
	obj, err := sr.Records[a.Index].Object()
	if err != nil {
		return err
	}
	keys := make([]string, len(obj))
	for i, p := range obj {
		keys[i] = p.Key
	}
	if !slices.Equal(keys, a.Keys) {
		return &AssertionError{
			Type:     AssertFieldOrder,
			Expected: strings.Join(a.Keys, ","),
			Actual:   strings.Join(keys, ","),
		}
	}
	return nil
}

// assertRecordMatches checks a record contains the expected values.
func assertRecordMatches(result *Result, a Assertion) error {
	sr, err := stepOf(result, a.Step)
	if err != nil {
		return err
	}
	if a.Index < 0 || a.Index >= len(sr.Records) {
		return &AssertionError{
			Type:     AssertRecordMatches,
			Expected: fmt.Sprintf("record %d", a.Index),
			Actual:   fmt.Sprintf("%d records", len(sr.Records)),
		}
	}
	if msg := matchRecord(sr.Records[a.Index], a.Expect); msg != "" {
		return &AssertionError{
			Type:     AssertRecordMatches,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   msg,
		}
	}
	return nil
}

// assertSameOutput checks several steps produced identical output.
func assertSameOutput(result *Result, a Assertion) error {
	var first string
	for i, idx := range a.Steps {
		sr, err := stepOf(result, idx)
		if err != nil {
			return err
		}
		digest, err := wire.Digest(wire.DomainRecords, sr.Records)
		if err != nil {
			return err
		}
		if i == 0 {
			first = digest
			continue
		}
		if digest != first {
			return &AssertionError{
				Type:     AssertSameOutput,
				Expected: fmt.Sprintf("step %d output equal to step %d", idx, a.Steps[0]),
				Actual:   "outputs differ",
			}
		}
	}
	return nil
}

// checkExpect validates a step against its expect clause.
func checkExpect(expect *ExpectClause, sr StepResult) []string {
	if expect == nil {
		if sr.Error != "" {
			return []string{fmt.Sprintf("unexpected error: %s", sr.Message)}
		}
		return nil
	}
	if expect.Error != "" {
		if sr.Error != expect.Error {
			return []string{fmt.Sprintf("expected error %s, got %q", expect.Error, sr.Error)}
		}
		return nil
	}
	if sr.Error != "" {
		return []string{fmt.Sprintf("unexpected error: %s", sr.Message)}
	}

	var msgs []string
	if expect.Count != nil && len(sr.Records) != *expect.Count {
		msgs = append(msgs, fmt.Sprintf("expected %d records, got %d", *expect.Count, len(sr.Records)))
	}
	for i, want := range expect.Records {
		if i >= len(sr.Records) {
			msgs = append(msgs, fmt.Sprintf("records[%d]: missing", i))
			continue
		}
		if msg := matchRecord(sr.Records[i], want); msg != "" {
			msgs = append(msgs, fmt.Sprintf("records[%d]: %s", i, msg))
		}
	}
	return msgs
}

// matchRecord compares the record's client encoding against want with
// subset semantics. Returns "" on a match.
func matchRecord(rec any, want map[string]any) string {
	got, err := normalize(rec)
	if err != nil {
		return err.Error()
	}
	exp, err := normalize(want)
	if err != nil {
		return err.Error()
	}
	return subset("", exp, got)
}

// normalize round-trips v through its wire encoding, so YAML ints and
// encoded floats compare equal.
func normalize(v any) (any, error) {
	data, err := wire.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

// subset reports the first path where got does not contain want.
// Maps match by subset, lists by length and element-wise subset.
func subset(path string, want, got any) string {
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return fmt.Sprintf("%s: expected object, got %v", pathOrRoot(path), got)
		}
		for k, wv := range w {
			gv, ok := g[k]
			if !ok {
				return fmt.Sprintf("%s: missing key", joinPath(path, k))
			}
			if msg := subset(joinPath(path, k), wv, gv); msg != "" {
				return msg
			}
		}
		return ""
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return fmt.Sprintf("%s: expected %v, got %v", pathOrRoot(path), want, got)
		}
		for i := range w {
			if msg := subset(fmt.Sprintf("%s[%d]", path, i), w[i], g[i]); msg != "" {
				return msg
			}
		}
		return ""
	default:
		if !reflect.DeepEqual(want, got) {
			return fmt.Sprintf("%s: expected %v, got %v", pathOrRoot(path), want, got)
		}
		return ""
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrRoot(path string) string {
	if path == "" {
		return "record"
	}
	return path
}
