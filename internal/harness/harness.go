package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/compiler"
	"github.com/roach88/selectapi/internal/projection"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/queryir"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
	"github.com/roach88/selectapi/internal/testutil"
)

// DefaultRequestID is the request id used when a scenario names none.
const DefaultRequestID = "test-request"

// Harness is the scenario execution engine.
// It runs queries with a fixed request id against an in-memory backend.
type Harness struct {
	catalog  *compiler.Catalog
	engine   *projection.Engine
	counting *testutil.CountingBackend
	logger   *slog.Logger
}

// backend adds listing to the counting wrapper. Listings are not counted;
// only the engine's batched lookups are.
type backend struct {
	*testutil.CountingBackend
	memory *testutil.MemoryBackend
}

func (b backend) Find(ctx context.Context, q queryir.Query) ([]record.Row, error) {
	return b.memory.Find(ctx, q)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile, validate and build the model files
// 2. Seed an in-memory backend with the scenario data
// 3. Run every step, recording output and lookups
// 4. Check expect clauses and assertions
//
// A returned error means the scenario could not run at all. Failed
// expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		sr := h.runStep(ctx, step)
		result.Steps = append(result.Steps, sr)
		for _, msg := range checkExpect(step.Expect, sr) {
			result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
		}

		h.logger.Info("step completed",
			"step", i,
			"model", step.Model,
			"selection", sr.Selection,
			"records", len(sr.Records),
			"lookups", len(sr.Lookups),
			"error", sr.Error,
		)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	cat, err := compiler.Load(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	bridge, err := cat.Bridge()
	if err != nil {
		return nil, fmt.Errorf("failed to bind models: %w", err)
	}
	for key, values := range scenario.Associations {
		model, fieldName, _ := strings.Cut(key, ".")
		if err := bridge.Associate(model, fieldName, staticAssociation(values)); err != nil {
			return nil, fmt.Errorf("failed to register association %s: %w", key, err)
		}
	}
	if err := bridge.Check(cat.Registry); err != nil {
		return nil, fmt.Errorf("failed to check bindings: %w", err)
	}

	memory := testutil.NewMemoryBackend()
	for model, rows := range scenario.Data {
		if _, err := cat.Registry.Lookup(model); err != nil {
			return nil, fmt.Errorf("data for %s: %w", model, err)
		}
		for _, row := range rows {
			memory.Insert(model, record.Row(row))
		}
	}

	requestID := scenario.RequestID
	if requestID == "" {
		requestID = DefaultRequestID
	}
	counting := testutil.NewCountingBackend(memory)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// One worker keeps lookup order stable for golden comparison.
	eng := projection.New(bridge, backend{CountingBackend: counting, memory: memory},
		projection.WithLogger(logger),
		projection.WithConcurrency(1),
		projection.WithRequestIDs(testutil.NewFixedIDGenerator(requestID)),
	)

	return &Harness{
		catalog:  cat,
		engine:   eng,
		counting: counting,
		logger:   logger,
	}, nil
}

// staticAssociation serves association values from scenario data keyed by
// owner id.
func staticAssociation(values map[string][]any) projection.AssociationFunc {
	return func(_ context.Context, _ *projection.Request, ids []any, _ []query.Field) (map[any][]any, error) {
		out := make(map[any][]any, len(ids))
		for _, id := range ids {
			key, ok := record.Key(id)
			if !ok {
				continue
			}
			if vs, ok := values[key]; ok {
				out[id] = vs
			}
		}
		return out, nil
	}
}

func (h *Harness) runStep(ctx context.Context, step QueryStep) StepResult {
	h.counting.Reset()
	sr := StepResult{Model: step.Model}

	recs, sel, err := h.find(ctx, step)
	sr.Lookups = lookupsFrom(h.counting.Calls())
	if sel != nil {
		sr.Selection = query.Format(sel)
	}
	if err != nil {
		sr.Error = string(apierr.CodeOf(err))
		if sr.Error == "" {
			sr.Error = string(apierr.CodeInternal)
		}
		sr.Message = err.Error()
		return sr
	}
	sr.Records = recs
	return sr
}

func (h *Harness) find(ctx context.Context, step QueryStep) ([]*record.ClientRecord, []query.Field, error) {
	model, err := h.catalog.Registry.Lookup(step.Model)
	if err != nil {
		return nil, nil, err
	}
	sel, err := h.parse(step, model)
	if err != nil {
		return nil, nil, err
	}
	res, err := h.engine.Find(ctx, &projection.Request{}, model, sel, projection.Lookup{
		IDs:    step.IDs,
		Filter: step.Filter,
		Page:   query.Page{Limit: step.Limit, Offset: step.Offset},
	})
	if err != nil {
		return nil, sel, err
	}
	return res.Records, sel, nil
}

func (h *Harness) parse(step QueryStep, model *schema.Schema) ([]query.Field, error) {
	return query.Parse(step.Fields, model, h.catalog.Registry, query.Options{
		Generic:       step.Generic,
		IgnoreInvalid: step.IgnoreInvalid,
		OmitID:        step.OmitID,
	})
}
