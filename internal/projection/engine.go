package projection

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/selectapi/internal/apierr"
	"github.com/roach88/selectapi/internal/metrics"
	"github.com/roach88/selectapi/internal/query"
	"github.com/roach88/selectapi/internal/record"
	"github.com/roach88/selectapi/internal/schema"
)

// DefaultConcurrency is the default number of fields resolved in parallel
// per batch.
const DefaultConcurrency = 4

// Engine projects server records into client records.
//
// Thread-safety model:
//   - Project, Find and Commit are safe from any goroutine
//   - a ServerRecord belongs to one Project call and is never re-projected
//   - the bridge and schemas are read-only once projection starts
type Engine struct {
	bridge      *Bridge
	backend     Backend
	logger      *slog.Logger
	metrics     metrics.Recorder
	ids         RequestIDGenerator
	concurrency int
	maxDepth    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithConcurrency sets how many fields of one batch resolve in parallel.
// Values below 1 mean sequential resolution.
//
// Default: 4 (DefaultConcurrency)
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithMaxDepth bounds nested projection depth.
//
// Default: query.DefaultMaxDepth
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithMetrics sets the metrics recorder. Default: metrics.NoOp.
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

// WithRequestIDs sets the generator for requests without an id.
// Default: UUIDv7Generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine resolving through bridge against backend.
func New(bridge *Bridge, backend Backend, opts ...Option) *Engine {
	e := &Engine{
		bridge:      bridge,
		backend:     backend,
		logger:      slog.Default(),
		metrics:     metrics.NoOp{},
		ids:         UUIDv7Generator{},
		concurrency: DefaultConcurrency,
		maxDepth:    query.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Bridge returns the engine's bridge.
func (e *Engine) Bridge() *Bridge {
	return e.bridge
}

// Project projects records, all of model, with sel.
//
// The result has one client record per input record, in input order. Each
// top-level field is resolved with exactly one resolver call for the whole
// batch. On error no records are returned, and the input records cannot be
// projected again.
func (e *Engine) Project(ctx context.Context, req *Request, model *schema.Schema, records []*record.ServerRecord, sel []query.Field) ([]*record.ClientRecord, error) {
	start := time.Now()
	req = e.request(req)

	sm, err := e.bridge.Lookup(model)
	if err == nil {
		for _, rec := range records {
			if rec.Model != model {
				err = apierr.Internal("record of %s in a batch of %s", rec.Model.Name, model.Name)
				break
			}
		}
	}

	var out []*record.ClientRecord
	if err == nil {
		out, err = e.project(ctx, req, sm, records, sel, 0, false)
	}

	e.metrics.RecordProjection(model.Name, len(out), time.Since(start), err)
	if err != nil {
		e.logger.Debug("projection failed",
			"request", req.ID,
			"model", model.Name,
			"records", len(records),
			"error", err)
		return nil, err
	}
	return out, nil
}

func (e *Engine) request(req *Request) *Request {
	r := Request{}
	if req != nil {
		r = *req
	}
	if r.ID == "" && e.ids != nil {
		r.ID = e.ids.Generate()
	}
	return &r
}

func (e *Engine) project(ctx context.Context, req *Request, sm *ServerModel, records []*record.ServerRecord, sel []query.Field, depth int, partial bool) ([]*record.ClientRecord, error) {
	model := sm.Client
	if depth > e.maxDepth {
		return nil, apierr.Validation("selection nested deeper than %d levels", e.maxDepth)
	}
	for _, rec := range records {
		if err := rec.Begin(len(sel)); err != nil {
			return nil, err
		}
	}
	if len(records) == 0 {
		return []*record.ClientRecord{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, q := range sel {
		b := &Batch{
			Request: req,
			Model:   model,
			Records: records,
			Field:   q,
			engine:  e,
			slot:    i,
			depth:   depth,
			partial: partial,
		}
		r := e.bridge.resolver(sm, q)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e.logger.Debug("resolve field",
				"request", req.ID,
				"model", model.Name,
				"field", q.Key,
				"strategy", r.Strategy(),
				"batch", len(records))
			start := time.Now()
			err := r.Resolve(gctx, b)
			e.metrics.RecordResolve(model.Name, q.Key, r.Strategy(), len(records), time.Since(start), err)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys := query.Keys(sel)
	out := make([]*record.ClientRecord, len(records))
	for i, rec := range records {
		data := rec.Staged(keys)
		if sm.Gate != nil {
			var err error
			data, err = sm.Gate(ctx, req, data)
			if err != nil {
				return nil, err
			}
		}
		out[i] = record.NewClientRecord(model, sel, data)
	}
	return out, nil
}
