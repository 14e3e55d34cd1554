package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/splitq/internal/catalog"
	"github.com/roach88/splitq/internal/domain"
	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
	"github.com/roach88/splitq/internal/query"
	"github.com/roach88/splitq/internal/querysql"
	"github.com/roach88/splitq/internal/resolver"
	"github.com/roach88/splitq/internal/store"
	"github.com/roach88/splitq/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	opts     logic.Options
	catalog  *catalog.Catalog
	resolver *resolver.Resolver
	result   *Result
	logger   *slog.Logger
}

// outcome is what a step produced, kept typed for expectation checks.
type outcome struct {
	expr      ir.Expression
	refine    *query.Query
	remainder *query.Query
	data      *engine.Dataset
	sql       string
	params    []any
	codes     []string
}

// Run executes a scenario and returns the result.
//
// Each scenario gets fresh sources and, when enabled, a fresh in-memory
// cache. Steps run in order; a failed expectation does not stop later
// steps. The returned error is reserved for scenarios that cannot run at
// all.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		opts:   logic.Options{MaxTruthTableClauses: scenario.MaxClauses},
		result: NewResult(),
		logger: logger,
	}

	if scenario.Catalog != "" {
		c, err := catalog.Load(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		h.catalog = c
	}

	cfg := resolver.Config{Logger: logger}
	var tables []string
	for _, def := range scenario.Sources {
		src, err := h.fixtureSource(def)
		if err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, src)
		tables = append(tables, src.Tables()...)
	}
	if scenario.Cache {
		st, err := store.Open(store.Config{Path: ":memory:", Logger: logger, IDs: testutil.NewSequentialIDs()})
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		cfg.Caches = []resolver.Cache{recordingCache{
			Cache:  resolver.NewStoreCache("cache", st, tables...),
			result: h.result,
		}}
	}
	h.resolver = resolver.New(cfg)

	for i, step := range scenario.Steps {
		h.runStep(ctx, i, step)
	}
	for _, a := range scenario.Assertions {
		if err := checkAssertion(h.result.Trace, a); err != nil {
			h.result.AddError(err.Error())
		}
	}
	return h.result, nil
}

func (h *Harness) fixtureSource(def SourceDef) (resolver.Source, error) {
	available, err := query.FromDocument(def.Query)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", def.Name, err)
	}
	rows := def.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("source %s rows: %w", def.Name, err)
	}
	src := resolver.NewDecomposingSource(def.Name, available, func(context.Context, query.Query) ([]byte, error) {
		return raw, nil
	})
	return recordingSource{Source: src, result: h.result}, nil
}

func (h *Harness) runStep(ctx context.Context, index int, step Step) {
	event := TraceEvent{Type: EventStep, Step: index + 1, Op: step.Op}
	out, input, err := h.execute(ctx, step)
	event.Input = input
	if err != nil {
		event.Error = fmt.Sprintf("%s: %v", ErrorCode(err), err)
	} else {
		event.Output = out.document()
	}
	h.result.add(event)

	if step.Expect != nil {
		for _, msg := range checkExpect(step.Expect, out, err) {
			h.result.AddError(fmt.Sprintf("step %d (%s): %s", index+1, step.Op, msg))
		}
	} else if err != nil {
		h.result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", index+1, step.Op, err))
	}
}

// execute runs a step and returns its outcome and a document of its input.
func (h *Harness) execute(ctx context.Context, step Step) (outcome, any, error) {
	switch step.Op {
	case OpSimplify, OpExpand, OpDNF:
		e, err := ir.FromDocument(step.Expr)
		if err != nil {
			return outcome{}, nil, err
		}
		var out ir.Expression
		switch step.Op {
		case OpSimplify:
			out, err = domain.Simplify(e, h.opts)
		case OpExpand:
			out, err = domain.ExpandSimplify(e, h.opts)
		default:
			out, err = logic.ToDNF(e, h.opts)
		}
		return outcome{expr: out}, e, err

	case OpDecompose:
		q, err := query.FromDocument(step.Query)
		if err != nil {
			return outcome{}, nil, err
		}
		s, err := query.FromDocument(step.Source)
		if err != nil {
			return outcome{}, nil, err
		}
		input := map[string]any{"query": json.RawMessage(q.Key()), "source": json.RawMessage(s.Key())}
		refine, remainder, err := query.DecomposeQuery(q, s)
		return outcome{refine: refine, remainder: remainder}, input, err
	}

	q, err := query.FromDocument(step.Query)
	if err != nil {
		return outcome{}, nil, err
	}
	input := json.RawMessage(q.Key())

	switch step.Op {
	case OpSQL:
		sql, params, err := querysql.Compile(q)
		return outcome{sql: sql, params: params}, input, err
	case OpCheck:
		codes := []string{}
		for _, ce := range h.catalog.CheckQuery(q) {
			codes = append(codes, ce.Code)
		}
		return outcome{codes: codes}, input, nil
	case OpResolve:
		data, err := h.resolver.Run(ctx, q)
		return outcome{data: data}, input, err
	default:
		return outcome{}, input, fmt.Errorf("unknown op %q", step.Op)
	}
}

// document renders the outcome for the trace.
func (o outcome) document() any {
	switch {
	case o.expr != nil:
		return map[string]any{"expr": o.expr, "text": o.expr.String()}
	case o.data != nil:
		raw, err := o.data.MarshalJSON()
		if err != nil {
			return map[string]any{"rows": o.data.Len()}
		}
		return map[string]any{"rows": o.data.Len(), "data": json.RawMessage(raw)}
	case o.sql != "":
		params := make([]any, len(o.params))
		copy(params, o.params)
		return map[string]any{"sql": o.sql, "params": params}
	case o.codes != nil:
		return map[string]any{"codes": o.codes}
	default:
		return map[string]any{"refine": queryDocument(o.refine), "remainder": queryDocument(o.remainder)}
	}
}

func queryDocument(q *query.Query) any {
	if q == nil {
		return ExpectNone
	}
	return json.RawMessage(q.Key())
}

// ErrorCode names the category of an error produced by a step.
func ErrorCode(err error) string {
	var (
		typeErr *ir.TypeError
		decErr  *ir.DecodeError
		simpErr *domain.SimplifyError
		decoErr *query.DecompositionError
		engErr  *engine.EngineError
	)
	switch {
	case errors.As(err, &typeErr):
		return string(typeErr.Code)
	case errors.As(err, &decErr):
		return "decode"
	case errors.Is(err, ir.ErrEmptyCompound):
		return "empty_compound"
	case logic.IsBudgetError(err):
		return "clause_budget"
	case errors.As(err, &simpErr):
		return string(simpErr.Code)
	case errors.As(err, &decoErr):
		return string(decoErr.Code)
	case resolver.IsResolutionError(err):
		return "resolution"
	case resolver.IsReadsExceededError(err):
		return "read_limit"
	case errors.As(err, &engErr):
		return string(engErr.Code)
	case querysql.IsSQLRepresentationError(err):
		return "sql_representation"
	default:
		return "error"
	}
}

// recordingSource traces every read of a source.
type recordingSource struct {
	resolver.Source
	result *Result
}

func (s recordingSource) Query(ctx context.Context, superset query.Query) ([]byte, error) {
	s.result.add(TraceEvent{Type: EventRead, Source: s.Name(), Query: superset.String()})
	return s.Source.Query(ctx, superset)
}

// recordingCache traces every read of a cache.
type recordingCache struct {
	resolver.Cache
	result *Result
}

func (c recordingCache) Query(ctx context.Context, superset query.Query) ([]byte, error) {
	c.result.add(TraceEvent{Type: EventRead, Source: c.Name(), Query: superset.String()})
	return c.Cache.Query(ctx, superset)
}
