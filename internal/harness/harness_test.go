package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/resolver"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"simplify", "decompose", "resolve", "check"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_TraceRecordsReads(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "resolve"))
	require.NoError(t, err)

	var types []string
	for _, e := range result.Trace {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		EventRead, EventRead, EventStep, // low, high
		EventRead, EventStep, // cache
		EventStep, // unresolvable
	}, types)
	for i, e := range result.Trace {
		assert.Equal(t, i+1, e.Seq)
	}
	assert.Contains(t, result.Trace[5].Error, "resolution:")
}

func TestRun_FailedExpectations(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing
description: "Every expectation is wrong"
steps:
  - op: simplify
    expr: {expr: ge, attribute: x, value: 1}
    expect:
      result: {expr: ge, attribute: x, value: 2}
  - op: simplify
    expr: {expr: ge, attribute: x, value: 1}
    expect:
      error: mixed_types
  - op: sql
    query: {table: t, where: {expr: eq, attribute: x, value: 1}}
    expect:
      sql: "SELECT * FROM t"
      params: [2]
  - op: decompose
    query: {table: t, where: {expr: le, attribute: x, value: 1}}
    source: {table: t, where: {expr: le, attribute: x, value: 5}}
    expect:
      refine: none
  - op: simplify
    expr: {expr: eq, attribute: x, value: 1}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 5, "errors: %v", result.Errors)
	assert.Contains(t, result.Errors[0], "step 1 (simplify)")
	assert.Contains(t, result.Errors[1], "expected error mixed_types, got success")
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unexpected
description: "A step fails without expecting it"
steps:
  - op: simplify
    expr: {expr: or, clauses: [{expr: eq, attribute: x, value: 1}, {expr: eq, attribute: x, value: "a"}]}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_ClauseBudget(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: budget
description: "Truth-table expansion refuses past the clause budget"
max_clauses: 2
steps:
  - op: simplify
    expr:
      expr: not
      clause:
        expr: or
        clauses:
          - {expr: and, clauses: [{expr: ge, attribute: x, value: 1}, {expr: ge, attribute: y, value: 1}]}
          - {expr: lt, attribute: x, value: 0}
    expect:
      error: clause_budget
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_FailedAssertions(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: assertions
description: "Assertions about reads that did not happen"
sources:
  - name: a
    query: {table: t}
    rows: [{x: 1}]
  - name: b
    query: {table: u}
steps:
  - op: resolve
    query: {table: t}
    expect: {rows: 1}
assertions:
  - type: source_calls
    source: a
    count: 2
  - type: source_order
    sources: [b, a]
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "a read 2 times")
	assert.Contains(t, result.Errors[1], "b -> a")
}

func TestRun_BadCatalog(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{
		Name:        "bad",
		Description: "missing catalog",
		Catalog:     "testdata/nope",
		Steps:       []Step{{Op: OpCheck, Query: map[string]any{"table": "t"}}},
	})
	assert.Error(t, err)
}

func TestRun_BadSource(t *testing.T) {
	_, err := Run(context.Background(), &Scenario{
		Name:        "bad",
		Description: "source query is not a query",
		Sources:     []SourceDef{{Name: "s", Query: map[string]any{"select": "x"}}},
		Steps:       []Step{{Op: OpResolve, Query: map[string]any{"table": "t"}}},
	})
	assert.Error(t, err)
}

func TestRunWithGolden(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "golden_simplify"))
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	s := loadScenario(t, "resolve")
	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalTrace(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty compound", fmt.Errorf("wrapped: %w", ir.ErrEmptyCompound), "empty_compound"},
		{"engine", &engine.EngineError{Code: engine.ErrCodeIncomparable}, "incomparable"},
		{"read limit", &resolver.ReadsExceededError{Query: "q", Reads: 3, Limit: 2}, "read_limit"},
		{"other", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
