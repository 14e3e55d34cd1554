package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
)

func TestSimplifyDomain(t *testing.T) {
	x, y := ir.Attr("x"), ir.Attr("y")
	n := func(v int64) ir.Value { return ir.Int(v) }

	tests := []struct {
		name string
		in   ir.Expression
		want ir.Expression
	}{
		{"univariate", and(x.Ge(n(1)), x.Ge(n(2))), x.Ge(n(2))},
		{"grouped by attribute",
			and(x.Ge(n(1)), x.Ge(n(2)), y.IsIn(ints(1, 2)...), y.IsIn(n(2))),
			and(x.Ge(n(2)), y.Eq(n(2)))},
		{"nested multivariate",
			or(and(x.Ge(n(0)), x.Ge(n(1)), y.Eq(n(1))), x.Lt(n(0))),
			or(and(x.Ge(n(1)), y.Eq(n(1))), x.Lt(n(0)))},
		{"negated multivariate",
			not(and(x.Ge(n(1)), x.Ge(n(2)), y.Eq(n(1)))),
			not(and(x.Ge(n(2)), y.Eq(n(1))))},
		{"group collapses to false", and(x.Gt(n(2)), x.Lt(n(1)), y.Eq(n(1))), ir.False},
		{"literal", ir.True, ir.True},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SimplifyDomain(tt.in)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestSimplify(t *testing.T) {
	x, y := ir.Attr("x"), ir.Attr("y")
	n := func(v int64) ir.Value { return ir.Int(v) }

	tests := []struct {
		name string
		in   ir.Expression
		want ir.Expression
	}{
		{"disjunction outside range",
			and(or(x.Lt(n(0)), x.Gt(n(10))), x.Ge(n(1)), x.Le(n(5))),
			ir.False},
		{"contradiction spread across or",
			and(or(x.Lt(n(1)), y.Eq(n(1))), x.Gt(n(2)), y.IsIn(n(2))),
			ir.False},
		{"satisfiable branches kept",
			and(or(x.Lt(n(1)), y.Eq(n(1))), x.Gt(n(0))),
			or(and(x.Gt(n(0)), x.Lt(n(1))), and(x.Gt(n(0)), y.Eq(n(1))))},
		{"negated disjunction",
			not(or(and(x.Ge(n(1)), y.Ge(n(1))), x.Lt(n(0)))),
			or(
				and(x.Ge(n(1)), y.Lt(n(1))),
				and(x.Ge(n(0)), x.Lt(n(1)), y.Ge(n(1))),
				and(x.Ge(n(0)), x.Lt(n(1)), y.Lt(n(1))),
			)},
		{"tautology", or(x.Ge(n(1)), x.Lt(n(1))), ir.True},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Simplify(tt.in, logic.Options{})
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestSimplifyBudget(t *testing.T) {
	x, y := ir.Attr("x"), ir.Attr("y")
	e := not(or(and(x.Ge(ir.Int(1)), y.Ge(ir.Int(1))), x.Lt(ir.Int(0))))
	_, err := Simplify(e, logic.Options{MaxTruthTableClauses: 2})
	require.Error(t, err)
	assert.True(t, logic.IsBudgetError(err))
}

func TestExpandSimplify(t *testing.T) {
	x, y := ir.Attr("x"), ir.Attr("y")
	n := func(v int64) ir.Value { return ir.Int(v) }

	tests := []struct {
		name string
		in   ir.Expression
		want ir.Expression
	}{
		{"empty branch dropped", or(and(x.Ge(n(2)), x.Le(n(1))), x.Eq(n(3))), x.Eq(n(3))},
		{"membership mixed with bounds",
			and(or(x.IsIn(ints(1, 2)...), y.Ge(n(0))), x.IsIn(ints(2, 3)...)),
			or(x.Eq(n(2)), and(y.Ge(n(0)), x.IsIn(ints(2, 3)...)))},
		{"every branch empty", or(and(x.Gt(n(1)), x.Lt(n(0))), and(y.Eq(n(1)), y.Eq(n(2)))), ir.False},
		{"true branch", or(x.Eq(n(1)), ir.True), ir.True},
		{"true", ir.True, ir.True},
		{"false", ir.False, ir.False},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandSimplify(tt.in, logic.Options{})
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s, want %s", got, tt.want)
		})
	}
}
