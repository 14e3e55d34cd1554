package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/testutil"
)

func and(cs ...ir.Expression) ir.Expression {
	x, err := ir.NewAnd(cs...)
	if err != nil {
		panic(err)
	}
	return x
}

func or(cs ...ir.Expression) ir.Expression {
	x, err := ir.NewOr(cs...)
	if err != nil {
		panic(err)
	}
	return x
}

func not(e ir.Expression) ir.Expression { return ir.NewNot(e) }

func n(v int64) ir.Value { return ir.Int(v) }

func ints(vs ...int64) []ir.Value {
	out := make([]ir.Value, len(vs))
	for i, v := range vs {
		out[i] = ir.Int(v)
	}
	return out
}

// assertExpr compares optional expressions; nil means "none".
func assertExpr(t *testing.T, label string, want, got ir.Expression) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got, "%s: want none, got %v", label, got)
		return
	}
	if assert.NotNil(t, got, "%s: want %s, got none", label, want) {
		assert.True(t, ir.Equal(want, got), "%s: got %s, want %s", label, got, want)
	}
}

func TestDecompose(t *testing.T) {
	x, y, z := ir.Attr("x"), ir.Attr("y"), ir.Attr("z")

	tests := []struct {
		name      string
		query     ir.Expression
		source    ir.Expression
		refine    ir.Expression
		remainder ir.Expression
	}{
		{"identical", x.Ge(n(1)), x.Ge(n(1)), nil, nil},
		{"both unconstrained", nil, nil, nil, nil},
		{"unconstrained source", x.Ge(n(1)), nil, x.Ge(n(1)), nil},
		{"true source", x.Ge(n(1)), ir.True, x.Ge(n(1)), nil},
		{"unconstrained query", nil, x.Ge(n(1)), nil, x.Lt(n(1))},
		{"true query", ir.True, x.IsIn(ints(1, 2)...), nil, not(x.IsIn(ints(1, 2)...))},
		{"empty source", x.Ge(n(1)), ir.False, nil, x.Ge(n(1))},
		{"empty query", ir.False, x.Ge(n(1)), ir.False, nil},

		{"membership coverage", x.IsIn(ints(1, 2, 3, 4)...), x.IsIn(ints(1, 2)...), nil, x.IsIn(ints(3, 4)...)},
		{"membership superset", x.IsIn(ints(1, 2)...), x.IsIn(ints(1, 2, 3)...), x.IsIn(ints(1, 2)...), nil},
		{"membership overlap", x.IsIn(ints(1, 2, 3)...), x.IsIn(ints(2, 3, 4)...), x.IsIn(ints(2, 3)...), x.IsIn(n(1))},
		{"equality in membership", x.Eq(n(1)), x.IsIn(ints(1, 2)...), x.Eq(n(1)), nil},

		{"negated range source",
			and(x.Ge(n(0)), x.Le(n(5))), not(and(x.Ge(n(1)), x.Le(n(2)))),
			and(x.Ge(n(0)), x.Le(n(5))), and(x.Ge(n(1)), x.Le(n(2)))},
		{"source inside query",
			and(x.Ge(n(0)), x.Le(n(10))), and(x.Ge(n(2)), x.Le(n(5))),
			nil, or(and(x.Ge(n(0)), x.Lt(n(2))), and(x.Gt(n(5)), x.Le(n(10))))},
		{"source covers query", x.Ge(n(5)), x.Ge(n(0)), x.Ge(n(5)), nil},
		{"same range written differently", x.Ge(n(1)), not(x.Lt(n(1))), nil, nil},
		{"membership against range",
			x.IsIn(ints(1, 5, 9)...), x.Le(n(5)),
			x.IsIn(ints(1, 5)...), x.IsIn(n(9))},
		{"range against membership",
			and(x.Ge(n(1)), x.Le(n(2))), x.IsIn(ints(1, 2)...),
			nil, and(x.Gt(n(1)), x.Lt(n(2)))},

		{"conjunction against clause", and(x.Ge(n(1)), y.Eq(n(2))), x.Ge(n(1)), y.Eq(n(2)), nil},
		{"conjunction with extra source clause",
			and(x.Ge(n(1)), y.Eq(n(2))), and(x.Ge(n(1)), z.Eq(n(3))),
			y.Eq(n(2)), and(x.Ge(n(1)), y.Eq(n(2)), not(z.Eq(n(3))))},
		{"disjunction against clause",
			or(x.Eq(n(1)), y.Eq(n(2))), x.Eq(n(1)),
			nil, and(y.Eq(n(2)), not(x.Eq(n(1))))},
		{"disjunction against wider disjunction",
			or(x.Eq(n(1)), y.Eq(n(2))), or(x.Eq(n(1)), y.Eq(n(2)), z.Eq(n(3))),
			or(x.Eq(n(1)), y.Eq(n(2))), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refine, remainder, err := Decompose(tt.query, tt.source)
			require.NoError(t, err)
			assertExpr(t, "refine", tt.refine, refine)
			assertExpr(t, "remainder", tt.remainder, remainder)
		})
	}
}

func TestDecomposeErrors(t *testing.T) {
	x, y := ir.Attr("x"), ir.Attr("y")

	tests := []struct {
		name   string
		query  ir.Expression
		source ir.Expression
		code   DecompositionErrorCode
	}{
		{"conjunction against disjunction", and(x.Eq(n(1)), y.Eq(n(2))), or(x.Eq(n(1)), y.Eq(n(2))), ErrCodeShapeMismatch},
		{"disjunction against conjunction", or(x.Eq(n(1)), y.Eq(n(2))), and(x.Eq(n(1)), y.Eq(n(2))), ErrCodeShapeMismatch},
		{"different attributes", x.Eq(n(1)), y.Eq(n(1)), ErrCodeAttributeMismatch},
		{"incomparable kinds", x.Ge(n(1)), x.Ge(ir.String("a")), ErrCodeShapeMismatch},
		{"negated conjunctions",
			not(and(x.Eq(n(1)), y.Eq(n(1)))), not(and(x.Eq(n(2)), y.Eq(n(2)))),
			ErrCodeShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decompose(tt.query, tt.source)
			require.Error(t, err)
			assert.True(t, IsDecompositionError(err, tt.code), "got %v", err)
		})
	}
}

func TestDecomposeIdentity(t *testing.T) {
	gen := testutil.NewExprGen(3)
	for range 200 {
		e := gen.Tree(3)
		refine, remainder, err := Decompose(e, e)
		require.NoError(t, err)
		assert.Nil(t, refine, "refine for %s", e)
		assert.Nil(t, remainder, "remainder for %s", e)
	}
}

// TestDecomposeIsExact checks, for every pair that decomposes, that the
// refine recovers exactly the query's rows from the source and that the
// remainder is exactly the rows the source lacks.
func TestDecomposeIsExact(t *testing.T) {
	gen := testutil.NewExprGen(17)
	gen.MaxWidth = 2
	grid := testutil.Grid(ir.Attr("x"), ir.Attr("y"))

	decomposed := 0
	for range 400 {
		q, s := gen.Tree(2), gen.Tree(2)
		refine, remainder, err := Decompose(q, s)
		if err != nil {
			require.True(t, IsDecompositionError(err), "unexpected error %v", err)
			continue
		}
		decomposed++
		for _, p := range grid {
			inQ, inS := testutil.Holds(q, p), testutil.Holds(s, p)
			refined := inS && (refine == nil || testutil.Holds(refine, p))
			require.Equal(t, inS && inQ, refined,
				"refine at %v\nquery:  %s\nsource: %s\nrefine: %v", p, q, s, refine)
			missing := remainder != nil && testutil.Holds(remainder, p)
			require.Equal(t, inQ && !inS, missing,
				"remainder at %v\nquery:  %s\nsource: %s\nremainder: %v", p, q, s, remainder)
		}
	}
	assert.Greater(t, decomposed, 50)
}

func TestInvert(t *testing.T) {
	x, y := ir.Attr("x"), ir.Attr("y")
	tests := []struct {
		name string
		in   ir.Expression
		want ir.Expression
	}{
		{"nil", nil, ir.False},
		{"lower bound", x.Ge(n(1)), x.Lt(n(1))},
		{"range", and(x.Ge(n(1)), x.Le(n(5))), or(x.Lt(n(1)), x.Gt(n(5)))},
		{"membership", x.IsIn(ints(1, 2)...), not(x.IsIn(ints(1, 2)...))},
		{"multivariate", and(x.Ge(n(1)), y.Eq(n(2))), or(x.Lt(n(1)), not(y.Eq(n(2))))},
		{"negation", not(and(x.Ge(n(1)), y.Eq(n(2)))), and(x.Ge(n(1)), y.Eq(n(2)))},
		{"literal", ir.True, ir.False},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Invert(tt.in)
			assert.True(t, ir.Equal(tt.want, got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestDecomposeQuery(t *testing.T) {
	a, b, c := ir.Attr("a"), ir.Attr("b"), ir.Attr("c")

	t.Run("exact match", func(t *testing.T) {
		q := New("t", []ir.Attribute{a, b}, a.Ge(n(1)))
		refine, remainder, err := DecomposeQuery(q, q)
		require.NoError(t, err)
		assert.Nil(t, refine)
		assert.Nil(t, remainder)
	})

	t.Run("projection only", func(t *testing.T) {
		q := New("t", []ir.Attribute{a}, nil)
		s := New("t", []ir.Attribute{a, b}, nil)
		refine, remainder, err := DecomposeQuery(q, s)
		require.NoError(t, err)
		require.NotNil(t, refine)
		assert.Equal(t, []ir.Attribute{a}, refine.Select)
		assert.Nil(t, refine.Where)
		assert.Nil(t, remainder)
	})

	t.Run("qualified columns match the table", func(t *testing.T) {
		q := New("t", []ir.Attribute{ir.Col("t", "a")}, nil)
		s := New("t", []ir.Attribute{a}, nil)
		refine, remainder, err := DecomposeQuery(q, s)
		require.NoError(t, err)
		assert.Nil(t, refine)
		assert.Nil(t, remainder)
	})

	t.Run("filter and remainder", func(t *testing.T) {
		q := New("t", []ir.Attribute{a, b}, a.IsIn(ints(1, 2, 3)...))
		s := New("t", nil, a.IsIn(ints(1, 2)...))
		refine, remainder, err := DecomposeQuery(q, s)
		require.NoError(t, err)
		require.NotNil(t, refine)
		assert.Nil(t, refine.Where)
		require.NotNil(t, remainder)
		assert.Equal(t, "t", remainder.Table)
		assert.Equal(t, q.Select, remainder.Select)
		assert.True(t, ir.Equal(a.IsIn(n(3)), remainder.Where))
	})

	errorCases := []struct {
		name string
		q, s Query
		code DecompositionErrorCode
	}{
		{"table", New("t", nil, nil), New("u", nil, nil), ErrCodeTableMismatch},
		{"missing column", New("t", []ir.Attribute{a, c}, nil), New("t", []ir.Attribute{a, b}, nil), ErrCodeColumnProjection},
		{"all columns from projection", New("t", nil, nil), New("t", []ir.Attribute{a}, nil), ErrCodeColumnProjection},
		{"refine needs unselected column",
			New("t", []ir.Attribute{a}, and(a.Ge(n(1)), b.Eq(n(2)))),
			New("t", []ir.Attribute{a}, a.Ge(n(1))),
			ErrCodeColumnProjection},
		{"filter shapes", New("t", nil, a.Eq(n(1))), New("t", nil, b.Eq(n(1))), ErrCodeAttributeMismatch},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecomposeQuery(tt.q, tt.s)
			require.Error(t, err)
			assert.True(t, IsDecompositionError(err, tt.code), "got %v", err)
		})
	}
}
