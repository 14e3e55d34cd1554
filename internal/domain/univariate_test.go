package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitq/internal/ir"
)

func TestSignedSetAlgebra(t *testing.T) {
	pos := func(vs ...int64) SignedSet { return SignedSet{Values: ir.NewValueSet(ints(vs...)...)} }
	neg := func(vs ...int64) SignedSet { return SignedSet{Values: ir.NewValueSet(ints(vs...)...), Negated: true} }

	tests := []struct {
		name string
		got  SignedSet
		want SignedSet
	}{
		{"pos and pos", pos(1, 2).Intersect(pos(2, 3)), pos(2)},
		{"pos and neg", pos(1, 2).Intersect(neg(2, 3)), pos(1)},
		{"neg and pos", neg(2, 3).Intersect(pos(1, 2)), pos(1)},
		{"neg and neg", neg(1).Intersect(neg(2)), neg(1, 2)},
		{"pos or pos", pos(1).Union(pos(2)), pos(1, 2)},
		{"neg or neg", neg(1, 2).Union(neg(2, 3)), neg(2)},
		{"pos or neg", pos(1).Union(neg(1, 2)), neg(2)},
		{"neg or pos", neg(1, 2).Union(pos(2)), neg(1)},
		{"complement", pos(1).Complement(), neg(1)},
		{"empty is identity for union", EmptySigned.Union(pos(4)), pos(4)},
		{"full is identity for intersect", FullSigned.Intersect(neg(4)), neg(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want.Negated, tt.got.Negated, "sign of %s", tt.got)
			assert.True(t, tt.want.Values.Equal(tt.got.Values), "got %s, want %s", tt.got, tt.want)
		})
	}

	assert.True(t, EmptySigned.IsEmpty())
	assert.True(t, FullSigned.IsFull())
	assert.True(t, neg(1).Contains(ir.Int(2)))
	assert.False(t, neg(1).Contains(ir.Int(1)))
	assert.True(t, pos(1).Contains(ir.Float(1)))
}

func TestSignedSetExpression(t *testing.T) {
	x := ir.Attr("x")
	assert.Equal(t, ir.False, EmptySigned.Expression(x))
	assert.Equal(t, ir.True, FullSigned.Expression(x))

	one := SignedSet{Values: ir.NewValueSet(ir.Int(1))}
	assert.True(t, ir.Equal(x.Eq(ir.Int(1)), one.Expression(x)))
	assert.True(t, ir.Equal(not(x.Eq(ir.Int(1))), one.Complement().Expression(x)))

	two := SignedSet{Values: ir.NewValueSet(ir.Int(1), ir.Int(2))}
	assert.True(t, ir.Equal(x.IsIn(ints(1, 2)...), two.Expression(x)))
}

func TestSimplifyUnivariate(t *testing.T) {
	x := ir.Attr("x")
	n := func(v int64) ir.Value { return ir.Int(v) }

	tests := []struct {
		name string
		in   ir.Expression
		want ir.Expression
	}{
		{"memberships union", or(x.IsIn(ints(1, 2)...), x.IsIn(ints(2, 3)...)), x.IsIn(ints(1, 2, 3)...)},
		{"disjoint rays", or(x.Le(n(1)), x.Ge(n(3))), or(x.Le(n(1)), x.Ge(n(3)))},
		{"covering rays", or(x.Le(n(3)), x.Ge(n(1))), ir.True},
		{"range minus hole",
			and(x.Ge(n(0)), x.Le(n(5)), not(and(x.Ge(n(1)), x.Le(n(2))))),
			or(and(x.Ge(n(0)), x.Lt(n(1))), and(x.Gt(n(2)), x.Le(n(5))))},
		{"negated bound", not(x.Ge(n(3))), x.Lt(n(3))},
		{"equalities merge", or(x.Eq(n(1)), x.Eq(n(2))), x.IsIn(ints(1, 2)...)},
		{"excluded equality", not(x.Eq(n(3))), not(x.Eq(n(3)))},
		{"equality with bound", and(x.Eq(n(3)), x.Le(n(5))), x.Eq(n(3))},
		{"conflicting equalities", and(x.Eq(n(1)), x.Eq(n(2))), ir.False},
		{"exclusion or member", or(not(x.IsIn(ints(1, 2)...)), x.Eq(n(1))), not(x.Eq(n(2)))},
		{"membership with equality", and(x.IsIn(ints(1, 2)...), not(x.Eq(n(1)))), x.Eq(n(2))},
		{"literal inside", and(ir.True, x.Gt(n(1))), x.Gt(n(1))},
		{"contradiction", and(x.Lt(n(1)), not(x.Lt(n(1)))), ir.False},
		{"tautology", or(x.Lt(n(1)), not(x.Lt(n(1)))), ir.True},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SimplifyUnivariate(tt.in)
			require.NoError(t, err)
			assert.True(t, ir.Equal(tt.want, got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestSimplifyUnivariateErrors(t *testing.T) {
	x, y := ir.Attr("x"), ir.Attr("y")
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   ir.Expression
		code SimplifyErrorCode
	}{
		{"two attributes", and(x.Ge(ir.Int(1)), y.Ge(ir.Int(1))), ErrCodeMultivariate},
		{"no attribute", ir.True, ErrCodeNoAttributes},
		{"number and string", or(x.Eq(ir.Int(1)), x.Eq(ir.String("a"))), ErrCodeMixedTypes},
		{"naive and aware times", or(x.Eq(ir.NaiveTime(at)), x.Eq(ir.NewTime(at))), ErrCodeMixedTypes},
		{"membership and bound", and(x.IsIn(ir.Int(1)), x.Ge(ir.Int(0))), ErrCodeMixedDomains},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SimplifyUnivariate(tt.in)
			require.Error(t, err)
			assert.True(t, IsSimplifyError(err, tt.code), "got %v", err)
		})
	}
}

func TestSimplifyErrorMessage(t *testing.T) {
	_, err := SimplifyUnivariate(ir.True)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_attributes")
	assert.False(t, IsSimplifyError(assert.AnError))
	assert.True(t, IsSimplifyError(err))
	assert.False(t, IsSimplifyError(err, ErrCodeMixedTypes))
}
