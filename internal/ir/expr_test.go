package ir

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationKey(t *testing.T) {
	x := Attr("x")
	assert.Equal(t, `{"attribute":{"expr":"attr","name":"x"},"expr":"ge","value":1}`, x.Ge(Int(1)).Key())
	assert.Equal(t,
		`{"attribute":{"expr":"attr","name":"id","table":"orders"},"expr":"eq","value":"a"}`,
		Col("orders", "id").Eq(String("a")).Key())
}

func TestRelationVariantsAreDistinct(t *testing.T) {
	x := Attr("x")
	le := x.Le(Int(1))
	lt := x.Lt(Int(1))

	assert.False(t, Equal(le, lt), "Le and Lt with the same payload must differ")
	assert.NotEqual(t, Hash(le), Hash(lt))
	assert.NotEqual(t, Digest(le), Digest(lt))

	assert.True(t, Equal(le, x.Le(Int(1))))
	assert.Equal(t, Hash(le), Hash(x.Le(Int(1))))
}

func TestFloatAndIntShareIdentity(t *testing.T) {
	x := Attr("x")
	assert.True(t, Equal(x.Eq(Float(2)), x.Eq(Int(2))))
	assert.False(t, Equal(x.Eq(Float(2.5)), x.Eq(Int(2))))
}

func TestNewRelationRejectsUnorderedValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		code  TypeErrorCode
	}{
		{"nil", nil, CodeNonOrderable},
		{"nan", math.NaN(), CodeNonOrderable},
		{"inf", math.Inf(1), CodeNonOrderable},
		{"struct", struct{}{}, CodeUnsupportedValue},
		{"slice", []int{1}, CodeUnsupportedValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelation(OpEq, Attr("x"), tt.value)
			require.Error(t, err)
			assert.True(t, IsTypeError(err))

			var te *TypeError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.code, te.Code)
		})
	}
}

func TestNewRelationAcceptsScalars(t *testing.T) {
	for _, v := range []any{1, int8(2), uint32(3), 1.5, float32(0.25), "s", time.Unix(0, 0)} {
		r, err := NewRelation(OpLt, Attr("x"), v)
		require.NoError(t, err, "%T", v)
		assert.Equal(t, OpLt, r.Op())
	}
}

func TestNewInRejectsBadMember(t *testing.T) {
	_, err := NewIn(Attr("x"), 1, math.NaN())
	require.Error(t, err)
	assert.True(t, IsTypeError(err))
}

func TestInNormalizesMembers(t *testing.T) {
	m, err := NewIn(Attr("x"), 3, 1, 2, 1, 2.0)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Values().Len())
	assert.Equal(t, "x in {1, 2, 3}", m.String())

	empty, err := NewIn(Attr("x"))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Values().Len())
}

func TestCompoundIsOrderFreeAndDeduplicated(t *testing.T) {
	x := Attr("x")
	a, b := x.Ge(Int(1)), x.Le(Int(5))

	and1, err := NewAnd(a, b, a)
	require.NoError(t, err)
	and2, err := NewAnd(b, a)
	require.NoError(t, err)

	assert.Equal(t, 2, and1.Len())
	assert.True(t, Equal(and1, and2))

	or1, err := NewOr(a, b)
	require.NoError(t, err)
	assert.False(t, Equal(and1, or1), "And and Or over the same clauses differ")
}

func TestCompoundRejectsEmptyAndNil(t *testing.T) {
	_, err := NewAnd()
	assert.ErrorIs(t, err, ErrEmptyCompound)

	_, err = NewOr()
	assert.ErrorIs(t, err, ErrEmptyCompound)

	_, err = NewAnd(True, nil)
	assert.ErrorIs(t, err, ErrNilExpression)

	assert.Panics(t, func() { NewNot(nil) })
}

func TestClausesReturnsCopy(t *testing.T) {
	x := Attr("x")
	a, err := NewAnd(x.Ge(Int(1)), x.Le(Int(5)))
	require.NoError(t, err)

	clauses := a.Clauses()
	clauses[0] = True
	assert.NotEqual(t, True, a.Clauses()[0])
}

func TestExpressionString(t *testing.T) {
	x := Attr("x")
	tests := []struct {
		name string
		expr Expression
		want string
	}{
		{"literal", True, "True"},
		{"relation", x.Ge(Int(1)), "x >= 1"},
		{"string value", x.Eq(String("a")), `x == "a"`},
		{"qualified", Col("t", "x").Lt(Float(1.5)), "t.x < 1.5"},
		{"and", mustAnd([]Expression{x.Ge(Int(1)), x.Le(Int(5))}), "(x >= 1 and x <= 5)"},
		{"not leaf", NewNot(x.Eq(Int(1))), "not (x == 1)"},
		{"not compound", NewNot(mustOr([]Expression{x.Eq(Int(1)), x.Eq(Int(2))})), "not (x == 1 or x == 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.String())
		})
	}
}

func TestAttributeNFC(t *testing.T) {
	// "é" precomposed vs "e" + combining acute.
	composed := Attr("caf\u00e9")
	decomposed := Attr("cafe\u0301")
	assert.True(t, Equal(composed.Eq(Int(1)), decomposed.Eq(Int(1))))
	assert.Equal(t, composed, decomposed.Eq(Int(1)).Attribute())
}

func TestOpHelpers(t *testing.T) {
	assert.Equal(t, OpGt, OpLe.Negated())
	assert.Equal(t, OpGe, OpLt.Negated())
	assert.Equal(t, OpEq, OpEq.Negated())
	assert.True(t, OpGt.IsLower())
	assert.True(t, OpLt.IsUpper())
	assert.True(t, OpLt.IsStrict())
	assert.False(t, OpLe.IsStrict())

	holds, ok := OpLe.Satisfied(Int(1), Float(1.0))
	assert.True(t, ok)
	assert.True(t, holds)

	_, ok = OpLe.Satisfied(Int(1), String("1"))
	assert.False(t, ok)
}
