package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/testutil"
)

// eval evaluates the boolean skeleton of e with leaves looked up in assign.
func eval(e ir.Expression, assign map[string]bool) bool {
	switch x := e.(type) {
	case ir.Literal:
		return bool(x)
	case ir.And:
		for _, c := range x.Clauses() {
			if !eval(c, assign) {
				return false
			}
		}
		return true
	case ir.Or:
		for _, c := range x.Clauses() {
			if eval(c, assign) {
				return true
			}
		}
		return false
	case ir.Not:
		return !eval(x.Clause(), assign)
	default:
		return assign[e.Key()]
	}
}

// equivalent compares two expressions on every assignment of the leaves of a.
func equivalent(t *testing.T, a, b ir.Expression) bool {
	t.Helper()
	leaves := ir.Clauses(ir.Any(a, b))
	require.LessOrEqual(t, len(leaves), 16)
	for mask := 0; mask < 1<<len(leaves); mask++ {
		assign := map[string]bool{}
		for i, l := range leaves {
			assign[l.Key()] = mask&(1<<i) != 0
		}
		if eval(a, assign) != eval(b, assign) {
			return false
		}
	}
	return true
}

func checkTreeShape(t *testing.T, e ir.Expression, root bool) {
	t.Helper()
	switch x := e.(type) {
	case ir.Literal:
		assert.True(t, root, "literal below root")
	case ir.And:
		assert.GreaterOrEqual(t, x.Len(), 2)
		for _, c := range x.Clauses() {
			_, nested := c.(ir.And)
			assert.False(t, nested, "and nested in and")
			checkTreeShape(t, c, false)
		}
	case ir.Or:
		assert.GreaterOrEqual(t, x.Len(), 2)
		for _, c := range x.Clauses() {
			_, nested := c.(ir.Or)
			assert.False(t, nested, "or nested in or")
			checkTreeShape(t, c, false)
		}
	case ir.Not:
		checkTreeShape(t, x.Clause(), false)
	}
}

func TestSimplifyTreeProperties(t *testing.T) {
	gen := testutil.NewExprGen(7)
	leaves := []ir.Expression{ir.True, ir.False}
	for len(leaves) < 8 {
		leaves = append(leaves, gen.Relation())
	}

	for i := 0; i < 300; i++ {
		e := gen.Skeleton(4, leaves)
		s := ir.SimplifyTree(e)

		checkTreeShape(t, s, true)
		assert.True(t, ir.Equal(s, ir.SimplifyTree(s)), "not idempotent: %s", e)
		assert.True(t, equivalent(t, e, s), "not equivalent: %s => %s", e, s)
	}
}

func TestSerializationRoundTripProperty(t *testing.T) {
	gen := testutil.NewExprGen(11)
	gen.Literals = true

	for i := 0; i < 300; i++ {
		e := gen.Tree(4)
		got, err := ir.Unmarshal(ir.Marshal(e))
		require.NoError(t, err)
		require.True(t, ir.Equal(e, got), "round trip changed %s into %s", e, got)
		assert.Equal(t, ir.Hash(e), ir.Hash(got))
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a, b := testutil.NewExprGen(3), testutil.NewExprGen(3)
	for i := 0; i < 20; i++ {
		assert.True(t, ir.Equal(a.Tree(3), b.Tree(3)))
	}
}
