package testutil

import (
	"math/rand/v2"

	"github.com/roach88/splitq/internal/ir"
)

// ExprGen builds pseudo-random expressions from a fixed seed. The same seed
// always yields the same sequence of expressions.
type ExprGen struct {
	rng *rand.Rand

	// Attributes and Values are the alphabet for generated relations.
	Attributes []ir.Attribute
	Values     []ir.Value

	// Ops are the comparisons Relation may produce. Memberships adds In.
	Ops         []ir.Op
	Memberships bool

	// MaxWidth bounds the number of clauses in generated And/Or nodes.
	MaxWidth int

	// Literals allows True/False leaves.
	Literals bool
}

// NewExprGen creates a generator over attributes x and y with small integer
// values.
func NewExprGen(seed uint64) *ExprGen {
	return &ExprGen{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Attributes:  []ir.Attribute{ir.Attr("x"), ir.Attr("y")},
		Values:      []ir.Value{ir.Int(0), ir.Int(1), ir.Int(2), ir.Int(3), ir.Int(4)},
		Ops:         []ir.Op{ir.OpEq, ir.OpLe, ir.OpLt, ir.OpGe, ir.OpGt},
		Memberships: true,
		MaxWidth:    3,
	}
}

// Relation returns a random comparison or membership over the alphabet.
func (g *ExprGen) Relation() ir.Expression {
	attr := g.Attributes[g.rng.IntN(len(g.Attributes))]
	v := g.Values[g.rng.IntN(len(g.Values))]
	choices := len(g.Ops)
	if g.Memberships {
		choices++
	}
	i := g.rng.IntN(choices)
	if i < len(g.Ops) {
		r, err := ir.NewRelation(g.Ops[i], attr, v)
		if err != nil {
			panic(err)
		}
		return r
	}
	n := 1 + g.rng.IntN(3)
	values := make([]ir.Value, n)
	for i := range values {
		values[i] = g.Values[g.rng.IntN(len(g.Values))]
	}
	return attr.IsIn(values...)
}

// Tree returns a random boolean tree of the given depth over relations.
func (g *ExprGen) Tree(depth int) ir.Expression {
	return g.tree(depth, g.leaf)
}

// Skeleton returns a random boolean tree whose leaves are drawn from leaves.
// Used to build expressions over a bounded set of distinct clauses.
func (g *ExprGen) Skeleton(depth int, leaves []ir.Expression) ir.Expression {
	return g.tree(depth, func() ir.Expression {
		return leaves[g.rng.IntN(len(leaves))]
	})
}

func (g *ExprGen) leaf() ir.Expression {
	if g.Literals && g.rng.IntN(8) == 0 {
		return ir.Literal(g.rng.IntN(2) == 0)
	}
	return g.Relation()
}

func (g *ExprGen) tree(depth int, leaf func() ir.Expression) ir.Expression {
	if depth <= 0 || g.rng.IntN(4) == 0 {
		return leaf()
	}
	switch g.rng.IntN(5) {
	case 0:
		return ir.NewNot(g.tree(depth-1, leaf))
	case 1, 2:
		a, _ := ir.NewAnd(g.children(depth, leaf)...)
		return a
	default:
		o, _ := ir.NewOr(g.children(depth, leaf)...)
		return o
	}
}

func (g *ExprGen) children(depth int, leaf func() ir.Expression) []ir.Expression {
	width := 1 + g.rng.IntN(max(g.MaxWidth, 1))
	out := make([]ir.Expression, width)
	for i := range out {
		out[i] = g.tree(depth-1, leaf)
	}
	return out
}
