package logic

import "github.com/roach88/splitq/internal/ir"

// conjunction is one branch of a DNF expansion: simple clauses joined by And.
type conjunction []ir.Expression

// ExpandHeuristic converts e to disjunctive normal form by distributing And
// over Or.
//
// Recognized shapes are simple clauses, flat conjunctions, DNF disjunctions,
// negated flat conjunctions (expanded by De Morgan) and any And/Or nesting
// of those. Anything else, such as the negation of a disjunction, fails with
// an *ExpansionError wrapping ErrHeuristic.
//
// The result is passed through ir.SimplifyTree, so single-branch results
// collapse to a conjunction or a clause.
func ExpandHeuristic(e ir.Expression) (ir.Expression, error) {
	e = ir.SimplifyTree(e)
	if lit, ok := e.(ir.Literal); ok {
		return lit, nil
	}
	branches, err := expandBranches(e)
	if err != nil {
		return nil, err
	}
	return fromBranches(branches), nil
}

// expandBranches returns the DNF branches of e. A nil result means False;
// a single empty branch means True.
func expandBranches(e ir.Expression) ([]conjunction, error) {
	switch x := e.(type) {
	case ir.Literal:
		if x {
			return []conjunction{{}}, nil
		}
		return nil, nil
	case ir.And:
		lists := make([][]conjunction, 0, x.Len())
		for _, c := range x.Clauses() {
			branches, err := expandBranches(c)
			if err != nil {
				return nil, err
			}
			lists = append(lists, branches)
		}
		return crossProduct(lists), nil
	case ir.Or:
		var out []conjunction
		for _, c := range x.Clauses() {
			branches, err := expandBranches(c)
			if err != nil {
				return nil, err
			}
			out = append(out, branches...)
		}
		return out, nil
	case ir.Not:
		return expandNot(x)
	default:
		return []conjunction{{e}}, nil
	}
}

// expandNot handles Not(flat-and) by De Morgan: each negated conjunct is
// its own branch.
func expandNot(n ir.Not) ([]conjunction, error) {
	inner := n.Clause()
	if isClause(inner) {
		return []conjunction{{n}}, nil
	}
	if !IsFlatAnd(inner) {
		return nil, &ExpansionError{Method: "heuristic", Expr: n, Err: ErrHeuristic}
	}
	terms, _ := conjuncts(inner)
	out := make([]conjunction, len(terms))
	for i, t := range terms {
		out[i] = conjunction{Negation(t)}
	}
	return out, nil
}

// crossProduct distributes And over the branch lists:
// (A1 or A2) and (B1 or B2) = A1B1 or A1B2 or A2B1 or A2B2.
func crossProduct(lists [][]conjunction) []conjunction {
	result := []conjunction{{}}
	for _, list := range lists {
		result = combineLists(result, list)
		if len(result) == 0 {
			return nil
		}
	}
	return result
}

func combineLists(left, right []conjunction) []conjunction {
	out := make([]conjunction, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			merged := make(conjunction, 0, len(l)+len(r))
			merged = append(merged, l...)
			merged = append(merged, r...)
			out = append(out, merged)
		}
	}
	return out
}

func fromBranches(branches []conjunction) ir.Expression {
	if len(branches) == 0 {
		return ir.False
	}
	terms := make([]ir.Expression, len(branches))
	for i, b := range branches {
		if len(b) == 0 {
			return ir.True
		}
		terms[i], _ = ir.NewAnd(b...)
	}
	or, _ := ir.NewOr(terms...)
	return ir.SimplifyTree(or)
}
