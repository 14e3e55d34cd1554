package logic

import "github.com/roach88/splitq/internal/ir"

// isClause reports whether e is an opaque clause: anything that is not a
// connective or a literal.
func isClause(e ir.Expression) bool {
	switch e.(type) {
	case ir.And, ir.Or, ir.Not, ir.Literal:
		return false
	default:
		return true
	}
}

// IsSimple reports whether e is a clause or the negation of a clause.
func IsSimple(e ir.Expression) bool {
	if n, ok := e.(ir.Not); ok {
		return isClause(n.Clause())
	}
	return isClause(e)
}

// IsFlatAnd reports whether e is simple or a conjunction of simple clauses.
func IsFlatAnd(e ir.Expression) bool {
	a, ok := e.(ir.And)
	if !ok {
		return IsSimple(e)
	}
	for _, c := range a.Clauses() {
		if !IsSimple(c) {
			return false
		}
	}
	return true
}

// IsDNF reports whether e is flat-and or a disjunction of flat-ands.
func IsDNF(e ir.Expression) bool {
	o, ok := e.(ir.Or)
	if !ok {
		return IsFlatAnd(e)
	}
	for _, c := range o.Clauses() {
		if !IsFlatAnd(c) {
			return false
		}
	}
	return true
}

// Terms splits an expression in disjunctive normal form into its
// conjunctions. True yields one empty conjunction and False yields none.
// ok is false when e is not in DNF.
func Terms(e ir.Expression) (terms [][]ir.Expression, ok bool) {
	switch x := e.(type) {
	case ir.Literal:
		if x {
			return [][]ir.Expression{{}}, true
		}
		return nil, true
	case ir.Or:
		for _, c := range x.Clauses() {
			t, ok := conjuncts(c)
			if !ok {
				return nil, false
			}
			terms = append(terms, t)
		}
		return terms, true
	default:
		t, ok := conjuncts(e)
		if !ok {
			return nil, false
		}
		return [][]ir.Expression{t}, true
	}
}

func conjuncts(e ir.Expression) ([]ir.Expression, bool) {
	if !IsFlatAnd(e) {
		return nil, false
	}
	if a, ok := e.(ir.And); ok {
		return a.Clauses(), true
	}
	return []ir.Expression{e}, true
}

// Evaluate computes the boolean value of e, asking leaf for the value of
// every clause reached. And and Or short-circuit.
func Evaluate(e ir.Expression, leaf func(ir.Expression) bool) bool {
	switch x := e.(type) {
	case ir.Literal:
		return bool(x)
	case ir.And:
		for _, c := range x.Clauses() {
			if !Evaluate(c, leaf) {
				return false
			}
		}
		return true
	case ir.Or:
		for _, c := range x.Clauses() {
			if Evaluate(c, leaf) {
				return true
			}
		}
		return false
	case ir.Not:
		return !Evaluate(x.Clause(), leaf)
	default:
		return leaf(e)
	}
}

// Negation returns the negation of a simple clause without double negation.
func Negation(e ir.Expression) ir.Expression {
	if n, ok := e.(ir.Not); ok {
		return n.Clause()
	}
	return ir.NewNot(e)
}
