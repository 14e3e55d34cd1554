package ir

import (
	"slices"
	"strings"
)

// Attributes returns the distinct attributes referenced by e, ordered by
// table then name.
func Attributes(e Expression) []Attribute {
	seen := map[Attribute]bool{}
	var out []Attribute
	var visit func(Expression)
	visit = func(e Expression) {
		var a Attribute
		switch x := e.(type) {
		case Attribute:
			a = x
		case Relation:
			a = x.attr
		case In:
			a = x.attr
		case And:
			for _, c := range x.clauses {
				visit(c)
			}
			return
		case Or:
			for _, c := range x.clauses {
				visit(c)
			}
			return
		case Not:
			visit(x.clause)
			return
		default:
			return
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	visit(e)
	slices.SortFunc(out, CompareAttributes)
	return out
}

// Clauses returns the distinct maximal sub-expressions of e that are not
// And, Or, Not or a literal. These are the opaque boolean variables of a
// truth table. The result is in canonical key order.
func Clauses(e Expression) []Expression {
	seen := map[string]bool{}
	var out []Expression
	var visit func(Expression)
	visit = func(e Expression) {
		switch x := e.(type) {
		case Literal:
		case And:
			for _, c := range x.clauses {
				visit(c)
			}
		case Or:
			for _, c := range x.clauses {
				visit(c)
			}
		case Not:
			visit(x.clause)
		default:
			if !seen[e.Key()] {
				seen[e.Key()] = true
				out = append(out, e)
			}
		}
	}
	visit(e)
	slices.SortFunc(out, func(a, b Expression) int { return strings.Compare(a.Key(), b.Key()) })
	return out
}

// Transform rebuilds e bottom-up, calling hook on every node after its
// children have been transformed. Relations and memberships are visited as
// whole nodes; their attributes and values are not passed to hook.
func Transform(e Expression, hook func(Expression) Expression) Expression {
	switch x := e.(type) {
	case And:
		return hook(mustAnd(transformAll(x.clauses, hook)))
	case Or:
		return hook(mustOr(transformAll(x.clauses, hook)))
	case Not:
		return hook(NewNot(Transform(x.clause, hook)))
	default:
		return hook(e)
	}
}

func transformAll(clauses []Expression, hook func(Expression) Expression) []Expression {
	out := make([]Expression, len(clauses))
	for i, c := range clauses {
		out[i] = Transform(c, hook)
	}
	return out
}

// SubstituteAttributes replaces attributes found in substitutions.
func SubstituteAttributes(e Expression, substitutions map[Attribute]Attribute) Expression {
	return Transform(e, func(node Expression) Expression {
		switch x := node.(type) {
		case Attribute:
			if to, ok := substitutions[x]; ok {
				return to
			}
		case Relation:
			if to, ok := substitutions[x.attr]; ok {
				return newRelation(x.op, to, x.value)
			}
		case In:
			if to, ok := substitutions[x.attr]; ok {
				return newIn(to, x.values)
			}
		}
		return node
	})
}

// InToOr expands every membership into a disjunction of equalities. An
// empty membership becomes False.
func InToOr(e Expression) Expression {
	return SimplifyTree(Transform(e, func(node Expression) Expression {
		m, ok := node.(In)
		if !ok {
			return node
		}
		if m.values.Len() == 0 {
			return False
		}
		eqs := make([]Expression, m.values.Len())
		for i, v := range m.values.values {
			eqs[i] = newRelation(OpEq, m.attr, v)
		}
		return mustOr(eqs)
	}))
}

// Contains reports whether target occurs anywhere in e (including e itself).
func Contains(e, target Expression) bool {
	if e.Key() == target.Key() {
		return true
	}
	switch x := e.(type) {
	case And:
		return slices.ContainsFunc(x.clauses, func(c Expression) bool { return Contains(c, target) })
	case Or:
		return slices.ContainsFunc(x.clauses, func(c Expression) bool { return Contains(c, target) })
	case Not:
		return Contains(x.clause, target)
	default:
		return false
	}
}
