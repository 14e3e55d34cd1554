package ir

// SimplifyTree canonicalizes the boolean structure of an expression.
//
// Working bottom-up it flattens nested same-type And/Or nodes, resolves
// dominant literals (False in And, True in Or), drops redundant literals
// (True in And, False in Or), collapses single-clause And/Or to the clause and
// folds Not over literals. Leaves pass through unchanged.
//
// The result never contains True or False below the root, never nests an
// And directly in an And (or an Or in an Or) and never holds an And/Or with
// fewer than two clauses.
func SimplifyTree(e Expression) Expression {
	switch x := e.(type) {
	case And:
		return simplifyCompound(x.clauses, true)
	case Or:
		return simplifyCompound(x.clauses, false)
	case Not:
		clause := SimplifyTree(x.clause)
		if lit, ok := clause.(Literal); ok {
			return !lit
		}
		if clause.Key() == x.clause.Key() {
			return x
		}
		return NewNot(clause)
	default:
		return e
	}
}

// simplifyCompound simplifies the clauses of an And (conj) or Or (!conj).
// The identity literal of the connective is Literal(conj); its dominant
// literal is the negation.
func simplifyCompound(clauses []Expression, conj bool) Expression {
	identity := Literal(conj)
	out := make([]Expression, 0, len(clauses))
	for _, c := range clauses {
		s := SimplifyTree(c)
		switch y := s.(type) {
		case Literal:
			if y != identity {
				return y
			}
			continue
		case And:
			if conj {
				out = append(out, y.clauses...)
				continue
			}
		case Or:
			if !conj {
				out = append(out, y.clauses...)
				continue
			}
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return identity
	}
	if conj {
		a := mustAnd(out)
		if a.Len() == 1 {
			return a.clauses[0]
		}
		return a
	}
	o := mustOr(out)
	if o.Len() == 1 {
		return o.clauses[0]
	}
	return o
}

// All returns the simplified conjunction of its arguments.
func All(first Expression, rest ...Expression) Expression {
	return SimplifyTree(mustAnd(append([]Expression{first}, rest...)))
}

// Any returns the simplified disjunction of its arguments.
func Any(first Expression, rest ...Expression) Expression {
	return SimplifyTree(mustOr(append([]Expression{first}, rest...)))
}

// Negate returns the simplified negation of e.
func Negate(e Expression) Expression {
	return SimplifyTree(NewNot(e))
}

// Eq builds a == v. Panics if v is nil or not orderable (NaN, ±Inf); use
// NewRelation for untrusted input.
func (a Attribute) Eq(v Value) Relation { return newRelation(OpEq, a, mustValue(v)) }

// Le builds a <= v.
func (a Attribute) Le(v Value) Relation { return newRelation(OpLe, a, mustValue(v)) }

// Lt builds a < v.
func (a Attribute) Lt(v Value) Relation { return newRelation(OpLt, a, mustValue(v)) }

// Ge builds a >= v.
func (a Attribute) Ge(v Value) Relation { return newRelation(OpGe, a, mustValue(v)) }

// Gt builds a > v.
func (a Attribute) Gt(v Value) Relation { return newRelation(OpGt, a, mustValue(v)) }

// IsIn builds a membership test over values.
func (a Attribute) IsIn(values ...Value) In {
	checked := make([]Value, len(values))
	for i, v := range values {
		checked[i] = mustValue(v)
	}
	return newIn(a, NewValueSet(checked...))
}

// Between builds lo <= a <= hi.
func (a Attribute) Between(lo, hi Value) Expression {
	return All(a.Ge(lo), a.Le(hi))
}
