package domain

import "github.com/roach88/splitq/internal/ir"

// term is a normalized simple clause. Eq becomes a one-value membership and
// negations are pushed into the operator or the membership sign.
type term struct {
	attr    ir.Attribute
	op      ir.Op // for bounds; unused for memberships
	value   ir.Value
	set     ir.ValueSet
	isSet   bool
	negated bool // NotIn
}

// normalizeClause maps a clause onto a term. ok is false for clauses that
// SimplifyFlatAnd passes through untouched.
func normalizeClause(e ir.Expression) (t term, ok bool) {
	switch x := e.(type) {
	case ir.Relation:
		if x.Op() == ir.OpEq {
			return term{attr: x.Attribute(), set: ir.NewValueSet(x.Value()), isSet: true}, true
		}
		return term{attr: x.Attribute(), op: x.Op(), value: x.Value()}, true
	case ir.In:
		return term{attr: x.Attribute(), set: x.Values(), isSet: true}, true
	case ir.Not:
		inner, ok := normalizeClause(x.Clause())
		if !ok {
			return term{}, false
		}
		if inner.isSet {
			inner.negated = !inner.negated
		} else {
			inner.op = inner.op.Negated()
		}
		return inner, true
	default:
		return term{}, false
	}
}

// attributeBounds collects the tightest bounds and the combined membership
// for one attribute.
type attributeBounds struct {
	lower, upper *term
	member       *term
}

// tighterLower reports whether a is a tighter lower bound than b: a larger
// value, or a strict bound at equal value.
func tighterLower(a, b *term) bool {
	c := compare(a.value, b.value)
	return c > 0 || (c == 0 && a.op == ir.OpGt && b.op == ir.OpGe)
}

// tighterUpper reports whether a is a tighter upper bound than b: a smaller
// value, or a strict bound at equal value.
func tighterUpper(a, b *term) bool {
	c := compare(a.value, b.value)
	return c < 0 || (c == 0 && a.op == ir.OpLt && b.op == ir.OpLe)
}

func combineMembers(a, b *term) *term {
	out := *a
	switch {
	case !a.negated && !b.negated:
		out.set = a.set.Intersect(b.set)
	case a.negated && b.negated:
		out.set = a.set.Union(b.set)
	case a.negated:
		out.set = b.set.Difference(a.set)
		out.negated = false
	default:
		out.set = a.set.Difference(b.set)
	}
	return &out
}

// SimplifyFlatAnd reduces a conjunction of simple clauses.
//
// Clauses are grouped by attribute. Each attribute keeps at most one lower
// bound, one upper bound and one membership (In or Not In). A membership
// absorbs the bounds by dropping values outside them; an empty In makes the
// whole conjunction False, as do crossing bounds. Clauses that are not
// simple pass through unchanged. A single clause may be given instead of
// an And.
//
// Returns a *SimplifyError when the values on one attribute are of
// different kinds.
func SimplifyFlatAnd(e ir.Expression) (ir.Expression, error) {
	var clauses []ir.Expression
	switch x := e.(type) {
	case ir.And:
		clauses = x.Clauses()
	default:
		clauses = []ir.Expression{e}
	}

	var (
		order  []ir.Attribute
		groups = map[ir.Attribute]*attributeBounds{}
		output []ir.Expression
	)
	for _, cl := range clauses {
		if lit, isLit := cl.(ir.Literal); isLit {
			if !lit {
				return ir.False, nil
			}
			continue
		}
		t, ok := normalizeClause(cl)
		if !ok {
			output = append(output, cl)
			continue
		}
		g := groups[t.attr]
		if g == nil {
			g = &attributeBounds{}
			groups[t.attr] = g
			order = append(order, t.attr)
		}
		if err := g.add(&t, e); err != nil {
			return nil, err
		}
	}

	for _, attr := range order {
		reduced := groups[attr].reduce(attr)
		if lit, isLit := reduced.(ir.Literal); isLit {
			if !lit {
				return ir.False, nil
			}
			continue
		}
		output = append(output, reduced)
	}

	if len(output) == 0 {
		return ir.True, nil
	}
	return ir.All(output[0], output[1:]...), nil
}

func (g *attributeBounds) add(t *term, e ir.Expression) error {
	for _, other := range []*term{g.lower, g.upper, g.member} {
		if other != nil && !comparableTerms(t, other) {
			return simplifyErr(ErrCodeMixedTypes, e, "incomparable values on %s", t.attr)
		}
	}
	switch {
	case t.isSet:
		if g.member == nil {
			g.member = t
		} else {
			g.member = combineMembers(g.member, t)
		}
	case t.op.IsLower():
		if g.lower == nil || tighterLower(t, g.lower) {
			g.lower = t
		}
	default:
		if g.upper == nil || tighterUpper(t, g.upper) {
			g.upper = t
		}
	}
	return nil
}

// comparableTerms reports whether every value of a can be ordered against
// every value of b. Two memberships never need ordering.
func comparableTerms(a, b *term) bool {
	if a.isSet && b.isSet {
		return true
	}
	if a.isSet {
		a, b = b, a
	}
	values := []ir.Value{b.value}
	if b.isSet {
		values = b.set.Values()
	}
	for _, v := range values {
		if _, ok := ir.Compare(a.value, v); !ok {
			return false
		}
	}
	return true
}

// satisfies reports whether v passes every bound present.
func (g *attributeBounds) satisfies(v ir.Value) bool {
	for _, b := range []*term{g.lower, g.upper} {
		if b == nil {
			continue
		}
		if holds, _ := b.op.Satisfied(v, b.value); !holds {
			return false
		}
	}
	return true
}

func (g *attributeBounds) reduce(attr ir.Attribute) ir.Expression {
	var parts []ir.Expression

	if m := g.member; m != nil {
		values := m.set.Filter(g.satisfies)
		if !m.negated {
			// The bounds are implied by the surviving values.
			return SignedSet{Values: values}.Expression(attr)
		}
		if values.Len() > 0 {
			if g.lower != nil && g.upper != nil && compare(g.lower.value, g.upper.value) == 0 {
				// The bounds pin a single value and every excluded value is it.
				return ir.False
			}
			parts = append(parts, SignedSet{Values: values, Negated: true}.Expression(attr))
		}
	}

	switch {
	case g.lower != nil && g.upper != nil:
		c := compare(g.lower.value, g.upper.value)
		switch {
		case c > 0:
			return ir.False
		case c == 0:
			if g.lower.op != ir.OpGe || g.upper.op != ir.OpLe {
				return ir.False
			}
			parts = append(parts, attr.Eq(g.lower.value))
		default:
			parts = append(parts, boundRelation(g.lower), boundRelation(g.upper))
		}
	case g.lower != nil:
		parts = append(parts, boundRelation(g.lower))
	case g.upper != nil:
		parts = append(parts, boundRelation(g.upper))
	}

	if len(parts) == 0 {
		return ir.True
	}
	return ir.All(parts[0], parts[1:]...)
}

func boundRelation(t *term) ir.Expression {
	r, err := ir.NewRelation(t.op, t.attr, t.value)
	if err != nil {
		// Values reaching here came from valid relations.
		panic(err)
	}
	return r
}
