package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/splitq/internal/domain"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
)

// Decompose splits the filter q against the filter s of a source.
//
// refine is the filter to apply to the source's rows to get exactly the
// rows of q that the source holds; nil when no filtering is needed.
// remainder matches the rows q needs that s does not hold; nil when s
// covers q. A nil filter matches every row, as does True.
//
// Filters over one shared attribute are compared through their value
// domain, so x >= 1 and not (x < 1) decompose to (nil, nil). Conjunctions
// and disjunctions are compared clause by clause, a lone clause being
// treated as a one-clause And or Or. Anything else fails with
// *DecompositionError.
func Decompose(q, s ir.Expression) (refine, remainder ir.Expression, err error) {
	q, s = unconstrained(q), unconstrained(s)
	switch {
	case q == nil && s == nil:
		return nil, nil, nil
	case s == nil:
		return q, nil, nil
	case q == nil:
		return nil, Invert(s), nil
	case ir.Equal(q, s):
		return nil, nil, nil
	}

	if s == ir.False {
		// The source holds no rows.
		return nil, q, nil
	}
	if q == ir.False {
		return ir.False, nil, nil
	}

	if refine, remainder, handled, err := decomposeDomain(q, s); handled {
		return refine, remainder, err
	}
	return decomposeStructure(q, s)
}

// unconstrained maps True to nil.
func unconstrained(e ir.Expression) ir.Expression {
	if e == ir.True {
		return nil
	}
	return e
}

// Invert returns the filter matching exactly the rows e does not match.
//
// Univariate filters are complemented through their value domain, so
// Invert(x >= 1) is x < 1. Other filters have the negation pushed down to
// the clauses. Invert(nil) is False.
func Invert(e ir.Expression) ir.Expression {
	if e == nil {
		return ir.False
	}
	if len(ir.Attributes(e)) == 1 {
		if out, err := domain.SimplifyUnivariate(ir.NewNot(e)); err == nil {
			return out
		}
	}
	return pushNot(e)
}

func pushNot(e ir.Expression) ir.Expression {
	switch x := e.(type) {
	case ir.Literal:
		return !x
	case ir.Relation:
		if x.Op() == ir.OpEq {
			return ir.NewNot(x)
		}
		return x.WithOp(x.Op().Negated())
	case ir.Not:
		return x.Clause()
	case ir.And:
		clauses := x.Clauses()
		out := make([]ir.Expression, len(clauses))
		for i, c := range clauses {
			out[i] = pushNot(c)
		}
		return ir.Any(out[0], out[1:]...)
	case ir.Or:
		clauses := x.Clauses()
		out := make([]ir.Expression, len(clauses))
		for i, c := range clauses {
			out[i] = pushNot(c)
		}
		return ir.All(out[0], out[1:]...)
	default:
		return ir.Negate(e)
	}
}

// decomposeDomain handles a query and source over the same single
// attribute. handled is false when the pair has another shape.
func decomposeDomain(q, s ir.Expression) (refine, remainder ir.Expression, handled bool, err error) {
	qa, sa := ir.Attributes(q), ir.Attributes(s)
	if len(qa) != 1 || len(sa) != 1 {
		return nil, nil, false, nil
	}
	if qa[0] != sa[0] {
		if logic.IsSimple(q) && logic.IsSimple(s) {
			return nil, nil, true, decompositionErr(ErrCodeAttributeMismatch, q, s,
				"%s against %s", qa[0], sa[0])
		}
		return nil, nil, false, nil
	}
	attr := qa[0]

	qs, qErr := domain.SetOf(q)
	ss, sErr := domain.SetOf(s)
	if qErr == nil && sErr == nil {
		refine, remainder := splitSets(attr, q, qs, ss)
		return refine, remainder, true, nil
	}

	if !sameKind(q, s) {
		return nil, nil, true, decompositionErr(ErrCodeShapeMismatch, q, s, "incomparable values on %s", attr)
	}

	si, err := domain.IntervalsOf(ir.InToOr(s))
	if err != nil {
		return nil, nil, false, nil
	}
	if qErr == nil && !qs.Negated {
		refine, remainder := partition(attr, q, qs.Values, si)
		return refine, remainder, true, nil
	}
	qi, err := domain.IntervalsOf(ir.InToOr(q))
	if err != nil {
		return nil, nil, false, nil
	}
	if !si.Difference(qi).IsEmpty() {
		refine = q
	}
	if rest := qi.Difference(si); !rest.IsEmpty() {
		remainder = rest.Expression(attr)
	}
	return refine, remainder, true, nil
}

// splitSets decomposes two discrete filters. Results keep the In form when
// the query was written as a membership.
func splitSets(attr ir.Attribute, q ir.Expression, qs, ss domain.SignedSet) (refine, remainder ir.Expression) {
	express := func(set domain.SignedSet) ir.Expression {
		if set.Negated {
			return set.Expression(attr)
		}
		return members(attr, q, set.Values)
	}
	if !ss.Intersect(qs.Complement()).IsEmpty() {
		refine = express(qs.Intersect(ss))
	}
	if rest := qs.Intersect(ss.Complement()); !rest.IsEmpty() {
		remainder = express(rest)
	}
	return refine, remainder
}

// partition splits the values of a membership query by whether a range
// source holds them.
func partition(attr ir.Attribute, q ir.Expression, values ir.ValueSet, si domain.IntervalSet) (refine, remainder ir.Expression) {
	covered := values.Filter(si.Contains)
	missing := values.Difference(covered)

	points := domain.IntervalSet{}
	for _, v := range values.Values() {
		points = points.Union(domain.Point(v))
	}
	if !si.Difference(points).IsEmpty() {
		refine = members(attr, q, covered)
	}
	if missing.Len() > 0 {
		remainder = members(attr, q, missing)
	}
	return refine, remainder
}

// members writes values as a filter in the form of q: a membership when q
// was one, otherwise equality for a single value.
func members(attr ir.Attribute, q ir.Expression, values ir.ValueSet) ir.Expression {
	if _, isIn := q.(ir.In); isIn {
		if values.Len() == 0 {
			return ir.False
		}
		return ir.InSet(attr, values)
	}
	return domain.SignedSet{Values: values}.Expression(attr)
}

func sameKind(q, s ir.Expression) bool {
	var kinds []ir.Kind
	for _, c := range append(ir.Clauses(q), ir.Clauses(s)...) {
		switch x := c.(type) {
		case ir.Relation:
			kinds = append(kinds, x.Value().Kind())
		case ir.In:
			kinds = append(kinds, x.Values().Kinds()...)
		}
	}
	slices.Sort(kinds)
	return len(slices.Compact(kinds)) <= 1
}

// decomposeStructure compares conjunctions and disjunctions clause by
// clause.
func decomposeStructure(q, s ir.Expression) (refine, remainder ir.Expression, err error) {
	switch qx := q.(type) {
	case ir.And:
		switch sx := s.(type) {
		case ir.And:
			return decomposeAnd(qx, sx)
		case ir.Or:
			return nil, nil, decompositionErr(ErrCodeShapeMismatch, q, s, "conjunction against disjunction")
		default:
			return decomposeAnd(qx, singletonAnd(s))
		}
	case ir.Or:
		switch sx := s.(type) {
		case ir.Or:
			return decomposeOr(qx, sx)
		case ir.And:
			return nil, nil, decompositionErr(ErrCodeShapeMismatch, q, s, "disjunction against conjunction")
		default:
			return decomposeOr(qx, singletonOr(s))
		}
	}

	switch sx := s.(type) {
	case ir.And:
		return decomposeAnd(singletonAnd(q), sx)
	case ir.Or:
		return decomposeOr(singletonOr(q), sx)
	}

	if logic.IsSimple(q) && logic.IsSimple(s) {
		return nil, nil, decompositionErr(ErrCodeAttributeMismatch, q, s, "clauses constrain different attributes")
	}
	return nil, nil, decompositionErr(ErrCodeShapeMismatch, q, s, "no common shape")
}

func singletonAnd(e ir.Expression) ir.And {
	a, _ := ir.NewAnd(e)
	return a
}

func singletonOr(e ir.Expression) ir.Or {
	o, _ := ir.NewOr(e)
	return o
}

// difference returns the clauses of a missing from b, by key.
func difference(a, b []ir.Expression) []ir.Expression {
	keys := make(map[string]bool, len(b))
	for _, c := range b {
		keys[c.Key()] = true
	}
	var out []ir.Expression
	for _, c := range a {
		if !keys[c.Key()] {
			out = append(out, c)
		}
	}
	return out
}

// decomposeAnd: clauses of q the source lacks are applied as the refine;
// rows excluded by the source's extra clauses form the remainder.
func decomposeAnd(q, s ir.And) (refine, remainder ir.Expression, err error) {
	missing := difference(q.Clauses(), s.Clauses())
	extras := difference(s.Clauses(), q.Clauses())
	if len(missing) > 0 {
		refine = ir.All(missing[0], missing[1:]...)
	}
	if len(extras) > 0 {
		clauses := append(q.Clauses(), ir.NewNot(ir.All(extras[0], extras[1:]...)))
		remainder = simplifyRemainder(ir.All(clauses[0], clauses[1:]...))
	}
	return refine, remainder, nil
}

// decomposeOr: branches of q the source lacks feed the remainder; extra
// branches in the source force the whole query as the refine.
func decomposeOr(q, s ir.Or) (refine, remainder ir.Expression, err error) {
	missing := difference(q.Clauses(), s.Clauses())
	extras := difference(s.Clauses(), q.Clauses())
	if len(extras) > 0 {
		refine = q
	}
	if len(missing) > 0 {
		remainder = simplifyRemainder(ir.All(ir.Any(missing[0], missing[1:]...), ir.NewNot(s)))
	}
	return refine, remainder, nil
}

// simplifyRemainder reduces a remainder as far as the domain allows. An
// empty remainder becomes nil.
func simplifyRemainder(e ir.Expression) ir.Expression {
	out, err := domain.Simplify(e, logic.Options{})
	if err != nil {
		out = ir.SimplifyTree(e)
	}
	if out == ir.False {
		return nil
	}
	return out
}

// DecomposeQuery splits q against the source query s.
//
// The tables must match and s must select every column q selects. refine is
// non-nil when the source's rows need filtering or its columns need
// projecting; remainder is non-nil when the source does not cover q. Both
// carry q's table and columns.
func DecomposeQuery(q, s Query) (refine, remainder *Query, err error) {
	if q.Table != s.Table {
		return nil, nil, &DecompositionError{
			Code:    ErrCodeTableMismatch,
			Message: fmt.Sprintf("query reads %q, source reads %q", q.Table, s.Table),
		}
	}
	if missing := missingColumns(q.Table, q.Select, s); len(missing) > 0 || (q.AllColumns() && !s.AllColumns()) {
		return nil, nil, &DecompositionError{
			Code:    ErrCodeColumnProjection,
			Message: fmt.Sprintf("source does not select %v", columnNames(q, missing)),
		}
	}

	whereRefine, whereRemainder, err := Decompose(q.Where, s.Where)
	if err != nil {
		return nil, nil, err
	}
	if whereRefine != nil {
		if missing := missingColumns(q.Table, ir.Attributes(whereRefine), s); len(missing) > 0 {
			return nil, nil, &DecompositionError{
				Code:    ErrCodeColumnProjection,
				Message: fmt.Sprintf("refine filter needs unselected columns %v", missing),
				Query:   q.Where,
				Source:  s.Where,
			}
		}
	}

	if whereRefine != nil || !sameColumns(q.Table, q.Select, s.Select) {
		refine = &Query{Table: q.Table, Select: q.Select, Where: whereRefine}
	}
	if whereRemainder != nil {
		remainder = &Query{Table: q.Table, Select: q.Select, Where: whereRemainder}
	}
	return refine, remainder, nil
}

// qualify resolves an unqualified column against the query's table.
func qualify(table string, c ir.Attribute) ir.Attribute {
	if c.Table == "" {
		c.Table = table
	}
	return c
}

// missingColumns returns the columns of want that the source does not
// select. A source selecting every column is missing nothing.
func missingColumns(table string, want []ir.Attribute, s Query) []ir.Attribute {
	if s.AllColumns() {
		return nil
	}
	have := make(map[ir.Attribute]bool, len(s.Select))
	for _, c := range s.Select {
		have[qualify(s.Table, c)] = true
	}
	var missing []ir.Attribute
	for _, c := range want {
		if !have[qualify(table, c)] {
			missing = append(missing, c)
		}
	}
	return missing
}

func sameColumns(table string, a, b []ir.Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	qa := make([]ir.Attribute, len(a))
	qb := make([]ir.Attribute, len(b))
	for i := range a {
		qa[i], qb[i] = qualify(table, a[i]), qualify(table, b[i])
	}
	slices.SortFunc(qa, ir.CompareAttributes)
	slices.SortFunc(qb, ir.CompareAttributes)
	return slices.Equal(qa, qb)
}

func columnNames(q Query, missing []ir.Attribute) string {
	if q.AllColumns() {
		return "*"
	}
	names := make([]string, len(missing))
	for i, c := range missing {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
