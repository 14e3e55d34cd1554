package domain

import (
	"slices"

	"github.com/roach88/splitq/internal/ir"
)

// leafSummary describes the relational leaves of an expression.
type leafSummary struct {
	kinds      []ir.Kind
	membership bool // In present
	bounds     bool // Le, Lt, Ge or Gt present
	other      ir.Expression
}

func (s *leafSummary) addKind(k ir.Kind) {
	if !slices.Contains(s.kinds, k) {
		s.kinds = append(s.kinds, k)
	}
}

func summarize(e ir.Expression) leafSummary {
	var s leafSummary
	var visit func(ir.Expression)
	visit = func(e ir.Expression) {
		switch x := e.(type) {
		case ir.Literal:
		case ir.Relation:
			s.addKind(x.Value().Kind())
			if x.Op() != ir.OpEq {
				s.bounds = true
			}
		case ir.In:
			s.membership = true
			for _, k := range x.Values().Kinds() {
				s.addKind(k)
			}
		case ir.And:
			for _, c := range x.Clauses() {
				visit(c)
			}
		case ir.Or:
			for _, c := range x.Clauses() {
				visit(c)
			}
		case ir.Not:
			visit(x.Clause())
		default:
			if s.other == nil {
				s.other = e
			}
		}
	}
	visit(e)
	return s
}

// SimplifyUnivariate reduces an And/Or/Not tree over exactly one attribute
// to its canonical form.
//
// Trees of In and Eq are reduced with SignedSet; trees of comparisons
// without In are reduced with IntervalSet. The result is True, False,
// or a minimal expression over the attribute.
//
// Returns a *SimplifyError when the tree has zero or several attributes,
// mixes value kinds, or combines In with range bounds.
func SimplifyUnivariate(e ir.Expression) (ir.Expression, error) {
	attrs := ir.Attributes(e)
	switch len(attrs) {
	case 0:
		return nil, simplifyErr(ErrCodeNoAttributes, e, "expression references no attribute")
	case 1:
	default:
		return nil, simplifyErr(ErrCodeMultivariate, e, "expression references %d attributes", len(attrs))
	}
	attr := attrs[0]

	sum := summarize(e)
	if sum.other != nil {
		return nil, simplifyErr(ErrCodeUnsupportedClause, sum.other, "not a relation or membership")
	}
	if len(sum.kinds) > 1 {
		return nil, simplifyErr(ErrCodeMixedTypes, e, "values of kinds %v on %s", sum.kinds, attr)
	}

	if !sum.bounds {
		set, err := SetOf(e)
		if err != nil {
			return nil, err
		}
		return set.Expression(attr), nil
	}
	if sum.membership {
		return nil, simplifyErr(ErrCodeMixedDomains, e, "membership combined with range bounds on %s", attr)
	}

	set, err := IntervalsOf(e)
	if err != nil {
		return nil, err
	}
	return set.Expression(attr), nil
}
