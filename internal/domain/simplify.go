package domain

import (
	"strings"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
)

// SimplifyDomain reduces every univariate sub-tree of e.
//
// A univariate expression is handed to SimplifyUnivariate whole. For an
// And or Or, clauses over the same single attribute are gathered and
// reduced together; clauses over several attributes are simplified one by
// one. The result is passed through ir.SimplifyTree.
//
// SimplifyDomain does not distribute: an unsatisfiable conjunction spread
// across an Or may survive. Use Simplify for a definitive answer.
func SimplifyDomain(e ir.Expression) (ir.Expression, error) {
	out, err := simplifyDomain(e)
	if err != nil {
		return nil, err
	}
	return ir.SimplifyTree(out), nil
}

func simplifyDomain(e ir.Expression) (ir.Expression, error) {
	if len(ir.Attributes(e)) == 1 {
		return SimplifyUnivariate(e)
	}
	switch x := e.(type) {
	case ir.And:
		clauses, err := simplifyGroups(x.Clauses(), true)
		if err != nil {
			return nil, err
		}
		return ir.All(clauses[0], clauses[1:]...), nil
	case ir.Or:
		clauses, err := simplifyGroups(x.Clauses(), false)
		if err != nil {
			return nil, err
		}
		return ir.Any(clauses[0], clauses[1:]...), nil
	case ir.Not:
		inner, err := simplifyDomain(x.Clause())
		if err != nil {
			return nil, err
		}
		return ir.Negate(inner), nil
	default:
		return e, nil
	}
}

// simplifyGroups partitions the clauses of a connective by the set of
// attributes each references. Single-attribute groups are reduced as one
// univariate expression under the same connective.
func simplifyGroups(clauses []ir.Expression, conj bool) ([]ir.Expression, error) {
	var order []string
	groups := map[string][]ir.Expression{}
	singles := map[string]bool{}
	for _, c := range clauses {
		attrs := ir.Attributes(c)
		keys := make([]string, len(attrs))
		for i, a := range attrs {
			keys[i] = a.Key()
		}
		k := strings.Join(keys, ",")
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
		singles[k] = len(attrs) == 1
	}

	var out []ir.Expression
	for _, k := range order {
		group := groups[k]
		if singles[k] {
			reduced, err := SimplifyUnivariate(join(group, conj))
			if err != nil {
				return nil, err
			}
			out = append(out, reduced)
			continue
		}
		for _, c := range group {
			reduced, err := simplifyDomain(c)
			if err != nil {
				return nil, err
			}
			out = append(out, reduced)
		}
	}
	return out, nil
}

func join(clauses []ir.Expression, conj bool) ir.Expression {
	if conj {
		a, _ := ir.NewAnd(clauses...)
		return a
	}
	o, _ := ir.NewOr(clauses...)
	return o
}

// Simplify fully reduces e: the boolean structure is expanded to DNF and
// every branch is reduced attribute by attribute. An unsatisfiable
// expression always yields False.
func Simplify(e ir.Expression, opts logic.Options) (ir.Expression, error) {
	dnf, err := logic.ToDNF(e, opts)
	if err != nil {
		return nil, err
	}
	return SimplifyDomain(dnf)
}

// ExpandSimplify expands e to DNF and applies SimplifyFlatAnd to every
// conjunction, dropping branches that reduce to False.
func ExpandSimplify(e ir.Expression, opts logic.Options) (ir.Expression, error) {
	dnf, err := logic.ToDNF(e, opts)
	if err != nil {
		return nil, err
	}
	terms, _ := logic.Terms(dnf)
	var branches []ir.Expression
	for _, t := range terms {
		if len(t) == 0 {
			return ir.True, nil
		}
		conj, _ := ir.NewAnd(t...)
		reduced, err := SimplifyFlatAnd(conj)
		if err != nil {
			return nil, err
		}
		switch reduced {
		case ir.True:
			return ir.True, nil
		case ir.False:
			continue
		}
		branches = append(branches, reduced)
	}
	if len(branches) == 0 {
		return ir.False, nil
	}
	return ir.Any(branches[0], branches[1:]...), nil
}
