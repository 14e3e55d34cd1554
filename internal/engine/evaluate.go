package engine

import (
	"fmt"

	"github.com/roach88/splitq/internal/ir"
)

// Evaluate reports whether row satisfies filter.
//
// A null field fails every relation and membership test, so its negation
// holds. Equality across value kinds is false; ordering across kinds is an
// incomparable error.
func Evaluate(filter ir.Expression, row Row) (bool, error) {
	switch x := filter.(type) {
	case ir.Literal:
		return bool(x), nil
	case ir.Relation:
		v, ok := row[x.Attribute().Name]
		if !ok {
			return false, nil
		}
		holds, comparable := x.Op().Satisfied(v, x.Value())
		if !comparable {
			if x.Op() == ir.OpEq {
				return false, nil
			}
			return false, &EngineError{
				Code:    ErrCodeIncomparable,
				Message: fmt.Sprintf("cannot order %s against %s", v, x.Value()),
				Column:  x.Attribute().Name,
			}
		}
		return holds, nil
	case ir.In:
		v, ok := row[x.Attribute().Name]
		return ok && x.Values().Contains(v), nil
	case ir.And:
		for _, c := range x.Clauses() {
			ok, err := Evaluate(c, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ir.Or:
		for _, c := range x.Clauses() {
			ok, err := Evaluate(c, row)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case ir.Not:
		ok, err := Evaluate(x.Clause(), row)
		return !ok && err == nil, err
	default:
		return false, &EngineError{
			Code:    ErrCodeUnsupportedExpression,
			Message: fmt.Sprintf("%T is not a row filter", filter),
		}
	}
}
