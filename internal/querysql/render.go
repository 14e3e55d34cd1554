package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/splitq/internal/ir"
)

// Render writes e as literal SQL text, for display and for remotes that
// take a filter string rather than bound parameters:
//
//	t.x >= 1 and t.x < 5
//	t.site in ('a','b')
//	(t.x > 1) or (t.y <= 2)
//
// A bounded range on one attribute is written without parentheses.
// Strings are single-quoted with embedded quotes doubled and times are
// written as quoted ISO 8601.
func Render(e ir.Expression) (string, error) {
	switch n := e.(type) {
	case ir.Literal:
		if n {
			return "1 = 1", nil
		}
		return "1 = 0", nil

	case ir.Relation:
		col, err := columnSQL(n.Attribute())
		if err != nil {
			return "", err
		}
		return col + " " + sqlOperator(n.Op()) + " " + RenderValue(n.Value()), nil

	case ir.In:
		col, err := columnSQL(n.Attribute())
		if err != nil {
			return "", err
		}
		values := n.Values().Values()
		if len(values) == 0 {
			return "1 = 0", nil
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = RenderValue(v)
		}
		return col + " in (" + strings.Join(parts, ",") + ")", nil

	case ir.And:
		if isRange(n) {
			return renderJoined(n.Clauses(), " and ", false)
		}
		return renderJoined(n.Clauses(), " and ", true)

	case ir.Or:
		return renderJoined(n.Clauses(), " or ", true)

	case ir.Not:
		inner, err := Render(n.Clause())
		if err != nil {
			return "", err
		}
		return "not (" + inner + ")", nil

	case ir.Attribute:
		return "", unrepresentable(n, "an attribute is not a filter")

	case nil:
		return "", unrepresentable(nil, "nil expression")

	default:
		return "", unrepresentable(e, "unsupported node %T", e)
	}
}

func renderJoined(clauses []ir.Expression, sep string, wrap bool) (string, error) {
	parts := make([]string, len(clauses))
	for i, clause := range clauses {
		s, err := Render(clause)
		if err != nil {
			return "", err
		}
		if wrap {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

// isRange reports whether a is a lower and an upper bound on one attribute.
func isRange(a ir.And) bool {
	clauses := a.Clauses()
	if len(clauses) != 2 {
		return false
	}
	lo, ok1 := clauses[0].(ir.Relation)
	hi, ok2 := clauses[1].(ir.Relation)
	if !ok1 || !ok2 || lo.Attribute() != hi.Attribute() {
		return false
	}
	return (lo.Op().IsLower() && hi.Op().IsUpper()) || (lo.Op().IsUpper() && hi.Op().IsLower())
}

// RenderValue writes a single literal.
func RenderValue(v ir.Value) string {
	switch val := v.(type) {
	case ir.Int:
		return strconv.FormatInt(int64(val), 10)
	case ir.Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case ir.String:
		return "'" + strings.ReplaceAll(string(val), "'", "''") + "'"
	case ir.Time:
		return "'" + val.ISO() + "'"
	default:
		return fmt.Sprint(v)
	}
}
