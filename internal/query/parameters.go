package query

import (
	"fmt"

	"github.com/roach88/splitq/internal/domain"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
)

// ParameterKind selects how a filter on an attribute maps to call arguments.
type ParameterKind string

const (
	// ParamTag passes the values of an In or Eq clause.
	ParamTag ParameterKind = "tag"

	// ParamRange passes the lower and upper bound of a range.
	ParamRange ParameterKind = "range"
)

// Parameter declares one argument (or argument pair) of a remote API.
type Parameter struct {
	Attribute string        `yaml:"attribute" json:"attribute"`
	Kind      ParameterKind `yaml:"kind" json:"kind"`

	// Key receives the tag values. With Single set, one call is made per
	// value and Key receives a single value.
	Key    string `yaml:"key,omitempty" json:"key,omitempty"`
	Single bool   `yaml:"single,omitempty" json:"single,omitempty"`

	// KeyLower and KeyUpper receive the range bounds.
	KeyLower string `yaml:"key_lower,omitempty" json:"key_lower,omitempty"`
	KeyUpper string `yaml:"key_upper,omitempty" json:"key_upper,omitempty"`
}

// Call is one remote invocation: the arguments to pass and the filter
// describing the rows it returns.
type Call struct {
	Filter ir.Expression
	Args   map[string]any
}

type partialCall struct {
	clauses []ir.Expression
	args    map[string]any
}

// ExtractParameters maps a simple clause or a flat conjunction onto calls.
//
// Tag parameters need exactly one In or Eq clause on their attribute. Range
// parameters need exactly one lower and one upper bound; the call filter
// uses inclusive bounds since that is what a range argument fetches. When
// several parameters are given, their calls are combined as a cross
// product. Clauses on undeclared attributes are not passed on; the caller
// refines the result with the original filter.
func ExtractParameters(e ir.Expression, params []Parameter) ([]Call, error) {
	if len(params) == 0 {
		return nil, &ParameterError{Message: "at least one parameter must be declared"}
	}
	if !logic.IsFlatAnd(e) {
		return nil, &ParameterError{Message: fmt.Sprintf("not a flat conjunction: %s", e)}
	}

	byName := map[string][]ir.Expression{}
	clauses := []ir.Expression{e}
	if a, ok := e.(ir.And); ok {
		clauses = a.Clauses()
	}
	for _, c := range clauses {
		if attrs := ir.Attributes(c); len(attrs) == 1 {
			byName[attrs[0].Name] = append(byName[attrs[0].Name], c)
		}
	}

	results := []partialCall{{args: map[string]any{}}}
	for _, p := range params {
		var next []partialCall
		var err error
		switch p.Kind {
		case ParamTag:
			next, err = tagCalls(p, byName[p.Attribute])
		case ParamRange:
			next, err = rangeCalls(p, byName[p.Attribute])
		default:
			err = &ParameterError{Attribute: p.Attribute, Message: fmt.Sprintf("unknown kind %q", p.Kind)}
		}
		if err != nil {
			return nil, err
		}
		results = product(results, next)
	}

	calls := make([]Call, len(results))
	for i, r := range results {
		calls[i] = Call{Filter: ir.All(r.clauses[0], r.clauses[1:]...), Args: r.args}
	}
	return calls, nil
}

func tagCalls(p Parameter, clauses []ir.Expression) ([]partialCall, error) {
	if len(clauses) != 1 {
		return nil, &ParameterError{Attribute: p.Attribute, Message: fmt.Sprintf("expected one tag clause, got %d", len(clauses))}
	}
	var (
		attr   ir.Attribute
		values []ir.Value
	)
	switch c := clauses[0].(type) {
	case ir.In:
		attr, values = c.Attribute(), c.Values().Values()
	case ir.Relation:
		if c.Op() != ir.OpEq {
			return nil, &ParameterError{Attribute: p.Attribute, Message: "tag needs In or Eq, got " + c.String()}
		}
		attr, values = c.Attribute(), []ir.Value{c.Value()}
	default:
		return nil, &ParameterError{Attribute: p.Attribute, Message: "tag needs In or Eq, got " + c.String()}
	}

	if !p.Single {
		return []partialCall{{
			clauses: []ir.Expression{attr.IsIn(values...)},
			args:    map[string]any{p.Key: values},
		}}, nil
	}
	out := make([]partialCall, len(values))
	for i, v := range values {
		out[i] = partialCall{
			clauses: []ir.Expression{attr.IsIn(v)},
			args:    map[string]any{p.Key: v},
		}
	}
	return out, nil
}

func rangeCalls(p Parameter, clauses []ir.Expression) ([]partialCall, error) {
	if len(clauses) != 2 {
		return nil, &ParameterError{Attribute: p.Attribute, Message: fmt.Sprintf("expected two range bounds, got %d", len(clauses))}
	}
	var lower, upper *ir.Relation
	for _, c := range clauses {
		r, ok := c.(ir.Relation)
		switch {
		case ok && r.Op().IsLower():
			lower = &r
		case ok && r.Op().IsUpper():
			upper = &r
		default:
			return nil, &ParameterError{Attribute: p.Attribute, Message: "range needs bounds, got " + c.String()}
		}
	}
	if lower == nil || upper == nil {
		return nil, &ParameterError{Attribute: p.Attribute, Message: "range needs a lower and an upper bound"}
	}
	attr := lower.Attribute()
	return []partialCall{{
		clauses: []ir.Expression{attr.Ge(lower.Value()), attr.Le(upper.Value())},
		args:    map[string]any{p.KeyLower: lower.Value(), p.KeyUpper: upper.Value()},
	}}, nil
}

func product(left, right []partialCall) []partialCall {
	out := make([]partialCall, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			args := make(map[string]any, len(l.args)+len(r.args))
			for k, v := range l.args {
				args[k] = v
			}
			for k, v := range r.args {
				args[k] = v
			}
			clauses := append(append([]ir.Expression{}, l.clauses...), r.clauses...)
			out = append(out, partialCall{clauses: clauses, args: args})
		}
	}
	return out
}

// SplitParameters expands e to simplified DNF and extracts the calls of
// every branch. An unsatisfiable filter needs no calls; a filter matching
// every row cannot be bounded by the parameters and fails.
func SplitParameters(e ir.Expression, params []Parameter, opts logic.Options) ([]Call, error) {
	expanded, err := domain.ExpandSimplify(e, opts)
	if err != nil {
		return nil, fmt.Errorf("split parameters: %w", err)
	}

	var branches []ir.Expression
	switch x := expanded.(type) {
	case ir.Literal:
		if !x {
			return nil, nil
		}
		return nil, &ParameterError{Message: "filter matches every row"}
	case ir.Or:
		branches = x.Clauses()
	default:
		branches = []ir.Expression{x}
	}

	var calls []Call
	for _, b := range branches {
		branchCalls, err := ExtractParameters(b, params)
		if err != nil {
			return nil, err
		}
		calls = append(calls, branchCalls...)
	}
	return calls, nil
}
