package domain

import (
	"fmt"

	"github.com/roach88/splitq/internal/ir"
)

// SignedSet is a finite value set or the complement of one. With Negated
// false it holds exactly Values; with Negated true it holds every value
// except Values.
type SignedSet struct {
	Values  ir.ValueSet
	Negated bool
}

// EmptySigned and FullSigned are the two literal sets.
var (
	EmptySigned = SignedSet{}
	FullSigned  = SignedSet{Negated: true}
)

// Intersect returns s ∩ other:
//
//	+A ∩ +B = +(A ∩ B)
//	+A ∩ -B = +(A - B)
//	-A ∩ -B = -(A ∪ B)
func (s SignedSet) Intersect(other SignedSet) SignedSet {
	switch {
	case !s.Negated && !other.Negated:
		return SignedSet{Values: s.Values.Intersect(other.Values)}
	case !s.Negated:
		return SignedSet{Values: s.Values.Difference(other.Values)}
	case !other.Negated:
		return SignedSet{Values: other.Values.Difference(s.Values)}
	default:
		return SignedSet{Values: s.Values.Union(other.Values), Negated: true}
	}
}

// Union returns s ∪ other:
//
//	+A ∪ +B = +(A ∪ B)
//	-A ∪ -B = -(A ∩ B)
//	+A ∪ -B = -(B - A)
func (s SignedSet) Union(other SignedSet) SignedSet {
	switch {
	case !s.Negated && !other.Negated:
		return SignedSet{Values: s.Values.Union(other.Values)}
	case s.Negated && other.Negated:
		return SignedSet{Values: s.Values.Intersect(other.Values), Negated: true}
	case !s.Negated:
		return SignedSet{Values: other.Values.Difference(s.Values), Negated: true}
	default:
		return SignedSet{Values: s.Values.Difference(other.Values), Negated: true}
	}
}

// Complement flips the sign.
func (s SignedSet) Complement() SignedSet {
	return SignedSet{Values: s.Values, Negated: !s.Negated}
}

// IsEmpty reports whether the set has no members.
func (s SignedSet) IsEmpty() bool { return !s.Negated && s.Values.Len() == 0 }

// IsFull reports whether the set is every value.
func (s SignedSet) IsFull() bool { return s.Negated && s.Values.Len() == 0 }

// Contains reports whether v is a member.
func (s SignedSet) Contains(v ir.Value) bool { return s.Values.Contains(v) != s.Negated }

// Expression converts the set into a filter on attr. Single values are
// written as equality.
func (s SignedSet) Expression(attr ir.Attribute) ir.Expression {
	switch {
	case s.IsEmpty():
		return ir.False
	case s.IsFull():
		return ir.True
	}
	var member ir.Expression = ir.InSet(attr, s.Values)
	if s.Values.Len() == 1 {
		member = attr.Eq(s.Values.Values()[0])
	}
	if s.Negated {
		return ir.NewNot(member)
	}
	return member
}

func (s SignedSet) String() string {
	sign := "+"
	if s.Negated {
		sign = "-"
	}
	return fmt.Sprintf("%s%v", sign, s.Values.Values())
}

// SetOf maps a univariate discrete expression onto a SignedSet. Only
// literals, Eq, In and And/Or/Not over those are accepted.
func SetOf(e ir.Expression) (SignedSet, error) {
	switch x := e.(type) {
	case ir.Literal:
		if x {
			return FullSigned, nil
		}
		return EmptySigned, nil
	case ir.In:
		return SignedSet{Values: x.Values()}, nil
	case ir.Relation:
		if x.Op() != ir.OpEq {
			return SignedSet{}, simplifyErr(ErrCodeMixedDomains, e, "range bound in a discrete filter")
		}
		return SignedSet{Values: ir.NewValueSet(x.Value())}, nil
	case ir.Not:
		s, err := SetOf(x.Clause())
		if err != nil {
			return SignedSet{}, err
		}
		return s.Complement(), nil
	case ir.And:
		return foldSets(x.Clauses(), FullSigned, SignedSet.Intersect)
	case ir.Or:
		return foldSets(x.Clauses(), EmptySigned, SignedSet.Union)
	default:
		return SignedSet{}, simplifyErr(ErrCodeUnsupportedClause, e, "no set interpretation")
	}
}

func foldSets(clauses []ir.Expression, acc SignedSet, op func(SignedSet, SignedSet) SignedSet) (SignedSet, error) {
	for _, c := range clauses {
		s, err := SetOf(c)
		if err != nil {
			return SignedSet{}, err
		}
		acc = op(acc, s)
	}
	return acc, nil
}

// IntervalsOf maps a univariate continuous expression onto an IntervalSet.
// Only literals, relations and And/Or/Not over those are accepted.
func IntervalsOf(e ir.Expression) (IntervalSet, error) {
	switch x := e.(type) {
	case ir.Literal:
		if x {
			return FullSet(), nil
		}
		return IntervalSet{}, nil
	case ir.Relation:
		return RelationSet(x), nil
	case ir.In:
		return IntervalSet{}, simplifyErr(ErrCodeMixedDomains, e, "membership in a continuous filter")
	case ir.Not:
		s, err := IntervalsOf(x.Clause())
		if err != nil {
			return IntervalSet{}, err
		}
		return s.Complement(), nil
	case ir.And:
		acc := FullSet()
		for _, c := range x.Clauses() {
			s, err := IntervalsOf(c)
			if err != nil {
				return IntervalSet{}, err
			}
			acc = acc.Intersect(s)
		}
		return acc, nil
	case ir.Or:
		var acc IntervalSet
		for _, c := range x.Clauses() {
			s, err := IntervalsOf(c)
			if err != nil {
				return IntervalSet{}, err
			}
			acc = acc.Union(s)
		}
		return acc, nil
	default:
		return IntervalSet{}, simplifyErr(ErrCodeUnsupportedClause, e, "no interval interpretation")
	}
}
