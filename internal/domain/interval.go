package domain

import (
	"slices"
	"strings"

	"github.com/roach88/splitq/internal/ir"
)

// Bound is one end of an interval. An Infinite bound has no value and
// extends to -∞ (as a lower bound) or +∞ (as an upper bound).
type Bound struct {
	Value    ir.Value
	Open     bool
	Infinite bool
}

var unbounded = Bound{Infinite: true}

// Interval is a connected range of values between Lo and Hi.
type Interval struct {
	Lo, Hi Bound
}

// IntervalSet is a union of disjoint, non-touching intervals sorted by lower
// bound. The zero value is the empty set.
//
// All values in one set must share a kind; callers check this before
// building a set (see summarize).
type IntervalSet struct {
	intervals []Interval
}

// FullSet is the set of every value.
func FullSet() IntervalSet {
	return IntervalSet{intervals: []Interval{{Lo: unbounded, Hi: unbounded}}}
}

// Point is the single-value set {v}.
func Point(v ir.Value) IntervalSet {
	return newIntervalSet(Interval{Lo: Bound{Value: v}, Hi: Bound{Value: v}})
}

// RelationSet is the set of values satisfying r.
func RelationSet(r ir.Relation) IntervalSet {
	v := r.Value()
	switch r.Op() {
	case ir.OpEq:
		return Point(v)
	case ir.OpLe:
		return newIntervalSet(Interval{Lo: unbounded, Hi: Bound{Value: v}})
	case ir.OpLt:
		return newIntervalSet(Interval{Lo: unbounded, Hi: Bound{Value: v, Open: true}})
	case ir.OpGe:
		return newIntervalSet(Interval{Lo: Bound{Value: v}, Hi: unbounded})
	default:
		return newIntervalSet(Interval{Lo: Bound{Value: v, Open: true}, Hi: unbounded})
	}
}

func newIntervalSet(intervals ...Interval) IntervalSet {
	return IntervalSet{intervals: normalize(intervals)}
}

// Intervals returns the component intervals in ascending order.
func (s IntervalSet) Intervals() []Interval { return slices.Clone(s.intervals) }

// IsEmpty reports whether the set has no members.
func (s IntervalSet) IsEmpty() bool { return len(s.intervals) == 0 }

// IsFull reports whether the set is every value.
func (s IntervalSet) IsFull() bool {
	return len(s.intervals) == 1 && s.intervals[0].Lo.Infinite && s.intervals[0].Hi.Infinite
}

// Contains reports whether v lies in the set.
func (s IntervalSet) Contains(v ir.Value) bool {
	p := Interval{Lo: Bound{Value: v}, Hi: Bound{Value: v}}
	for _, iv := range s.intervals {
		if !intersect(iv, p).empty() {
			return true
		}
	}
	return false
}

// Union returns s ∪ other.
func (s IntervalSet) Union(other IntervalSet) IntervalSet {
	all := make([]Interval, 0, len(s.intervals)+len(other.intervals))
	all = append(all, s.intervals...)
	all = append(all, other.intervals...)
	return newIntervalSet(all...)
}

// Intersect returns s ∩ other.
func (s IntervalSet) Intersect(other IntervalSet) IntervalSet {
	var out []Interval
	for _, a := range s.intervals {
		for _, b := range other.intervals {
			out = append(out, intersect(a, b))
		}
	}
	return newIntervalSet(out...)
}

// Complement returns every value not in s.
func (s IntervalSet) Complement() IntervalSet {
	var out []Interval
	lo := unbounded
	for _, iv := range s.intervals {
		if !iv.Lo.Infinite {
			out = append(out, Interval{Lo: lo, Hi: Bound{Value: iv.Lo.Value, Open: !iv.Lo.Open}})
		}
		if iv.Hi.Infinite {
			return newIntervalSet(out...)
		}
		lo = Bound{Value: iv.Hi.Value, Open: !iv.Hi.Open}
	}
	out = append(out, Interval{Lo: lo, Hi: unbounded})
	return newIntervalSet(out...)
}

// Difference returns s − other.
func (s IntervalSet) Difference(other IntervalSet) IntervalSet {
	return s.Intersect(other.Complement())
}

// Equal reports whether both sets have the same members.
func (s IntervalSet) Equal(other IntervalSet) bool {
	return slices.EqualFunc(s.intervals, other.intervals, func(a, b Interval) bool {
		return boundEqual(a.Lo, b.Lo) && boundEqual(a.Hi, b.Hi)
	})
}

// Expression converts the set into a canonical filter on attr: False when
// empty, True when full, otherwise an Or of one expression per interval.
func (s IntervalSet) Expression(attr ir.Attribute) ir.Expression {
	if s.IsEmpty() {
		return ir.False
	}
	parts := make([]ir.Expression, len(s.intervals))
	for i, iv := range s.intervals {
		parts[i] = iv.Expression(attr)
	}
	return ir.Any(parts[0], parts[1:]...)
}

// Expression converts a single interval into a filter on attr.
func (iv Interval) Expression(attr ir.Attribute) ir.Expression {
	switch {
	case iv.Lo.Infinite && iv.Hi.Infinite:
		return ir.True
	case iv.Lo.Infinite:
		return upperRelation(attr, iv.Hi)
	case iv.Hi.Infinite:
		return lowerRelation(attr, iv.Lo)
	case compare(iv.Lo.Value, iv.Hi.Value) == 0:
		return attr.Eq(iv.Lo.Value)
	default:
		return ir.All(lowerRelation(attr, iv.Lo), upperRelation(attr, iv.Hi))
	}
}

func (iv Interval) String() string {
	var b strings.Builder
	if iv.Lo.Infinite || iv.Lo.Open {
		b.WriteByte('(')
	} else {
		b.WriteByte('[')
	}
	if iv.Lo.Infinite {
		b.WriteString("-inf")
	} else {
		b.WriteString(valueString(iv.Lo.Value))
	}
	b.WriteString(", ")
	if iv.Hi.Infinite {
		b.WriteString("+inf")
	} else {
		b.WriteString(valueString(iv.Hi.Value))
	}
	if iv.Hi.Infinite || iv.Hi.Open {
		b.WriteByte(')')
	} else {
		b.WriteByte(']')
	}
	return b.String()
}

func (s IntervalSet) String() string {
	if s.IsEmpty() {
		return "{}"
	}
	parts := make([]string, len(s.intervals))
	for i, iv := range s.intervals {
		parts[i] = iv.String()
	}
	return strings.Join(parts, " u ")
}

func lowerRelation(attr ir.Attribute, b Bound) ir.Expression {
	if b.Open {
		return attr.Gt(b.Value)
	}
	return attr.Ge(b.Value)
}

func upperRelation(attr ir.Attribute, b Bound) ir.Expression {
	if b.Open {
		return attr.Lt(b.Value)
	}
	return attr.Le(b.Value)
}

func (iv Interval) empty() bool {
	if iv.Lo.Infinite || iv.Hi.Infinite {
		return false
	}
	c := compare(iv.Lo.Value, iv.Hi.Value)
	return c > 0 || (c == 0 && (iv.Lo.Open || iv.Hi.Open))
}

func intersect(a, b Interval) Interval {
	lo := a.Lo
	if compareLower(b.Lo, a.Lo) > 0 {
		lo = b.Lo
	}
	hi := a.Hi
	if compareUpper(b.Hi, a.Hi) < 0 {
		hi = b.Hi
	}
	return Interval{Lo: lo, Hi: hi}
}

// normalize drops empty intervals, sorts by lower bound and merges
// overlapping or touching intervals.
func normalize(intervals []Interval) []Interval {
	var live []Interval
	for _, iv := range intervals {
		if !iv.empty() {
			live = append(live, iv)
		}
	}
	if len(live) == 0 {
		return nil
	}
	slices.SortFunc(live, func(a, b Interval) int { return compareLower(a.Lo, b.Lo) })

	out := []Interval{live[0]}
	for _, iv := range live[1:] {
		cur := &out[len(out)-1]
		if touches(cur.Hi, iv.Lo) {
			if compareUpper(iv.Hi, cur.Hi) > 0 {
				cur.Hi = iv.Hi
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// touches reports whether an interval ending at hi and one starting at lo
// (with lo not before the first interval's start) leave no gap.
func touches(hi, lo Bound) bool {
	if hi.Infinite || lo.Infinite {
		return true
	}
	c := compare(hi.Value, lo.Value)
	return c > 0 || (c == 0 && !(hi.Open && lo.Open))
}

// compareLower orders lower bounds: -∞ first, then by value, with a closed
// bound before an open one at equal value.
func compareLower(a, b Bound) int {
	switch {
	case a.Infinite && b.Infinite:
		return 0
	case a.Infinite:
		return -1
	case b.Infinite:
		return 1
	}
	if c := compare(a.Value, b.Value); c != 0 {
		return c
	}
	return boolCompare(a.Open, b.Open)
}

// compareUpper orders upper bounds: by value with an open bound before a
// closed one at equal value, then +∞ last.
func compareUpper(a, b Bound) int {
	switch {
	case a.Infinite && b.Infinite:
		return 0
	case a.Infinite:
		return 1
	case b.Infinite:
		return -1
	}
	if c := compare(a.Value, b.Value); c != 0 {
		return c
	}
	return boolCompare(b.Open, a.Open)
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func boundEqual(a, b Bound) bool {
	if a.Infinite || b.Infinite {
		return a.Infinite == b.Infinite
	}
	return a.Open == b.Open && compare(a.Value, b.Value) == 0
}

// compare orders two values already known to share a kind.
func compare(a, b ir.Value) int {
	c, _ := ir.Compare(a, b)
	return c
}

func valueString(v ir.Value) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
