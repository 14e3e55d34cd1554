package ir

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Value is a sealed interface for the ordered scalars that may appear in a
// relation or membership. Only Int, Float, String and Time implement it.
type Value interface {
	value() // Sealed
	Kind() Kind
}

// Kind classifies values into mutually incomparable domains.
// Values of different kinds are never ordered against each other.
type Kind int

const (
	KindNumeric Kind = iota
	KindString
	KindDatetimeNaive
	KindDatetimeTZ
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindString:
		return "string"
	case KindDatetimeNaive:
		return "datetime-naive"
	case KindDatetimeTZ:
		return "datetime-tz"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Int is an integer value.
type Int int64

func (Int) value() {}
func (Int) Kind() Kind { return KindNumeric }
func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }

// Float is a finite floating point value. NaN and infinities are rejected
// by ValueOf and by the relation builders.
type Float float64

func (Float) value() {}
func (Float) Kind() Kind { return KindNumeric }
func (v Float) String() string {
	return strconv.FormatFloat(float64(v), 'g', -1, 64)
}

// String is a string value. Strings are NFC-normalized in canonical keys.
type String string

func (String) value() {}
func (String) Kind() Kind { return KindString }
func (v String) String() string { return strconv.Quote(string(v)) }

// Time is a timestamp that remembers whether it was timezone-aware.
// Aware times are stored in UTC; naive times keep their wall clock reading.
type Time struct {
	t     time.Time
	naive bool
}

func (Time) value() {}

func (v Time) Kind() Kind {
	if v.naive {
		return KindDatetimeNaive
	}
	return KindDatetimeTZ
}

// NewTime creates a timezone-aware timestamp.
func NewTime(t time.Time) Time {
	return Time{t: t.UTC()}
}

// NaiveTime creates a timezone-naive timestamp from the wall clock reading
// of t. The location of t is discarded.
func NaiveTime(t time.Time) Time {
	return Time{
		t:     time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC),
		naive: true,
	}
}

// Time returns the underlying time. Naive values are reported in UTC.
func (v Time) Time() time.Time { return v.t }

// Naive reports whether the timestamp carries no timezone.
func (v Time) Naive() bool { return v.naive }

const naiveLayout = "2006-01-02T15:04:05.999999999"

// ISO returns the ISO-8601 form used in the serialized representation.
func (v Time) ISO() string {
	if v.naive {
		return v.t.Format(naiveLayout)
	}
	return v.t.Format(time.RFC3339Nano)
}

func (v Time) String() string { return v.ISO() }

// ParseTime parses an ISO-8601 timestamp. When naive is true the input must
// not carry an offset.
func ParseTime(s string, naive bool) (Time, error) {
	if naive {
		t, err := time.Parse("2006-01-02T15:04:05", s)
		if err != nil {
			return Time{}, fmt.Errorf("parse naive timestamp: %w", err)
		}
		return NaiveTime(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return NewTime(t), nil
}

// ValueOf converts a Go value to a Value. Accepts all integer and float
// types, strings, time.Time (as an aware timestamp) and existing Values.
// Returns a *TypeError for anything that cannot be ordered and hashed.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, &TypeError{Code: CodeNonOrderable, Value: v}
	case Int, String, Time:
		return val.(Value), nil
	case Float:
		return checkFloat(float64(val))
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return uintValue(val)
	case float32:
		return checkFloat(float64(val))
	case float64:
		return checkFloat(val)
	case string:
		return String(val), nil
	case time.Time:
		return NewTime(val), nil
	default:
		return nil, &TypeError{Code: CodeUnsupportedValue, Value: v}
	}
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return checkFloat(float64(u))
	}
	return Int(int64(u)), nil
}

func checkFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &TypeError{Code: CodeNonOrderable, Value: f}
	}
	return Float(f), nil
}

// mustValue validates a Value handed to one of the typed builders.
func mustValue(v Value) Value {
	checked, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return checked
}

// Compare orders two values of the same kind. ok is false when the values
// belong to different kinds and cannot be compared.
func Compare(a, b Value) (c int, ok bool) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			return cmp.Compare(x, y), true
		case Float:
			return compareIntFloat(int64(x), float64(y)), true
		}
	case Float:
		switch y := b.(type) {
		case Int:
			return -compareIntFloat(int64(y), float64(x)), true
		case Float:
			return cmp.Compare(x, y), true
		}
	case String:
		if y, isString := b.(String); isString {
			return strings.Compare(string(x), string(y)), true
		}
	case Time:
		if y, isTime := b.(Time); isTime && x.naive == y.naive {
			return x.t.Compare(y.t), true
		}
	}
	return 0, false
}

func compareIntFloat(i int64, f float64) int {
	if f >= -(1<<63) && f < (1<<63) && f == math.Trunc(f) {
		return cmp.Compare(i, int64(f))
	}
	return cmp.Compare(float64(i), f)
}

// ValueEqual reports whether two values are the same point in their domain.
// Int(1) and Float(1) are equal.
func ValueEqual(a, b Value) bool {
	return valueKey(a) == valueKey(b)
}

// compareValues is a total order over all values: by kind first, then by
// value. Used to give value sets a deterministic order.
func compareValues(a, b Value) int {
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}
	if c, ok := Compare(a, b); ok && c != 0 {
		return c
	}
	return strings.Compare(valueKey(a), valueKey(b))
}

// valueKey returns the canonical JSON encoding of a value. Integral floats
// encode as integers so that Float(2) and Int(2) share one identity.
func valueKey(v Value) string {
	switch val := v.(type) {
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		f := float64(val)
		if f == math.Trunc(f) && f >= -(1<<63) && f < (1<<63) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case String:
		return canonicalString(string(val))
	case Time:
		return `{"data":` + canonicalString(val.ISO()) + `,"dt":true,"naive":` + strconv.FormatBool(val.naive) + `}`
	default:
		panic(fmt.Sprintf("ir: unhandled value %T", v))
	}
}

// ValueSet is an immutable, duplicate-free set of values kept in canonical
// order. The zero ValueSet is empty.
type ValueSet struct {
	values []Value
}

// NewValueSet builds a set from values, dropping duplicates.
func NewValueSet(values ...Value) ValueSet {
	if len(values) == 0 {
		return ValueSet{}
	}
	sorted := slices.Clone(values)
	slices.SortFunc(sorted, compareValues)
	sorted = slices.CompactFunc(sorted, ValueEqual)
	return ValueSet{values: sorted}
}

// Values returns a copy of the set members in canonical order.
func (s ValueSet) Values() []Value {
	return slices.Clone(s.values)
}

// Len returns the number of members.
func (s ValueSet) Len() int { return len(s.values) }

// Contains reports whether v is a member.
func (s ValueSet) Contains(v Value) bool {
	_, found := slices.BinarySearchFunc(s.values, v, compareValues)
	return found
}

// Union returns s ∪ other.
func (s ValueSet) Union(other ValueSet) ValueSet {
	return NewValueSet(append(slices.Clone(s.values), other.values...)...)
}

// Intersect returns s ∩ other.
func (s ValueSet) Intersect(other ValueSet) ValueSet {
	return s.Filter(other.Contains)
}

// Difference returns s − other.
func (s ValueSet) Difference(other ValueSet) ValueSet {
	return s.Filter(func(v Value) bool { return !other.Contains(v) })
}

// Filter returns the members for which keep returns true.
func (s ValueSet) Filter(keep func(Value) bool) ValueSet {
	var out []Value
	for _, v := range s.values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return ValueSet{values: out}
}

// Equal reports whether both sets hold the same members.
func (s ValueSet) Equal(other ValueSet) bool {
	return slices.EqualFunc(s.values, other.values, ValueEqual)
}

// Kinds returns the distinct kinds present in the set.
func (s ValueSet) Kinds() []Kind {
	var kinds []Kind
	for _, v := range s.values {
		if !slices.Contains(kinds, v.Kind()) {
			kinds = append(kinds, v.Kind())
		}
	}
	return kinds
}
