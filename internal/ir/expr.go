package ir

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Expression is a sealed interface for filter expression nodes.
// Only Literal, Attribute, Relation, In, And, Or and Not implement it.
//
// Key returns the canonical JSON encoding of the node. It is the identity of
// the expression: two expressions are equal iff their keys are equal.
type Expression interface {
	expressionNode() // Sealed
	Key() string
	String() string
}

// Literal is the boolean constant True or False.
type Literal bool

const (
	True  Literal = true
	False Literal = false
)

func (Literal) expressionNode() {}

func (l Literal) Key() string {
	if l {
		return "true"
	}
	return "false"
}

func (l Literal) String() string {
	if l {
		return "True"
	}
	return "False"
}

// Attribute names a data field. Table is empty for unqualified attributes.
// Attributes are the payload of relations, not boolean filters themselves.
type Attribute struct {
	Table string
	Name  string
}

// Attr creates an unqualified attribute.
func Attr(name string) Attribute {
	return Attribute{Name: name}
}

// Col creates a table-qualified attribute (a column).
func Col(table, name string) Attribute {
	return Attribute{Table: table, Name: name}
}

func (Attribute) expressionNode() {}

func (a Attribute) Key() string {
	if a.Table == "" {
		return `{"expr":"attr","name":` + canonicalString(a.Name) + `}`
	}
	return `{"expr":"attr","name":` + canonicalString(a.Name) + `,"table":` + canonicalString(a.Table) + `}`
}

func (a Attribute) String() string {
	if a.Table == "" {
		return a.Name
	}
	return a.Table + "." + a.Name
}

// normalized returns the attribute with NFC-normalized components, so that
// map lookups agree with canonical key equality.
func (a Attribute) normalized() Attribute {
	return Attribute{Table: norm.NFC.String(a.Table), Name: norm.NFC.String(a.Name)}
}

// CompareAttributes orders attributes by table then name.
func CompareAttributes(a, b Attribute) int {
	if c := strings.Compare(a.Table, b.Table); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// Op is the comparison performed by a Relation.
type Op int

const (
	OpEq Op = iota
	OpLe
	OpLt
	OpGe
	OpGt
)

var opNames = [...]string{OpEq: "eq", OpLe: "le", OpLt: "lt", OpGe: "ge", OpGt: "gt"}
var opSymbols = [...]string{OpEq: "==", OpLe: "<=", OpLt: "<", OpGe: ">=", OpGt: ">"}

// String returns the serialized discriminator ("eq", "le", ...).
func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(op))
	}
	return opNames[op]
}

// Symbol returns the infix comparison symbol.
func (op Op) Symbol() string {
	return opSymbols[op]
}

// IsLower reports whether op bounds an attribute from below (Ge, Gt).
func (op Op) IsLower() bool { return op == OpGe || op == OpGt }

// IsUpper reports whether op bounds an attribute from above (Le, Lt).
func (op Op) IsUpper() bool { return op == OpLe || op == OpLt }

// IsStrict reports whether op excludes its endpoint (Lt, Gt).
func (op Op) IsStrict() bool { return op == OpLt || op == OpGt }

// Negated returns the complementary bound: Not(Ge) is Lt and so on.
// Eq has no single-relation complement and is returned unchanged.
func (op Op) Negated() Op {
	switch op {
	case OpLe:
		return OpGt
	case OpLt:
		return OpGe
	case OpGe:
		return OpLt
	case OpGt:
		return OpLe
	default:
		return op
	}
}

// Satisfied reports whether value op bound holds. ok is false when the two
// values are not comparable.
func (op Op) Satisfied(value, bound Value) (holds, ok bool) {
	c, ok := Compare(value, bound)
	if !ok {
		return false, false
	}
	switch op {
	case OpEq:
		return c == 0, true
	case OpLe:
		return c <= 0, true
	case OpLt:
		return c < 0, true
	case OpGe:
		return c >= 0, true
	case OpGt:
		return c > 0, true
	default:
		return false, false
	}
}

func parseOp(s string) (Op, bool) {
	i := slices.Index(opNames[:], s)
	return Op(i), i >= 0
}

// Relation compares an attribute with a value: Eq, Le, Lt, Ge or Gt.
type Relation struct {
	op    Op
	attr  Attribute
	value Value
	key   string
}

// NewRelation validates value and builds a relation.
// Returns a *TypeError if value is not an ordered scalar.
func NewRelation(op Op, attr Attribute, value any) (Relation, error) {
	v, err := ValueOf(value)
	if err != nil {
		return Relation{}, fmt.Errorf("%s %s: %w", attr, op.Symbol(), err)
	}
	if op < OpEq || op > OpGt {
		return Relation{}, fmt.Errorf("unknown relation op %d", int(op))
	}
	return newRelation(op, attr, v), nil
}

func newRelation(op Op, attr Attribute, v Value) Relation {
	attr = attr.normalized()
	return Relation{
		op:    op,
		attr:  attr,
		value: v,
		key:   `{"attribute":` + attr.Key() + `,"expr":"` + op.String() + `","value":` + valueKey(v) + `}`,
	}
}

func (Relation) expressionNode() {}

func (r Relation) Key() string          { return r.key }
func (r Relation) Op() Op               { return r.op }
func (r Relation) Attribute() Attribute { return r.attr }
func (r Relation) Value() Value         { return r.value }

func (r Relation) String() string {
	return fmt.Sprintf("%s %s %s", r.attr, r.op.Symbol(), formatValue(r.value))
}

// WithOp returns the same attribute and value under a different comparison.
func (r Relation) WithOp(op Op) Relation {
	return newRelation(op, r.attr, r.value)
}

// In tests membership of an attribute in a finite value set.
// An empty set is legal and matches nothing.
type In struct {
	attr   Attribute
	values ValueSet
	key    string
}

// NewIn validates values and builds a membership test.
func NewIn(attr Attribute, values ...any) (In, error) {
	vs := make([]Value, 0, len(values))
	for _, raw := range values {
		v, err := ValueOf(raw)
		if err != nil {
			return In{}, fmt.Errorf("%s in: %w", attr, err)
		}
		vs = append(vs, v)
	}
	return newIn(attr, NewValueSet(vs...)), nil
}

func newIn(attr Attribute, values ValueSet) In {
	attr = attr.normalized()
	var b strings.Builder
	b.WriteString(`{"attribute":`)
	b.WriteString(attr.Key())
	b.WriteString(`,"expr":"in","valueset":[`)
	for i, v := range values.values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(valueKey(v))
	}
	b.WriteString(`]}`)
	return In{attr: attr, values: values, key: b.String()}
}

// InSet builds a membership test from an existing value set.
func InSet(attr Attribute, values ValueSet) In {
	return newIn(attr, values)
}

func (In) expressionNode() {}

func (m In) Key() string          { return m.key }
func (m In) Attribute() Attribute { return m.attr }
func (m In) Values() ValueSet     { return m.values }

func (m In) String() string {
	parts := make([]string, len(m.values.values))
	for i, v := range m.values.values {
		parts[i] = formatValue(v)
	}
	return fmt.Sprintf("%s in {%s}", m.attr, strings.Join(parts, ", "))
}

// compound is the shared representation of And and Or: a sorted,
// duplicate-free list of clauses with a precomputed key.
type compound struct {
	clauses []Expression
	key     string
}

func newCompound(kind string, clauses []Expression) (compound, error) {
	if len(clauses) == 0 {
		return compound{}, ErrEmptyCompound
	}
	for _, c := range clauses {
		if c == nil {
			return compound{}, ErrNilExpression
		}
	}
	sorted := slices.Clone(clauses)
	slices.SortFunc(sorted, func(a, b Expression) int { return strings.Compare(a.Key(), b.Key()) })
	sorted = slices.CompactFunc(sorted, func(a, b Expression) bool { return a.Key() == b.Key() })

	var b strings.Builder
	b.WriteString(`{"clauses":[`)
	for i, c := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.Key())
	}
	b.WriteString(`],"expr":"`)
	b.WriteString(kind)
	b.WriteString(`"}`)
	return compound{clauses: sorted, key: b.String()}, nil
}

func (c compound) join(sep string) string {
	parts := make([]string, len(c.clauses))
	for i, cl := range c.clauses {
		parts[i] = cl.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// And is a conjunction over a set of clauses.
type And struct{ compound }

// NewAnd builds a conjunction. Duplicate clauses collapse; order is
// irrelevant. Returns ErrEmptyCompound when no clauses are given.
func NewAnd(clauses ...Expression) (And, error) {
	c, err := newCompound("and", clauses)
	if err != nil {
		return And{}, err
	}
	return And{c}, nil
}

func (And) expressionNode() {}

func (a And) Key() string    { return a.key }
func (a And) String() string { return a.join(" and ") }

// Clauses returns a copy of the conjuncts in canonical order.
func (a And) Clauses() []Expression { return slices.Clone(a.clauses) }

// Len returns the number of distinct conjuncts.
func (a And) Len() int { return len(a.clauses) }

// Or is a disjunction over a set of clauses.
type Or struct{ compound }

// NewOr builds a disjunction. Duplicate clauses collapse; order is
// irrelevant. Returns ErrEmptyCompound when no clauses are given.
func NewOr(clauses ...Expression) (Or, error) {
	c, err := newCompound("or", clauses)
	if err != nil {
		return Or{}, err
	}
	return Or{c}, nil
}

func (Or) expressionNode() {}

func (o Or) Key() string    { return o.key }
func (o Or) String() string { return o.join(" or ") }

// Clauses returns a copy of the disjuncts in canonical order.
func (o Or) Clauses() []Expression { return slices.Clone(o.clauses) }

// Len returns the number of distinct disjuncts.
func (o Or) Len() int { return len(o.clauses) }

// Not negates a single clause.
type Not struct {
	clause Expression
	key    string
}

// NewNot wraps clause in a negation. clause must not be nil.
func NewNot(clause Expression) Not {
	if clause == nil {
		panic(ErrNilExpression)
	}
	return Not{clause: clause, key: `{"clause":` + clause.Key() + `,"expr":"not"}`}
}

func (Not) expressionNode() {}

func (n Not) Key() string        { return n.key }
func (n Not) Clause() Expression { return n.clause }
func (n Not) String() string     { return "not " + parenthesize(n.clause) }

func parenthesize(e Expression) string {
	switch e.(type) {
	case And, Or:
		return e.String()
	default:
		return "(" + e.String() + ")"
	}
}

func formatValue(v Value) string {
	switch val := v.(type) {
	case String:
		return val.String()
	case Time:
		return "'" + val.ISO() + "'"
	default:
		return fmt.Sprint(v)
	}
}

// Equal reports structural equality. Two nil expressions are equal.
func Equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

// mustAnd and mustOr build compounds from clause lists known to be non-empty.
func mustAnd(clauses []Expression) And {
	a, err := NewAnd(clauses...)
	if err != nil {
		panic(err)
	}
	return a
}

func mustOr(clauses []Expression) Or {
	o, err := NewOr(clauses...)
	if err != nil {
		panic(err)
	}
	return o
}
