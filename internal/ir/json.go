package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Marshal returns the serialized form of e. The serialized form is the
// canonical key, so Unmarshal(Marshal(e)) is Equal to e.
func Marshal(e Expression) []byte {
	return []byte(e.Key())
}

// MarshalJSON methods let expressions nested in documents encode with
// encoding/json. The output is the canonical key.
func (l Literal) MarshalJSON() ([]byte, error)   { return Marshal(l), nil }
func (a Attribute) MarshalJSON() ([]byte, error) { return Marshal(a), nil }
func (r Relation) MarshalJSON() ([]byte, error)  { return Marshal(r), nil }
func (m In) MarshalJSON() ([]byte, error)        { return Marshal(m), nil }
func (a And) MarshalJSON() ([]byte, error)       { return Marshal(a), nil }
func (o Or) MarshalJSON() ([]byte, error)        { return Marshal(o), nil }
func (n Not) MarshalJSON() ([]byte, error)       { return Marshal(n), nil }

// Unmarshal parses a serialized expression. Objects carry an "expr"
// discriminator (attr, eq, le, lt, ge, gt, in, and, or, not); JSON booleans
// decode to literals. Timestamps are {"dt": true, "data": ISO, "naive": bool}.
func Unmarshal(data []byte) (Expression, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &DecodeError{Message: err.Error()}
	}
	return FromDocument(doc)
}

// ToDocument converts e into plain maps, slices and scalars following the
// serialized layout. Used by encoders other than JSON (msgpack).
func ToDocument(e Expression) any {
	switch x := e.(type) {
	case Literal:
		return bool(x)
	case Attribute:
		doc := map[string]any{"expr": "attr", "name": x.Name}
		if x.Table != "" {
			doc["table"] = x.Table
		}
		return doc
	case Relation:
		return map[string]any{
			"expr":      x.op.String(),
			"attribute": ToDocument(x.attr),
			"value":     ValueDocument(x.value),
		}
	case In:
		values := make([]any, len(x.values.values))
		for i, v := range x.values.values {
			values[i] = ValueDocument(v)
		}
		return map[string]any{
			"expr":      "in",
			"attribute": ToDocument(x.attr),
			"valueset":  values,
		}
	case And:
		return map[string]any{"expr": "and", "clauses": documents(x.clauses)}
	case Or:
		return map[string]any{"expr": "or", "clauses": documents(x.clauses)}
	case Not:
		return map[string]any{"expr": "not", "clause": ToDocument(x.clause)}
	default:
		panic(fmt.Sprintf("ir: unhandled expression %T", e))
	}
}

func documents(clauses []Expression) []any {
	out := make([]any, len(clauses))
	for i, c := range clauses {
		out[i] = ToDocument(c)
	}
	return out
}

// ValueDocument converts a value to its document form.
func ValueDocument(v Value) any {
	switch val := v.(type) {
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Time:
		return map[string]any{"dt": true, "data": val.ISO(), "naive": val.naive}
	default:
		panic(fmt.Sprintf("ir: unhandled value %T", v))
	}
}

// FromDocument rebuilds an expression from its document form.
func FromDocument(doc any) (Expression, error) {
	return fromDocument(doc, "$")
}

func fromDocument(doc any, path string) (Expression, error) {
	if b, ok := doc.(bool); ok {
		return Literal(b), nil
	}
	obj, ok := asObject(doc)
	if !ok {
		return nil, &DecodeError{Path: path, Message: fmt.Sprintf("expected object or boolean, got %T", doc)}
	}
	kind, _ := obj["expr"].(string)
	switch kind {
	case "attr":
		return attributeFromDocument(obj, path)
	case "eq", "le", "lt", "ge", "gt":
		op, _ := parseOp(kind)
		attr, err := attributeField(obj, path)
		if err != nil {
			return nil, err
		}
		raw, present := obj["value"]
		if !present {
			return nil, &DecodeError{Path: path + ".value", Message: "missing"}
		}
		v, err := ValueFromDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s.value: %w", path, err)
		}
		return newRelation(op, attr, v), nil
	case "in":
		attr, err := attributeField(obj, path)
		if err != nil {
			return nil, err
		}
		raw, ok := asList(obj["valueset"])
		if !ok {
			return nil, &DecodeError{Path: path + ".valueset", Message: "expected list"}
		}
		values := make([]Value, 0, len(raw))
		for i, item := range raw {
			v, err := ValueFromDocument(item)
			if err != nil {
				return nil, fmt.Errorf("decode %s.valueset[%d]: %w", path, i, err)
			}
			values = append(values, v)
		}
		return newIn(attr, NewValueSet(values...)), nil
	case "and", "or":
		raw, ok := asList(obj["clauses"])
		if !ok {
			return nil, &DecodeError{Path: path + ".clauses", Message: "expected list"}
		}
		clauses := make([]Expression, 0, len(raw))
		for i, item := range raw {
			c, err := fromDocument(item, fmt.Sprintf("%s.clauses[%d]", path, i))
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		}
		if kind == "and" {
			a, err := NewAnd(clauses...)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
			return a, nil
		}
		o, err := NewOr(clauses...)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return o, nil
	case "not":
		raw, present := obj["clause"]
		if !present {
			return nil, &DecodeError{Path: path + ".clause", Message: "missing"}
		}
		c, err := fromDocument(raw, path+".clause")
		if err != nil {
			return nil, err
		}
		return NewNot(c), nil
	default:
		return nil, &DecodeError{Path: path + ".expr", Message: fmt.Sprintf("unknown discriminator %q", kind)}
	}
}

// attributeField reads the "attribute" member of a relation. A bare string
// is accepted as shorthand for an unqualified attribute.
func attributeField(obj map[string]any, path string) (Attribute, error) {
	raw, present := obj["attribute"]
	if !present {
		return Attribute{}, &DecodeError{Path: path + ".attribute", Message: "missing"}
	}
	if name, ok := raw.(string); ok {
		return Attr(name), nil
	}
	attrObj, ok := asObject(raw)
	if !ok {
		return Attribute{}, &DecodeError{Path: path + ".attribute", Message: fmt.Sprintf("expected attr object, got %T", raw)}
	}
	if kind, _ := attrObj["expr"].(string); kind != "attr" {
		return Attribute{}, &DecodeError{Path: path + ".attribute", Message: fmt.Sprintf("expected attr, got %q", kind)}
	}
	return attributeFromDocument(attrObj, path+".attribute")
}

func attributeFromDocument(obj map[string]any, path string) (Attribute, error) {
	name, ok := obj["name"].(string)
	if !ok {
		return Attribute{}, &DecodeError{Path: path + ".name", Message: "expected string"}
	}
	attr := Attr(name)
	if raw, present := obj["table"]; present {
		table, ok := raw.(string)
		if !ok {
			return Attribute{}, &DecodeError{Path: path + ".table", Message: "expected string"}
		}
		attr.Table = table
	}
	return attr.normalized(), nil
}

// ValueFromDocument converts a document scalar (or timestamp object) to a
// Value. Numbers may arrive as json.Number, any Go integer type or float.
func ValueFromDocument(doc any) (Value, error) {
	switch val := doc.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, &DecodeError{Message: fmt.Sprintf("bad number %q", val.String())}
		}
		return checkFloat(f)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return Int(int64(val)), nil
		}
		return checkFloat(val)
	case float32:
		return ValueFromDocument(float64(val))
	}
	if obj, ok := asObject(doc); ok {
		if dt, _ := obj["dt"].(bool); !dt {
			return nil, &DecodeError{Message: "object value is not a timestamp"}
		}
		data, ok := obj["data"].(string)
		if !ok {
			return nil, &DecodeError{Message: "timestamp data must be a string"}
		}
		naive, _ := obj["naive"].(bool)
		return ParseTime(data, naive)
	}
	return ValueOf(doc)
}

// asObject accepts both map[string]any (encoding/json) and
// map[any]any (some msgpack decoders) object representations.
func asObject(doc any) (map[string]any, bool) {
	switch m := doc.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func asList(doc any) ([]any, bool) {
	list, ok := doc.([]any)
	return list, ok
}
