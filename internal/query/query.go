package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/splitq/internal/ir"
)

// Query is a request for rows of one table.
//
// Select lists the wanted columns in canonical order without duplicates; an
// empty Select asks for every column. A nil Where asks for every row.
type Query struct {
	Table  string
	Select []ir.Attribute
	Where  ir.Expression
}

// New builds a query, sorting and deduplicating the selected columns.
func New(table string, columns []ir.Attribute, where ir.Expression) Query {
	return Query{Table: table, Select: normalizeColumns(columns), Where: where}
}

func normalizeColumns(columns []ir.Attribute) []ir.Attribute {
	if len(columns) == 0 {
		return nil
	}
	out := slices.Clone(columns)
	slices.SortFunc(out, ir.CompareAttributes)
	return slices.Compact(out)
}

// AllColumns reports whether the query selects every column.
func (q Query) AllColumns() bool { return len(q.Select) == 0 }

// Columns returns the selected columns together with every attribute the
// filter references.
func (q Query) Columns() []ir.Attribute {
	cols := slices.Clone(q.Select)
	if q.Where != nil {
		cols = append(cols, ir.Attributes(q.Where)...)
	}
	return normalizeColumns(cols)
}

// Tables returns the query's table plus every table named by a qualified
// column.
func (q Query) Tables() []string {
	tables := []string{q.Table}
	for _, c := range q.Columns() {
		if c.Table != "" {
			tables = append(tables, c.Table)
		}
	}
	slices.Sort(tables)
	return slices.Compact(tables)
}

// Key returns the canonical JSON form of the query. Equal queries have equal
// keys; the key is stable across processes.
func (q Query) Key() string {
	data, err := ir.MarshalCanonical(ToDocument(q))
	if err != nil {
		// Documents built from valid queries are always encodable.
		panic(fmt.Sprintf("query: canonical key: %v", err))
	}
	return string(data)
}

// Digest returns the content address of the query.
func (q Query) Digest() string {
	return ir.ContentDigest(ir.DomainQuery, []byte(q.Key()))
}

// Equal reports whether two queries ask for the same data.
func Equal(a, b Query) bool { return a.Key() == b.Key() }

func (q Query) String() string {
	var b strings.Builder
	b.WriteString("select ")
	if q.AllColumns() {
		b.WriteString("*")
	} else {
		names := make([]string, len(q.Select))
		for i, c := range q.Select {
			names[i] = c.String()
		}
		b.WriteString(strings.Join(names, ", "))
	}
	b.WriteString(" from ")
	b.WriteString(q.Table)
	if q.Where != nil {
		b.WriteString(" where ")
		b.WriteString(q.Where.String())
	}
	return b.String()
}

// ToDocument converts q into plain maps and slices. The "where" member is
// omitted for an unfiltered query.
func ToDocument(q Query) any {
	sel := make([]any, len(q.Select))
	for i, c := range q.Select {
		sel[i] = ir.ToDocument(c)
	}
	doc := map[string]any{"table": q.Table, "select": sel}
	if q.Where != nil {
		doc["where"] = ir.ToDocument(q.Where)
	}
	return doc
}

// FromDocument rebuilds a query from its document form.
func FromDocument(doc any) (Query, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		if m, isAnyMap := doc.(map[any]any); isAnyMap {
			obj = make(map[string]any, len(m))
			for k, v := range m {
				ks, isString := k.(string)
				if !isString {
					return Query{}, &ir.DecodeError{Path: "$", Message: "non-string object key"}
				}
				obj[ks] = v
			}
		} else {
			return Query{}, &ir.DecodeError{Path: "$", Message: fmt.Sprintf("expected object, got %T", doc)}
		}
	}

	table, ok := obj["table"].(string)
	if !ok {
		return Query{}, &ir.DecodeError{Path: "$.table", Message: "expected string"}
	}

	var columns []ir.Attribute
	if raw, present := obj["select"]; present && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return Query{}, &ir.DecodeError{Path: "$.select", Message: "expected list"}
		}
		for i, item := range list {
			if name, ok := item.(string); ok {
				columns = append(columns, ir.Attr(name))
				continue
			}
			e, err := ir.FromDocument(item)
			if err != nil {
				return Query{}, fmt.Errorf("decode $.select[%d]: %w", i, err)
			}
			attr, ok := e.(ir.Attribute)
			if !ok {
				return Query{}, &ir.DecodeError{Path: fmt.Sprintf("$.select[%d]", i), Message: "expected attr"}
			}
			columns = append(columns, attr)
		}
	}

	var where ir.Expression
	if raw, present := obj["where"]; present && raw != nil {
		e, err := ir.FromDocument(raw)
		if err != nil {
			return Query{}, fmt.Errorf("decode $.where: %w", err)
		}
		if _, isAttr := e.(ir.Attribute); isAttr {
			return Query{}, &ir.DecodeError{Path: "$.where", Message: "attribute is not a filter"}
		}
		where = e
	}
	return New(table, columns, where), nil
}

// Marshal returns the canonical JSON form of q.
func Marshal(q Query) []byte { return []byte(q.Key()) }

// Unmarshal parses a JSON query.
func Unmarshal(data []byte) (Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Query{}, &ir.DecodeError{Message: err.Error()}
	}
	return FromDocument(doc)
}
