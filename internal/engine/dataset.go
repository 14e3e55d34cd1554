package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/splitq/internal/ir"
)

// Row maps column names to values. A column without a value is null.
type Row map[string]ir.Value

// Dataset is an ordered list of rows sharing a column set.
//
// Datasets are treated as immutable once built: Refine, Union and Project
// return new datasets and may share rows with their inputs.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// NewDataset builds a dataset from rows. The column set is the sorted union
// of the row keys plus any columns given explicitly.
func NewDataset(rows []Row, columns ...string) *Dataset {
	cols := slices.Clone(columns)
	for _, r := range rows {
		for c := range r {
			cols = append(cols, c)
		}
	}
	slices.Sort(cols)
	return &Dataset{Columns: slices.Compact(cols), Rows: rows}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	_, found := slices.BinarySearch(d.Columns, name)
	return found
}

// ToDocument converts the dataset into plain maps and slices using the
// value layout of ir.ValueDocument. Null fields are omitted.
func (d *Dataset) ToDocument() map[string]any {
	cols := make([]any, len(d.Columns))
	for i, c := range d.Columns {
		cols[i] = c
	}
	rows := make([]any, len(d.Rows))
	for i, r := range d.Rows {
		doc := make(map[string]any, len(r))
		for k, v := range r {
			doc[k] = ir.ValueDocument(v)
		}
		rows[i] = doc
	}
	return map[string]any{"columns": cols, "rows": rows}
}

// DatasetFromDocument rebuilds a dataset from its document form.
func DatasetFromDocument(doc any) (*Dataset, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &EngineError{Code: ErrCodeBadRows, Message: fmt.Sprintf("expected dataset object, got %T", doc)}
	}
	rawCols, _ := obj["columns"].([]any)
	cols := make([]string, 0, len(rawCols))
	for _, c := range rawCols {
		name, ok := c.(string)
		if !ok {
			return nil, &EngineError{Code: ErrCodeBadRows, Message: fmt.Sprintf("column name must be a string, got %T", c)}
		}
		cols = append(cols, name)
	}
	rawRows, _ := obj["rows"].([]any)
	rows, err := rowsFromDocuments(rawRows)
	if err != nil {
		return nil, err
	}
	return NewDataset(rows, cols...), nil
}

// MarshalJSON encodes the rows as a JSON array of objects.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToDocument()["rows"])
}

// Engine loads raw rows and filters them in memory. The zero value is ready
// to use.
type Engine struct{}

// New returns an Engine.
func New() *Engine { return &Engine{} }

// Process parses raw data, a JSON array of objects, into a dataset. Numbers
// keep their integer or float kind and timestamp objects use the
// {"dt": true, "data": ISO, "naive": bool} layout.
func (e *Engine) Process(raw []byte) (*Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var docs []any
	if err := dec.Decode(&docs); err != nil {
		return nil, &EngineError{Code: ErrCodeBadRows, Message: "raw data is not a JSON array", Err: err}
	}
	rows, err := rowsFromDocuments(docs)
	if err != nil {
		return nil, err
	}
	return NewDataset(rows), nil
}

func rowsFromDocuments(docs []any) ([]Row, error) {
	rows := make([]Row, 0, len(docs))
	for i, doc := range docs {
		obj, ok := doc.(map[string]any)
		if !ok {
			return nil, &EngineError{Code: ErrCodeBadRows, Message: fmt.Sprintf("row %d is %T, not an object", i, doc)}
		}
		row := make(Row, len(obj))
		for k, raw := range obj {
			if raw == nil {
				continue
			}
			v, err := ir.ValueFromDocument(raw)
			if err != nil {
				return nil, &EngineError{Code: ErrCodeBadRows, Message: fmt.Sprintf("row %d", i), Column: k, Err: err}
			}
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Refine keeps the rows of d matching filter. A nil filter keeps every row.
// Every column the filter references must belong to the dataset.
func (e *Engine) Refine(d *Dataset, filter ir.Expression) (*Dataset, error) {
	if filter == nil {
		return d, nil
	}
	for _, a := range ir.Attributes(filter) {
		if len(d.Columns) > 0 && !d.HasColumn(a.Name) {
			return nil, newUnknownColumn(a.Name)
		}
	}
	out := &Dataset{Columns: d.Columns, Rows: make([]Row, 0, len(d.Rows))}
	for _, r := range d.Rows {
		ok, err := Evaluate(filter, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Rows = append(out.Rows, r)
		}
	}
	return out, nil
}

// Union concatenates datasets in order. The result carries every column of
// every input.
func (e *Engine) Union(datasets ...*Dataset) (*Dataset, error) {
	var cols []string
	var rows []Row
	for _, d := range datasets {
		if d == nil {
			continue
		}
		cols = append(cols, d.Columns...)
		rows = append(rows, d.Rows...)
	}
	if rows == nil {
		rows = []Row{}
	}
	return NewDataset(rows, cols...), nil
}

// Project keeps only the named columns. No names keeps every column.
func (e *Engine) Project(d *Dataset, columns []string) (*Dataset, error) {
	if len(columns) == 0 {
		return d, nil
	}
	for _, c := range columns {
		if len(d.Columns) > 0 && !d.HasColumn(c) {
			return nil, newUnknownColumn(c)
		}
	}
	rows := make([]Row, len(d.Rows))
	for i, r := range d.Rows {
		row := make(Row, len(columns))
		for _, c := range columns {
			if v, ok := r[c]; ok {
				row[c] = v
			}
		}
		rows[i] = row
	}
	return NewDataset(rows, columns...), nil
}
