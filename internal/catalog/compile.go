package catalog

import (
	"cmp"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
)

// ColumnType is the value domain of a column.
type ColumnType string

const (
	TypeNumeric       ColumnType = "numeric"
	TypeString        ColumnType = "string"
	TypeDatetime      ColumnType = "datetime"
	TypeDatetimeNaive ColumnType = "datetime_naive"
)

// Accepts reports whether values of kind k belong to the column type.
func (t ColumnType) Accepts(k ir.Kind) bool {
	switch t {
	case TypeNumeric:
		return k == ir.KindNumeric
	case TypeString:
		return k == ir.KindString
	case TypeDatetime:
		return k == ir.KindDatetimeTZ
	case TypeDatetimeNaive:
		return k == ir.KindDatetimeNaive
	default:
		return false
	}
}

// Column is one typed column of a dataset.
type Column struct {
	Name string
	Type ColumnType
}

// SourceSpec declares a remote that serves one fixed query on a dataset.
// Lower Priority values are consulted first.
type SourceSpec struct {
	Name      string
	Priority  int
	Available query.Query
}

// Dataset is a table with typed columns and the sources that can serve it.
type Dataset struct {
	Name    string
	Columns []Column
	Sources []SourceSpec
}

// Column looks up a column by name.
func (d Dataset) Column(name string) (Column, bool) {
	i, ok := slices.BinarySearchFunc(d.Columns, name, func(c Column, n string) int {
		return cmp.Compare(c.Name, n)
	})
	if !ok {
		return Column{}, false
	}
	return d.Columns[i], true
}

// CompileDataset parses a CUE value into a Dataset.
//
// The value is the dataset struct itself, labelled with the table name:
//
//	dataset: readings: {
//		columns: {
//			site:  string
//			value: number
//			at:    "datetime"
//		}
//		sources: archive: {
//			priority: 1
//			where: {expr: "ge", attribute: {expr: "attr", name: "value"}, value: 0}
//		}
//	}
//
// Columns are declared either by CUE kind (string, int, number, float) or by
// a type name string. Source filters use the JSON document form of
// expressions.
func CompileDataset(v cue.Value) (*Dataset, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	ds := &Dataset{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		if sel := labels[len(labels)-1]; sel.LabelType() == cue.StringLabel {
			ds.Name = sel.Unquoted()
		} else {
			ds.Name = sel.String()
		}
	}

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, &CompileError{Field: "columns", Message: "columns are required", Pos: v.Pos()}
	}
	iter, err := columnsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		colType, err := extractColumnType(iter.Value())
		if err != nil {
			return nil, err
		}
		ds.Columns = append(ds.Columns, Column{Name: iter.Selector().Unquoted(), Type: colType})
	}
	if len(ds.Columns) == 0 {
		return nil, &CompileError{Field: "columns", Message: "at least one column is required", Pos: columnsVal.Pos()}
	}
	slices.SortFunc(ds.Columns, func(a, b Column) int { return cmp.Compare(a.Name, b.Name) })

	ds.Sources, err = parseSources(ds.Name, v)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func parseSources(table string, v cue.Value) ([]SourceSpec, error) {
	var sources []SourceSpec

	sourcesVal := v.LookupPath(cue.ParsePath("sources"))
	if !sourcesVal.Exists() {
		return sources, nil
	}
	iter, err := sourcesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Selector().Unquoted()
		sv := iter.Value()
		spec := SourceSpec{Name: name}

		if p := sv.LookupPath(cue.ParsePath("priority")); p.Exists() {
			n, err := p.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Priority = int(n)
		}

		var columns []ir.Attribute
		if sel := sv.LookupPath(cue.ParsePath("select")); sel.Exists() {
			list, err := sel.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for list.Next() {
				col, err := list.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				columns = append(columns, ir.Attr(col))
			}
		}

		var where ir.Expression
		if w := sv.LookupPath(cue.ParsePath("where")); w.Exists() {
			data, err := w.MarshalJSON()
			if err != nil {
				return nil, formatCUEError(err)
			}
			where, err = ir.Unmarshal(data)
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("sources.%s.where", name),
					Message: err.Error(),
					Pos:     w.Pos(),
				}
			}
		}

		spec.Available = query.New(table, columns, where)
		sources = append(sources, spec)
	}

	slices.SortStableFunc(sources, func(a, b SourceSpec) int { return cmp.Compare(a.Priority, b.Priority) })
	return sources, nil
}

// extractColumnType converts a CUE column declaration to a ColumnType.
func extractColumnType(v cue.Value) (ColumnType, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		name, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		switch t := ColumnType(name); t {
		case TypeNumeric, TypeString, TypeDatetime, TypeDatetimeNaive:
			return t, nil
		}
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unknown column type %q", name),
			Pos:     v.Pos(),
		}
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return TypeString, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		return TypeNumeric, nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported column kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
