package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
	"github.com/roach88/splitq/internal/resolver"
)

// Catalog is the set of datasets known to a deployment.
type Catalog struct {
	Datasets []Dataset

	// FileCount is the number of CUE files the catalog was loaded from.
	FileCount int
}

// Load compiles every dataset under the "dataset" field of the CUE package
// in dir. All dataset errors are collected and joined.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, errors.New("no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	c, err := FromValue(value)
	if c != nil {
		c.FileCount = len(cueFiles)
	}
	return c, err
}

// LoadString compiles a catalog from CUE source text.
func LoadString(src string) (*Catalog, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return FromValue(value)
}

// FromValue compiles the datasets of an already built CUE value.
func FromValue(value cue.Value) (*Catalog, error) {
	datasetsVal := value.LookupPath(cue.ParsePath("dataset"))
	if !datasetsVal.Exists() {
		return nil, &CompileError{Field: "dataset", Message: "no datasets defined", Pos: value.Pos()}
	}
	iter, err := datasetsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{}
	var errs []error
	for iter.Next() {
		ds, err := CompileDataset(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("dataset.%s: %w", iter.Selector().Unquoted(), err))
			continue
		}
		c.Datasets = append(c.Datasets, *ds)
	}
	slices.SortFunc(c.Datasets, func(a, b Dataset) int { return cmp.Compare(a.Name, b.Name) })
	return c, errors.Join(errs...)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Dataset looks up a dataset by table name.
func (c *Catalog) Dataset(name string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Validate checks every source filter against its dataset's columns.
func (c *Catalog) Validate() []CheckError {
	var errs []CheckError
	for _, d := range c.Datasets {
		for _, s := range d.Sources {
			for _, e := range c.CheckQuery(s.Available) {
				e.Path = fmt.Sprintf("dataset.%s.sources.%s", d.Name, s.Name)
				errs = append(errs, e)
			}
		}
	}
	return errs
}

// CheckQuery type-checks a query against the catalog.
func (c *Catalog) CheckQuery(q query.Query) []CheckError {
	d, ok := c.Dataset(q.Table)
	if !ok {
		return []CheckError{{Code: ErrUnknownTable, Message: fmt.Sprintf("unknown table %q", q.Table)}}
	}

	var errs []CheckError
	for _, col := range q.Select {
		if err := d.checkAttribute(col); err != nil {
			errs = append(errs, *err)
		}
	}
	if q.Where != nil {
		errs = append(errs, d.Check(q.Where)...)
	}
	return errs
}

// Sources builds a DecomposingSource for every source of the dataset, in
// priority order. fetch supplies the remote call for each source.
func (d Dataset) Sources(fetch func(SourceSpec) resolver.FetchFunc) []resolver.Source {
	out := make([]resolver.Source, 0, len(d.Sources))
	for _, s := range d.Sources {
		out = append(out, resolver.NewDecomposingSource(s.Name, s.Available, fetch(s)))
	}
	return out
}

// Check type-checks a filter expression against the dataset's columns.
// Every problem is reported.
func (d Dataset) Check(e ir.Expression) []CheckError {
	var errs []CheckError
	d.check(e, &errs)
	return errs
}

func (d Dataset) check(e ir.Expression, errs *[]CheckError) {
	switch n := e.(type) {
	case ir.Literal:
	case ir.Relation:
		d.checkValues(n.Attribute(), []ir.Value{n.Value()}, errs)
	case ir.In:
		d.checkValues(n.Attribute(), n.Values().Values(), errs)
	case ir.And:
		for _, c := range n.Clauses() {
			d.check(c, errs)
		}
	case ir.Or:
		for _, c := range n.Clauses() {
			d.check(c, errs)
		}
	case ir.Not:
		d.check(n.Clause(), errs)
	case ir.Attribute:
		*errs = append(*errs, CheckError{
			Code:      ErrNotAFilter,
			Attribute: n.String(),
			Message:   "an attribute is not a filter",
		})
	default:
		*errs = append(*errs, CheckError{Code: ErrNotAFilter, Message: fmt.Sprintf("unsupported node %T", e)})
	}
}

func (d Dataset) checkValues(a ir.Attribute, values []ir.Value, errs *[]CheckError) {
	if err := d.checkAttribute(a); err != nil {
		*errs = append(*errs, *err)
		return
	}
	col, _ := d.Column(a.Name)
	for _, v := range values {
		if !col.Type.Accepts(v.Kind()) {
			*errs = append(*errs, CheckError{
				Code:      ErrTypeMismatch,
				Attribute: a.String(),
				Message:   fmt.Sprintf("%s value %v for %s column", v.Kind(), v, col.Type),
			})
		}
	}
}

func (d Dataset) checkAttribute(a ir.Attribute) *CheckError {
	if a.Table != "" && a.Table != d.Name {
		return &CheckError{
			Code:      ErrWrongTable,
			Attribute: a.String(),
			Message:   fmt.Sprintf("column belongs to %q, not %q", a.Table, d.Name),
		}
	}
	if _, ok := d.Column(a.Name); !ok {
		return &CheckError{
			Code:      ErrUnknownColumn,
			Attribute: a.String(),
			Message:   fmt.Sprintf("no column %q in %s", a.Name, d.Name),
		}
	}
	return nil
}
