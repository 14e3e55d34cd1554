package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
	"github.com/roach88/splitq/internal/resolver"
)

func loadReadings(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load("testdata/readings")
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	c := loadReadings(t)
	assert.Equal(t, 2, c.FileCount)
	require.Len(t, c.Datasets, 2)

	readings, ok := c.Dataset("readings")
	require.True(t, ok)
	assert.Equal(t, []Column{
		{Name: "at", Type: TypeDatetime},
		{Name: "site", Type: TypeString},
		{Name: "value", Type: TypeNumeric},
	}, readings.Columns)

	require.Len(t, readings.Sources, 2)
	assert.Equal(t, "live", readings.Sources[0].Name, "sources are ordered by priority")
	assert.Equal(t, "archive", readings.Sources[1].Name)

	live := readings.Sources[0].Available
	assert.Equal(t, "readings", live.Table)
	assert.Equal(t, []ir.Attribute{ir.Attr("site"), ir.Attr("value")}, live.Select)
	assert.True(t, ir.Equal(ir.Attr("value").Ge(ir.Int(100)), live.Where), "got %s", live.Where)

	sites, ok := c.Dataset("sites")
	require.True(t, ok)
	assert.Empty(t, sites.Sources)
	col, ok := sites.Column("region")
	require.True(t, ok)
	assert.Equal(t, TypeString, col.Type)

	_, ok = c.Dataset("missing")
	assert.False(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Load("testdata/nope")
		assert.Error(t, err)
	})

	t.Run("no cue files", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no CUE files")
	})

	t.Run("bad dataset is reported, good one kept", func(t *testing.T) {
		c, err := Load("testdata/broken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dataset.bad")
		require.NotNil(t, c)
		require.Len(t, c.Datasets, 1)
		assert.Equal(t, "good", c.Datasets[0].Name)
	})
}

func TestLoadString_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{"syntax", `dataset: {`},
		{"no datasets", `other: 1`},
		{"no columns", `dataset: t: sources: {}`},
		{"empty columns", `dataset: t: columns: {}`},
		{"unknown type name", `dataset: t: columns: x: "money"`},
		{"bad where", `dataset: t: {columns: x: int, sources: s: where: {expr: "nope"}}`},
		{"bad priority", `dataset: t: {columns: x: int, sources: s: priority: "high"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadString(tc.src)
			assert.Error(t, err)
		})
	}
}

func TestCompileError_Position(t *testing.T) {
	_, err := LoadString(`dataset: t: columns: x: "money"`)
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "type", ce.Field)
}

func TestCheck(t *testing.T) {
	readings, ok := loadReadings(t).Dataset("readings")
	require.True(t, ok)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	value, site := ir.Attr("value"), ir.Attr("site")

	testCases := []struct {
		name      string
		expr      ir.Expression
		wantCodes []string
	}{
		{"valid", ir.All(value.Gt(ir.Float(1.5)), site.IsIn(ir.String("a")), ir.Attr("at").Lt(ir.NewTime(at))), nil},
		{"qualified", ir.Col("readings", "value").Eq(ir.Int(1)), nil},
		{"literal", ir.True, nil},
		{"unknown column", ir.Attr("depth").Eq(ir.Int(1)), []string{ErrUnknownColumn}},
		{"wrong table", ir.Col("sites", "value").Eq(ir.Int(1)), []string{ErrWrongTable}},
		{"type mismatch", site.Eq(ir.Int(1)), []string{ErrTypeMismatch}},
		{"naive time on aware column", ir.Attr("at").Ge(ir.NaiveTime(at)), []string{ErrTypeMismatch}},
		{"mixed set", site.IsIn(ir.String("a"), ir.Int(2)), []string{ErrTypeMismatch}},
		{"attribute", ir.NewNot(value), []string{ErrNotAFilter}},
		{
			"all problems reported",
			ir.Any(ir.Attr("depth").Eq(ir.Int(1)), site.Eq(ir.Int(1))),
			[]string{ErrUnknownColumn, ErrTypeMismatch},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			errs := readings.Check(tc.expr)
			var codes []string
			for _, e := range errs {
				codes = append(codes, e.Code)
			}
			assert.ElementsMatch(t, tc.wantCodes, codes, "errors: %v", errs)
		})
	}
}

func TestCheckQuery(t *testing.T) {
	c := loadReadings(t)

	errs := c.CheckQuery(query.New("readings", []ir.Attribute{ir.Attr("site")}, ir.Attr("value").Le(ir.Int(3))))
	assert.Empty(t, errs)

	errs = c.CheckQuery(query.New("nowhere", nil, nil))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownTable, errs[0].Code)

	errs = c.CheckQuery(query.New("readings", []ir.Attribute{ir.Attr("depth")}, nil))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownColumn, errs[0].Code)
}

func TestValidate(t *testing.T) {
	assert.Empty(t, loadReadings(t).Validate())

	c, err := LoadString(`
dataset: t: {
	columns: x: int
	sources: s: where: {expr: "eq", attribute: {expr: "attr", name: "x"}, value: "one"}
}`)
	require.NoError(t, err)

	errs := c.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, ErrTypeMismatch, errs[0].Code)
	assert.Equal(t, "dataset.t.sources.s", errs[0].Path)
	assert.Contains(t, errs[0].Error(), "dataset.t.sources.s")
}

func TestSources_FeedResolver(t *testing.T) {
	readings, ok := loadReadings(t).Dataset("readings")
	require.True(t, ok)

	rows := map[string][]map[string]any{
		"live":    {{"site": "a", "value": 150}},
		"archive": {{"site": "a", "value": 20, "at": "2024-01-01T00:00:00Z"}},
	}
	sources := readings.Sources(func(s SourceSpec) resolver.FetchFunc {
		return func(context.Context, query.Query) ([]byte, error) {
			return json.Marshal(rows[s.Name])
		}
	})
	require.Len(t, sources, 2)
	assert.Equal(t, "live", sources[0].Name())

	r := resolver.New(resolver.Config{Sources: sources})
	got, err := r.Run(context.Background(), query.New("readings", []ir.Attribute{ir.Attr("value")}, nil))
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
}
