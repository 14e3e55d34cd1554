package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalRoundTrip(t *testing.T) {
	x, y := Attr("x"), Col("t", "y")
	ts := NewTime(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC))
	naive := NaiveTime(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC))

	tests := []struct {
		name string
		expr Expression
	}{
		{"true", True},
		{"false", False},
		{"attribute", y},
		{"int relation", x.Ge(Int(1))},
		{"float relation", x.Lt(Float(0.5))},
		{"string relation", y.Eq(String("a<b&c"))},
		{"aware time", x.Le(ts)},
		{"naive time", x.Gt(naive)},
		{"in", x.IsIn(Int(1), String("a"), ts)},
		{"empty in", x.IsIn()},
		{"compound", mustAnd([]Expression{x.Ge(Int(0)), NewNot(mustOr([]Expression{y.Eq(Int(1)), y.Eq(Int(2))}))})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Marshal(tt.expr)
			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, Equal(tt.expr, got), "got %s", got)
			assert.Equal(t, string(data), string(Marshal(got)))
		})
	}
}

func TestUnmarshalLenientInput(t *testing.T) {
	x := Attr("x")
	tests := []struct {
		name string
		in   string
		want Expression
	}{
		{"bare attribute name", `{"expr":"eq","attribute":"x","value":1}`, x.Eq(Int(1))},
		{"integral float", `{"expr":"le","attribute":"x","value":2.0}`, x.Le(Int(2))},
		{"unsorted clauses", `{"expr":"or","clauses":[{"expr":"eq","attribute":"x","value":2},{"expr":"eq","attribute":"x","value":1}]}`,
			mustOr([]Expression{x.Eq(Int(1)), x.Eq(Int(2))})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal([]byte(tt.in))
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "got %s", got)
		})
	}
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		path string
	}{
		{"not json", `{`, ""},
		{"number root", `1`, "$"},
		{"unknown discriminator", `{"expr":"xor"}`, "$.expr"},
		{"missing value", `{"expr":"eq","attribute":"x"}`, "$.value"},
		{"missing attribute", `{"expr":"eq","value":1}`, "$.attribute"},
		{"bad valueset", `{"expr":"in","attribute":"x","valueset":3}`, "$.valueset"},
		{"bad clause", `{"expr":"and","clauses":[true,3]}`, "$.clauses[1]"},
		{"missing not clause", `{"expr":"not"}`, "$.clause"},
		{"bad attr name", `{"expr":"attr","name":1}`, "$.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.in))
			require.Error(t, err)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.path, de.Path)
		})
	}
}

func TestUnmarshalEmptyCompound(t *testing.T) {
	_, err := Unmarshal([]byte(`{"expr":"and","clauses":[]}`))
	assert.ErrorIs(t, err, ErrEmptyCompound)
}

func TestUnmarshalRejectsNonOrderable(t *testing.T) {
	_, err := Unmarshal([]byte(`{"expr":"eq","attribute":"x","value":null}`))
	require.Error(t, err)
	assert.True(t, IsTypeError(err))
}

func TestDocumentRoundTrip(t *testing.T) {
	x := Attr("x")
	e := mustAnd([]Expression{x.Ge(Int(1)), x.IsIn(String("a"))})

	doc := ToDocument(e)
	got, err := FromDocument(doc)
	require.NoError(t, err)
	assert.True(t, Equal(e, got))
}

func TestFromDocumentAcceptsAnyKeyedMaps(t *testing.T) {
	doc := map[any]any{
		"expr":      "gt",
		"attribute": map[any]any{"expr": "attr", "name": "x"},
		"value":     int64(3),
	}
	got, err := FromDocument(doc)
	require.NoError(t, err)
	assert.True(t, Equal(Attr("x").Gt(Int(3)), got))
}

func TestExpressionMarshalJSON(t *testing.T) {
	x := Attr("x")
	doc := map[string]any{
		"filter": All(x.Ge(Int(1)), x.Lt(Int(5))),
		"set":    x.IsIn(Int(2), Int(1)),
		"flag":   True,
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"filter": {"clauses": [
			{"attribute": {"expr": "attr", "name": "x"}, "expr": "ge", "value": 1},
			{"attribute": {"expr": "attr", "name": "x"}, "expr": "lt", "value": 5}
		], "expr": "and"},
		"set": `+x.IsIn(Int(1), Int(2)).Key()+`,
		"flag": true
	}`, string(b))
}
