package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nReads:\n")
	for _, event := range e.Trace {
		if event.Type == EventRead {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Source, event.Query)
		}
	}

	return buf.String()
}

func checkAssertion(trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertSourceCalls:
		return assertSourceCalls(trace, a)
	case AssertSourceOrder:
		return assertSourceOrder(trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func reads(trace []TraceEvent) []string {
	var out []string
	for _, event := range trace {
		if event.Type == EventRead {
			out = append(out, event.Source)
		}
	}
	return out
}

// assertSourceCalls checks how many times a source was read.
func assertSourceCalls(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, s := range reads(trace) {
		if s == a.Source {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertSourceCalls,
			Expected: fmt.Sprintf("%s read %d times", a.Source, a.Count),
			Actual:   fmt.Sprintf("%s read %d times", a.Source, count),
			Trace:    trace,
		}
	}
	return nil
}

// assertSourceOrder checks that the sources were read in the given order.
// Other reads may come in between.
func assertSourceOrder(trace []TraceEvent, a Assertion) error {
	want := a.Sources
	for _, s := range reads(trace) {
		if len(want) > 0 && s == want[0] {
			want = want[1:]
		}
	}
	if len(want) > 0 {
		return &AssertionError{
			Type:     AssertSourceOrder,
			Expected: strings.Join(a.Sources, " -> "),
			Actual:   strings.Join(reads(trace), " -> "),
			Trace:    trace,
		}
	}
	return nil
}

// checkExpect compares a step outcome with its expectations and returns a
// message per mismatch.
func checkExpect(e *Expect, out outcome, err error) []string {
	var msgs []string

	if e.Error != "" {
		if err == nil {
			return []string{fmt.Sprintf("expected error %s, got success", e.Error)}
		}
		if code := ErrorCode(err); code != e.Error {
			return []string{fmt.Sprintf("expected error %s, got %s: %v", e.Error, code, err)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	if e.Result != nil {
		if msg := compareExpr("result", e.Result, out.expr); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if e.Refine != nil {
		if msg := compareFilter("refine", e.Refine, out.refine); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if e.Remainder != nil {
		if msg := compareFilter("remainder", e.Remainder, out.remainder); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if e.Rows != nil {
		got := 0
		if out.data != nil {
			got = out.data.Len()
		}
		if got != *e.Rows {
			msgs = append(msgs, fmt.Sprintf("expected %d rows, got %d", *e.Rows, got))
		}
	}
	if e.SQL != "" && e.SQL != out.sql {
		msgs = append(msgs, fmt.Sprintf("expected sql %q, got %q", e.SQL, out.sql))
	}
	if e.Params != nil {
		want := make([]any, len(e.Params))
		for i, p := range e.Params {
			want[i] = normalizeParam(p)
		}
		if !reflect.DeepEqual(want, out.params) {
			msgs = append(msgs, fmt.Sprintf("expected params %v, got %v", want, out.params))
		}
	}
	if e.Codes != nil {
		want, got := slices.Clone(e.Codes), slices.Clone(out.codes)
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			msgs = append(msgs, fmt.Sprintf("expected codes %v, got %v", want, got))
		}
	}
	return msgs
}

func compareExpr(what string, doc any, got ir.Expression) string {
	want, err := ir.FromDocument(doc)
	if err != nil {
		return fmt.Sprintf("bad expected %s: %v", what, err)
	}
	if !ir.Equal(want, got) {
		return fmt.Sprintf("expected %s %s, got %v", what, want, got)
	}
	return ""
}

// compareFilter compares the filter of a decomposition part. A part with no
// filter matches ExpectNone.
func compareFilter(what string, doc any, got *query.Query) string {
	var where ir.Expression
	if got != nil {
		where = got.Where
	}
	if s, ok := doc.(string); ok && s == ExpectNone {
		if where != nil {
			return fmt.Sprintf("expected no %s, got %s", what, where)
		}
		return ""
	}
	if where == nil {
		return fmt.Sprintf("expected a %s filter, got none", what)
	}
	return compareExpr(what, doc, where)
}

// normalizeParam maps YAML scalars onto the types querysql binds.
func normalizeParam(p any) any {
	switch v := p.(type) {
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return p
	}
}
