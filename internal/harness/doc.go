// Package harness runs YAML scenarios against splitq.
//
// # Scenario Format
//
//	name: range_split
//	description: "Two sources split a range query"
//	catalog: ../catalog        # optional CUE dataset directory
//	cache: true                # optional in-memory SQLite cache
//	sources:
//	  - name: low
//	    query: {table: t, where: {expr: le, attribute: x, value: 5}}
//	    rows: [{x: 1}, {x: 5}]
//	steps:
//	  - op: simplify
//	    expr: {expr: and, clauses: [{expr: ge, attribute: x, value: 1}, {expr: ge, attribute: x, value: 3}]}
//	    expect:
//	      result: {expr: ge, attribute: x, value: 3}
//	  - op: resolve
//	    query: {table: t, where: {expr: le, attribute: x, value: 3}}
//	    expect: {rows: 1}
//	assertions:
//	  - type: source_calls
//	    source: low
//	    count: 1
//
// Expressions and queries use their JSON document forms; an attribute may
// be written as a bare name.
//
// # Operations
//
//   - simplify, expand, dnf: rewrite expr; expect result
//   - decompose: split query against source; expect refine and remainder
//     filters, or "none"
//   - sql: compile query; expect sql and params
//   - check: type-check query against the catalog; expect codes
//   - resolve: answer query from the sources; expect rows
//
// Any step may instead expect an error code.
//
// # Traces
//
// Every step outcome and every source read is recorded in order. The trace
// serializes to canonical JSON, which golden tests compare byte for byte.
package harness
