// Package query models data requests and splits them across sources.
//
// A Query names a table, the columns wanted and a row filter. Where a query
// carries no filter it asks for every row.
//
// DECOMPOSITION:
//
// Decompose compares what is wanted (the query) with what is available (the
// source) and answers two questions:
//
//	refine    - the filter still to apply to the source's rows
//	remainder - the rows the query needs that the source does not hold
//
// A nil refine means the source's rows are used as is. A nil remainder means
// the source covers the query. Both nil means query and source are equal.
//
//	Decompose(x >= 0 and x <= 5, not (x >= 1 and x <= 2))
//	    refine:    x >= 0 and x <= 5
//	    remainder: x >= 1 and x <= 2
//
// Shapes that cannot be reconciled fail with *DecompositionError. Callers
// treat that as "this source cannot help" and move on to the next source.
//
// PARAMETERS:
//
// ExtractParameters and SplitParameters turn a filter into argument maps for
// a remote API that accepts tag lists and ranges instead of expressions.
package query
