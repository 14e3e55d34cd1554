// Package engine is the local row engine used to assemble query results.
//
// Sources return raw rows (a JSON array of objects). The engine turns them
// into a Dataset, applies refine filters row by row and concatenates the
// partial results of a resolution plan:
//
//	data, _ := eng.Process(raw)
//	data, _ = eng.Refine(data, refine)
//	result, _ := eng.Union(cached, data)
//
// Filtering follows the expression semantics of package ir: relations
// compare a column against a constant, memberships test a value set and
// And/Or/Not combine them. Columns are matched by attribute name; the table
// qualifier is ignored once rows are loaded.
//
// The engine is stateless and safe for concurrent use.
package engine
