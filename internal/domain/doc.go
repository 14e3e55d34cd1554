// Package domain reasons about the values an attribute can take.
//
// Continuous filters (Le, Lt, Ge, Gt, Eq) are mapped onto IntervalSet, a
// sorted union of disjoint intervals with open or closed ends. Discrete
// filters (In, Eq) are mapped onto SignedSet, a finite value set that may
// be complemented. Both algebras are closed under intersection, union and
// complement, and both convert back to canonical expressions.
//
// On top of the algebras:
//
//   - SimplifyFlatAnd reduces a conjunction of simple clauses attribute by
//     attribute, detecting conflicts.
//   - SimplifyUnivariate reduces an arbitrary And/Or/Not tree over a single
//     attribute.
//   - SimplifyDomain isolates univariate sub-trees of a larger expression.
//   - Simplify expands to DNF first, so unsatisfiable input always reduces
//     to False.
//
// Values of different kinds (numeric, string, naive and aware timestamps)
// are never compared. Mixing them on one attribute is a SimplifyError.
package domain
