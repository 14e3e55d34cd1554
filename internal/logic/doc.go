// Package logic rearranges the boolean structure of expressions.
//
// Every expression is viewed as a skeleton of And, Or and Not nodes over
// opaque clauses (relations, memberships, attributes). Nothing in this
// package looks inside a clause; the domain package handles that.
//
// Two expansions to disjunctive normal form are provided:
//
//   - ExpandTruthTable enumerates every True/False assignment of the
//     distinct clauses. Always correct, exponential in the clause count,
//     and refused above Options.MaxTruthTableClauses.
//   - ExpandHeuristic distributes And over Or structurally. It recognizes a
//     limited set of shapes and returns ErrHeuristic for anything else.
//
// ToDNF tries the heuristic first and falls back to the truth table.
package logic
