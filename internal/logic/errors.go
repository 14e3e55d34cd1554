package logic

import (
	"errors"
	"fmt"

	"github.com/roach88/splitq/internal/ir"
)

// ErrHeuristic is returned when the heuristic expansion meets a shape it
// does not recognize. Callers retry with ExpandTruthTable.
var ErrHeuristic = errors.New("heuristic expansion not applicable")

// ErrClauseBudget is returned when an expression has more distinct clauses
// than the truth table budget allows.
var ErrClauseBudget = errors.New("truth table clause budget exceeded")

// ExpansionError reports a failed DNF expansion.
type ExpansionError struct {
	// Method is "heuristic" or "truth_table".
	Method string

	// Expr is the sub-expression that could not be expanded.
	Expr ir.Expression

	// Clauses is the distinct clause count (truth table only).
	Clauses int

	Err error
}

func (e *ExpansionError) Error() string {
	if e.Clauses > 0 {
		return fmt.Sprintf("%s: %v (%d clauses)", e.Method, e.Err, e.Clauses)
	}
	return fmt.Sprintf("%s: %v: %s", e.Method, e.Err, e.Expr)
}

func (e *ExpansionError) Unwrap() error { return e.Err }

// IsBudgetError reports whether err was caused by the clause budget.
func IsBudgetError(err error) bool {
	return errors.Is(err, ErrClauseBudget)
}
