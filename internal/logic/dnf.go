package logic

import (
	"errors"

	"github.com/roach88/splitq/internal/ir"
)

// DefaultMaxTruthTableClauses bounds truth table expansion to 2^20 rows.
const DefaultMaxTruthTableClauses = 20

// Options configures DNF expansion.
type Options struct {
	// MaxTruthTableClauses is the largest distinct clause count the truth
	// table will enumerate. Zero means DefaultMaxTruthTableClauses.
	MaxTruthTableClauses int
}

func (o Options) withDefaults() Options {
	if o.MaxTruthTableClauses <= 0 {
		o.MaxTruthTableClauses = DefaultMaxTruthTableClauses
	}
	return o
}

// ToDNF expands e to disjunctive normal form. The heuristic expansion is
// tried first; on ErrHeuristic the truth table is used, subject to the
// clause budget.
func ToDNF(e ir.Expression, opts Options) (ir.Expression, error) {
	out, err := ExpandHeuristic(e)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrHeuristic) {
		return nil, err
	}
	return ExpandTruthTable(e, opts)
}
