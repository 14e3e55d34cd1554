package logic

import "github.com/roach88/splitq/internal/ir"

// Row is one line of a truth table: an assignment of every clause and the
// resulting value of the expression.
type Row struct {
	Assignment []bool
	Result     bool
}

// TruthTable is the full enumeration of an expression over its clauses.
type TruthTable struct {
	// Clauses are the distinct opaque clauses in canonical key order.
	// Row.Assignment[i] is the value given to Clauses[i].
	Clauses []ir.Expression
	Rows    []Row
}

// BuildTruthTable enumerates all 2^n assignments of the clauses of e.
// Returns an *ExpansionError wrapping ErrClauseBudget when n exceeds
// opts.MaxTruthTableClauses.
func BuildTruthTable(e ir.Expression, opts Options) (*TruthTable, error) {
	opts = opts.withDefaults()
	clauses := ir.Clauses(e)
	if len(clauses) > opts.MaxTruthTableClauses {
		return nil, &ExpansionError{Method: "truth_table", Expr: e, Clauses: len(clauses), Err: ErrClauseBudget}
	}

	index := make(map[string]int, len(clauses))
	for i, c := range clauses {
		index[c.Key()] = i
	}

	n := len(clauses)
	table := &TruthTable{Clauses: clauses, Rows: make([]Row, 0, 1<<n)}
	for mask := 0; mask < 1<<n; mask++ {
		assignment := make([]bool, n)
		for i := range assignment {
			assignment[i] = mask&(1<<(n-1-i)) == 0
		}
		result := Evaluate(e, func(c ir.Expression) bool {
			return assignment[index[c.Key()]]
		})
		table.Rows = append(table.Rows, Row{Assignment: assignment, Result: result})
	}
	return table, nil
}

// ExpandTruthTable converts e to disjunctive normal form by enumeration.
// The result is True, False, or an Or of minterms, each an And holding
// every clause either plain or negated.
func ExpandTruthTable(e ir.Expression, opts Options) (ir.Expression, error) {
	table, err := BuildTruthTable(e, opts)
	if err != nil {
		return nil, err
	}

	var minterms [][]ir.Expression
	for _, row := range table.Rows {
		if !row.Result {
			continue
		}
		literals := make([]ir.Expression, len(table.Clauses))
		for i, c := range table.Clauses {
			if row.Assignment[i] {
				literals[i] = c
			} else {
				literals[i] = ir.NewNot(c)
			}
		}
		minterms = append(minterms, literals)
	}

	switch len(minterms) {
	case 0:
		return ir.False, nil
	case len(table.Rows):
		return ir.True, nil
	}
	terms := make([]ir.Expression, len(minterms))
	for i, literals := range minterms {
		terms[i], _ = ir.NewAnd(literals...)
	}
	out, _ := ir.NewOr(terms...)
	return out, nil
}
