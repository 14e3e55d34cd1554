package querysql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
)

// SQLRepresentationError reports an expression node or identifier that has
// no SQL rendering.
type SQLRepresentationError struct {
	Node    string
	Message string
}

func (e *SQLRepresentationError) Error() string {
	if e.Node == "" {
		return "cannot represent as SQL: " + e.Message
	}
	return fmt.Sprintf("cannot represent %s as SQL: %s", e.Node, e.Message)
}

// IsSQLRepresentationError reports whether err wraps a SQLRepresentationError.
func IsSQLRepresentationError(err error) bool {
	var se *SQLRepresentationError
	return errors.As(err, &se)
}

func unrepresentable(node fmt.Stringer, format string, args ...any) *SQLRepresentationError {
	name := ""
	if node != nil {
		name = node.String()
	}
	return &SQLRepresentationError{Node: name, Message: fmt.Sprintf(format, args...)}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLCompiler compiles queries to parameterized SQL.
//
// Values are always bound through ? placeholders, never interpolated.
type SQLCompiler struct {
	// Aliases renames selected columns: "t.x AS alias".
	Aliases map[ir.Attribute]string

	// OrderBy appends an ORDER BY over these columns. When empty, queries
	// with an explicit column list are ordered by those columns.
	OrderBy []ir.Attribute
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Aliases: make(map[ir.Attribute]string)}
}

// Compile converts a query to SQL and its bound parameters.
// A nil or True filter produces no WHERE clause.
func (c *SQLCompiler) Compile(q query.Query) (string, []any, error) {
	if !identifier.MatchString(q.Table) {
		return "", nil, &SQLRepresentationError{Node: q.Table, Message: "not a plain table name"}
	}

	selectClause, err := c.compileColumns(q.Select)
	if err != nil {
		return "", nil, err
	}

	var whereClause string
	var params []any
	if q.Where != nil && q.Where != ir.True {
		filterSQL, filterParams, err := c.compileFilter(q.Where)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	orderByClause, err := c.orderBy(q)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s", selectClause, q.Table, whereClause, orderByClause)
	return sql, params, nil
}

// Compile compiles q with a default SQLCompiler.
func Compile(q query.Query) (string, []any, error) {
	return NewSQLCompiler().Compile(q)
}

func (c *SQLCompiler) compileColumns(cols []ir.Attribute) (string, error) {
	if len(cols) == 0 {
		return "*", nil
	}
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		name, err := columnSQL(col)
		if err != nil {
			return "", err
		}
		if alias, ok := c.Aliases[col]; ok {
			if !identifier.MatchString(alias) {
				return "", &SQLRepresentationError{Node: alias, Message: "not a plain alias"}
			}
			name += " AS " + alias
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", "), nil
}

func (c *SQLCompiler) orderBy(q query.Query) (string, error) {
	cols := c.OrderBy
	if len(cols) == 0 {
		cols = q.Select
	}
	if len(cols) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		name, err := columnSQL(col)
		if err != nil {
			return "", err
		}
		parts = append(parts, name+" ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func columnSQL(a ir.Attribute) (string, error) {
	if !identifier.MatchString(a.Name) {
		return "", unrepresentable(a, "not a plain column name")
	}
	if a.Table == "" {
		return a.Name, nil
	}
	if !identifier.MatchString(a.Table) {
		return "", unrepresentable(a, "not a plain table name")
	}
	return a.Table + "." + a.Name, nil
}

// compileFilter compiles an expression to a WHERE clause fragment.
func (c *SQLCompiler) compileFilter(e ir.Expression) (string, []any, error) {
	switch n := e.(type) {
	case ir.Literal:
		if n {
			return "1 = 1", nil, nil
		}
		return "1 = 0", nil, nil

	case ir.Relation:
		col, err := columnSQL(n.Attribute())
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", col, sqlOperator(n.Op())), []any{valueParam(n.Value())}, nil

	case ir.In:
		col, err := columnSQL(n.Attribute())
		if err != nil {
			return "", nil, err
		}
		values := n.Values().Values()
		if len(values) == 0 {
			return "1 = 0", nil, nil
		}
		params := make([]any, len(values))
		for i, v := range values {
			params[i] = valueParam(v)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return fmt.Sprintf("%s IN (%s)", col, placeholders), params, nil

	case ir.And:
		return c.compileCompound(n.Clauses(), " AND ")

	case ir.Or:
		return c.compileCompound(n.Clauses(), " OR ")

	case ir.Not:
		sql, params, err := c.compileFilter(n.Clause())
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil

	case ir.Attribute:
		return "", nil, unrepresentable(n, "an attribute is not a filter")

	case nil:
		return "", nil, unrepresentable(nil, "nil expression")

	default:
		return "", nil, unrepresentable(e, "unsupported node %T", e)
	}
}

func (c *SQLCompiler) compileCompound(clauses []ir.Expression, sep string) (string, []any, error) {
	var sqlParts []string
	var allParams []any
	for _, clause := range clauses {
		sql, params, err := c.compileFilter(clause)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, sep), allParams, nil
}

func sqlOperator(op ir.Op) string {
	if op == ir.OpEq {
		return "="
	}
	return op.Symbol()
}

// valueParam converts a value to a driver parameter. Times are bound as
// ISO 8601 text.
func valueParam(v ir.Value) any {
	switch val := v.(type) {
	case ir.Int:
		return int64(val)
	case ir.Float:
		return float64(val)
	case ir.String:
		return string(val)
	case ir.Time:
		return val.ISO()
	default:
		return fmt.Sprint(v)
	}
}
