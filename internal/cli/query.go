package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
	"github.com/roach88/splitq/internal/querysql"
)

// DecomposeResult is the JSON payload of decompose. A nil part is
// encoded as null.
type DecomposeResult struct {
	Refine    any `json:"refine"`
	Remainder any `json:"remainder"`
}

// SQLResult is the JSON payload of sql.
type SQLResult struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

const queryHelp = `A query document names a table, an optional select list and an optional
where expression:

  {"table": "t", "select": ["x", "y"], "where": {"expr": "ge", "attribute": "x", "value": 3}}

An argument may also be "@file" or "-" for stdin.`

// NewDecomposeCommand creates the decompose command.
func NewDecomposeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decompose <query> <source>",
		Short: "Split a query against the data a source covers",
		Long: `Split a query into a refine query, which selects the wanted rows from the
source's data, and a remainder query for the rows the source does not have.
Either part may be none.

` + queryHelp + `

Example:
  splitq decompose @query.json '{"table":"t","where":{"expr":"le","attribute":"x","value":5}}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompose(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDecompose(opts *RootOptions, qArg, sArg string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	q, err := readQuery(qArg, cmd.InOrStdin())
	if err != nil {
		return failInput(f, err)
	}
	s, err := readQuery(sArg, cmd.InOrStdin())
	if err != nil {
		return failInput(f, err)
	}

	refine, remainder, err := query.DecomposeQuery(q, s)
	if err != nil {
		return failOperation(f, "decompose", err)
	}
	opts.logger(cmd.ErrOrStderr()).Debug("decomposed", "query", q.String(), "source", s.String())

	text := fmt.Sprintf("refine:    %s\nremainder: %s", partText(refine), partText(remainder))
	return f.Success(text, DecomposeResult{Refine: partDocument(refine), Remainder: partDocument(remainder)})
}

func partText(q *query.Query) string {
	if q == nil {
		return "none"
	}
	return q.String()
}

func partDocument(q *query.Query) any {
	if q == nil {
		return nil
	}
	return query.ToDocument(*q)
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		literal bool
		orderBy []string
	)

	cmd := &cobra.Command{
		Use:   "sql <query>",
		Short: "Compile a query to SQL",
		Long: `Compile a query to a parameterised SELECT statement.

With --literal only the where expression is rendered, with values inlined.

` + queryHelp,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			q, err := readQuery(args[0], cmd.InOrStdin())
			if err != nil {
				return failInput(f, err)
			}

			if literal {
				if q.Where == nil {
					return f.Success("", SQLResult{Params: []any{}})
				}
				s, err := querysql.Render(q.Where)
				if err != nil {
					return failOperation(f, "sql", err)
				}
				return f.Success(s, SQLResult{SQL: s, Params: []any{}})
			}

			c := querysql.NewSQLCompiler()
			for _, name := range orderBy {
				c.OrderBy = append(c.OrderBy, ir.Attr(name))
			}
			s, params, err := c.Compile(q)
			if err != nil {
				return failOperation(f, "sql", err)
			}
			if params == nil {
				params = []any{}
			}
			return f.Success(sqlText(s, params), SQLResult{SQL: s, Params: params})
		},
	}

	cmd.Flags().BoolVar(&literal, "literal", false, "render the where expression with inlined values")
	cmd.Flags().StringSliceVar(&orderBy, "order-by", nil, "columns to order by (default: the selected columns)")

	return cmd
}

func sqlText(s string, params []any) string {
	if len(params) == 0 {
		return s
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%v", p)
	}
	return s + "\n-- params: " + strings.Join(parts, ", ")
}
