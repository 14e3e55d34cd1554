package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/splitq/internal/cache"
	"github.com/roach88/splitq/internal/domain"
	"github.com/roach88/splitq/internal/harness"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/logic"
)

// ExpressionResult is the JSON payload of simplify and dnf.
type ExpressionResult struct {
	Expr any    `json:"expr"`
	Text string `json:"text"`
}

const inputHelp = `An argument is a JSON or YAML expression document, "@file" to read one
from a file, or "-" to read stdin. Attributes may be written as a bare name:

  {"expr": "ge", "attribute": "x", "value": 3}`

// NewSimplifyCommand creates the simplify command.
func NewSimplifyCommand(rootOpts *RootOptions) *cobra.Command {
	var expand bool

	cmd := &cobra.Command{
		Use:   "simplify <expr>",
		Short: "Simplify a filter expression",
		Long: `Simplify a filter expression to an equivalent, usually smaller one.

By default the expression is simplified in disjunctive normal form. With
--expand, every single-attribute subtree is also reduced before expansion.

` + inputHelp + `

Examples:
  splitq simplify '{"expr":"and","clauses":[{"expr":"ge","attribute":"x","value":1},{"expr":"ge","attribute":"x","value":3}]}'
  splitq simplify --expand @filter.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimplify(rootOpts, args[0], expand, cmd)
		},
	}

	cmd.Flags().BoolVar(&expand, "expand", false, "reduce single-attribute subtrees before DNF expansion")

	return cmd
}

func runSimplify(opts *RootOptions, arg string, expand bool, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg := opts.config()
	log := opts.logger(cmd.ErrOrStderr())

	e, err := readExpression(arg, cmd.InOrStdin())
	if err != nil {
		return failInput(f, err)
	}

	var out ir.Expression
	if expand {
		out, err = domain.ExpandSimplify(e, cfg.LogicOptions())
	} else {
		memo, merr := cache.NewMemo(cfg.Cache.MemoSize, cfg.LogicOptions(), nil)
		if merr != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "create memo", merr)
		}
		out, err = memo.Simplify(e)
	}
	if err != nil {
		return failOperation(f, "simplify", err)
	}
	log.Debug("simplified", "input", e.String(), "output", out.String())
	return outputExpression(f, out)
}

// NewDNFCommand creates the dnf command.
func NewDNFCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dnf <expr>",
		Short: "Expand an expression into disjunctive normal form",
		Long: `Expand a filter expression into an equivalent OR of ANDs of simple clauses.

Expressions with few distinct clauses are expanded through a truth table;
larger ones fall back to distribution. dnf.max_clauses in the config file
bounds the truth table.

` + inputHelp,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			e, err := readExpression(args[0], cmd.InOrStdin())
			if err != nil {
				return failInput(f, err)
			}
			out, err := logic.ToDNF(e, rootOpts.config().LogicOptions())
			if err != nil {
				return failOperation(f, "dnf", err)
			}
			return outputExpression(f, out)
		},
	}
}

func outputExpression(f *OutputFormatter, e ir.Expression) error {
	return f.Success(e.String(), ExpressionResult{Expr: ir.ToDocument(e), Text: e.String()})
}

// failInput reports an unreadable argument. Exit code 2.
func failInput(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return f.Fail(ExitCommandError, le.Code, le.Message, le.Err)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, "load input", err)
}

// failOperation reports an operation that ran and failed, coded by error
// category. Exit code 1.
func failOperation(f *OutputFormatter, op string, err error) error {
	return f.Fail(ExitFailure, harness.ErrorCode(err), op+" failed", err)
}
