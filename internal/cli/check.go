package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/splitq/internal/catalog"
)

// ErrCodeCompile marks a dataset that failed to compile in check output.
const ErrCodeCompile = "compile"

// CheckResult holds check results.
type CheckResult struct {
	Valid    bool                 `json:"valid"`
	Datasets []string             `json:"datasets"`
	Errors   []catalog.CheckError `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var queryArg string

	cmd := &cobra.Command{
		Use:   "check [catalog-dir]",
		Short: "Type-check a dataset catalog and queries against it",
		Long: `Load a CUE dataset catalog and type-check the filters of its sources
against the declared columns. With --query, the given query is checked too.

The catalog directory defaults to catalog in the config file.

Exit codes:
  0 - Catalog (and query) valid
  1 - Type errors found
  2 - Catalog could not be loaded

Examples:
  splitq check ./datasets
  splitq check ./datasets --query '{"table":"readings","where":{"expr":"ge","attribute":"value","value":"high"}}'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.config().Catalog
			if len(args) == 1 {
				dir = args[0]
			}
			return runCheck(rootOpts, dir, queryArg, cmd)
		},
	}

	cmd.Flags().StringVar(&queryArg, "query", "", "a query to check against the catalog")

	return cmd
}

func runCheck(opts *RootOptions, dir, queryArg string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if dir == "" {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "no catalog directory given and none configured", nil)
	}

	var errs []catalog.CheckError
	c, err := loadCatalog(dir)
	if err != nil {
		var le *LoadError
		if c == nil || !errors.As(err, &le) || le.Code != ErrCodeLoadFailed {
			return failInput(f, err)
		}
		// Some datasets compiled; report the rest as check failures.
		errs = append(errs, catalog.CheckError{Code: ErrCodeCompile, Message: le.Err.Error()})
	}
	f.VerboseLog("Loaded %d dataset(s) from %d CUE file(s) in %s", len(c.Datasets), c.FileCount, dir)

	errs = append(errs, c.Validate()...)
	if queryArg != "" {
		q, err := readQuery(queryArg, cmd.InOrStdin())
		if err != nil {
			return failInput(f, err)
		}
		errs = append(errs, c.CheckQuery(q)...)
	}

	names := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		names[i] = d.Name
	}

	if len(errs) > 0 {
		return outputCheckErrors(f, names, errs)
	}
	return f.Success(
		fmt.Sprintf("✓ Catalog valid (%d dataset(s))", len(names)),
		CheckResult{Valid: true, Datasets: names},
	)
}

// outputCheckErrors outputs the type errors and returns exit code 1.
func outputCheckErrors(f *OutputFormatter, names []string, errs []catalog.CheckError) error {
	if f.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   CheckResult{Valid: false, Datasets: names, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("check failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(f.Writer, "✗ Check failed")
	fmt.Fprintln(f.Writer)
	for _, e := range errs {
		if e.Path != "" {
			fmt.Fprintln(f.Writer, e.Path)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("check failed with %d error(s)", len(errs)))
}
