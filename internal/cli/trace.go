package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/splitq/internal/harness"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Source string // optional - filter reads to one source
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Timeline []harness.TraceEvent `json:"timeline"`
	Stats    TraceStats           `json:"stats"`
	Errors   []string             `json:"errors,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Steps       int            `json:"steps"`
	FailedSteps int            `json:"failed_steps"`
	Reads       map[string]int `json:"reads"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Show the trace of a scenario run",
		Long: `Run one scenario and show what happened, in order.

The output includes:
- Timeline: every step with its outcome, and every read from a source or
  cache made while resolving
- Stats: step counts and reads per source

Examples:
  splitq trace ./scenarios/resolve.yaml
  splitq trace ./scenarios/resolve.yaml --source cache
  splitq trace ./scenarios/resolve.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "only show reads from this source")

	return cmd
}

func runTrace(opts *TraceOptions, scenarioFile string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	result, err := harness.Run(cmd.Context(), scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	tr := TraceResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Timeline: filterTimeline(result.Trace, opts.Source),
		Stats:    traceStats(result.Trace),
		Errors:   result.Errors,
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, tr)
	}
	return outputTraceText(cmd, tr, opts.Verbose)
}

// filterTimeline keeps every step and the reads of source. An empty source
// keeps everything.
func filterTimeline(events []harness.TraceEvent, source string) []harness.TraceEvent {
	if source == "" {
		return events
	}
	return slices.DeleteFunc(slices.Clone(events), func(e harness.TraceEvent) bool {
		return e.Type == harness.EventRead && e.Source != source
	})
}

func traceStats(events []harness.TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events), Reads: map[string]int{}}
	for _, e := range events {
		switch e.Type {
		case harness.EventStep:
			stats.Steps++
			if e.Error != "" {
				stats.FailedSteps++
			}
		case harness.EventRead:
			stats.Reads[e.Source]++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Scenario: %s\n", result.Scenario)
	fmt.Fprintf(w, "Status: %s\n", passStatus(result.Pass))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Steps:        %d (%d failed)\n", result.Stats.Steps, result.Stats.FailedSteps)
	fmt.Fprintf(w, "  Reads:        %s\n", formatCounts(result.Stats.Reads))

	if len(result.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Errors ===")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event harness.TraceEvent, verbose bool) {
	switch event.Type {
	case harness.EventStep:
		if event.Error != "" {
			fmt.Fprintf(w, "  [%d] STEP %d %s FAILED %s\n", event.Seq, event.Step, event.Op, event.Error)
		} else {
			fmt.Fprintf(w, "  [%d] STEP %d %s\n", event.Seq, event.Step, event.Op)
		}
		if verbose && event.Input != nil {
			fmt.Fprintf(w, "       Input:  %s\n", formatDocument(event.Input))
		}
		if verbose && event.Output != nil {
			fmt.Fprintf(w, "       Output: %s\n", formatDocument(event.Output))
		}

	case harness.EventRead:
		fmt.Fprintf(w, "  [%d] READ %s: %s\n", event.Seq, event.Source, event.Query)
	}
}

// formatDocument renders a document as compact JSON. encoding/json sorts
// map keys, so the output is deterministic.
func formatDocument(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// formatCounts formats per-source counts with sorted keys.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

func passStatus(pass bool) string {
	if pass {
		return "Pass"
	}
	return "Fail"
}
