package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of splitq operations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a directory of CUE dataset definitions, relative to the
	// scenario file. Required by check steps.
	Catalog string `yaml:"catalog,omitempty"`

	// Sources serve resolve steps in the listed order.
	Sources []SourceDef `yaml:"sources,omitempty"`

	// Cache puts an in-memory SQLite cache in front of the sources.
	Cache bool `yaml:"cache,omitempty"`

	// MaxClauses bounds truth-table expansion; zero keeps the default.
	MaxClauses int `yaml:"max_clauses,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the trace after every step ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SourceDef is a fixture source: it serves one fixed query and returns
// Rows for it.
type SourceDef struct {
	Name  string           `yaml:"name"`
	Query map[string]any   `yaml:"query"`
	Rows  []map[string]any `yaml:"rows"`
}

// Step runs one operation. Expression and query inputs use their JSON
// document forms written as YAML.
type Step struct {
	// Op is one of simplify, expand, dnf, decompose, sql, check, resolve.
	Op string `yaml:"op"`

	// Expr is the input of simplify, expand and dnf.
	Expr any `yaml:"expr,omitempty"`

	// Query is the input of decompose, sql, check and resolve.
	Query map[string]any `yaml:"query,omitempty"`

	// Source is the query decompose splits against.
	Source map[string]any `yaml:"source,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the outcomes a step must produce. Only the fields set are
// checked.
type Expect struct {
	// Result is the expected expression of simplify, expand and dnf.
	Result any `yaml:"result,omitempty"`

	// Refine and Remainder are the expected filters of decompose. The
	// string "none" expects no filter.
	Refine    any `yaml:"refine,omitempty"`
	Remainder any `yaml:"remainder,omitempty"`

	// Error is the expected error code.
	Error string `yaml:"error,omitempty"`

	// Rows is the expected row count of resolve.
	Rows *int `yaml:"rows,omitempty"`

	// SQL and Params are the expected output of sql.
	SQL    string `yaml:"sql,omitempty"`
	Params []any  `yaml:"params,omitempty"`

	// Codes are the expected check error codes, in any order.
	Codes []string `yaml:"codes,omitempty"`
}

// Assertion validates the trace as a whole.
type Assertion struct {
	// Type is source_calls or source_order.
	Type string `yaml:"type"`

	// Source is the source counted by source_calls.
	Source string `yaml:"source,omitempty"`

	// Count is the expected number of reads (source_calls).
	Count int `yaml:"count,omitempty"`

	// Sources is the expected read order (source_order).
	Sources []string `yaml:"sources,omitempty"`
}

// Step operations.
const (
	OpSimplify  = "simplify"
	OpExpand    = "expand"
	OpDNF       = "dnf"
	OpDecompose = "decompose"
	OpSQL       = "sql"
	OpCheck     = "check"
	OpResolve   = "resolve"
)

// Assertion type constants.
const (
	AssertSourceCalls = "source_calls"
	AssertSourceOrder = "source_order"
)

// ExpectNone marks an expected absent refine or remainder.
const ExpectNone = "none"

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the catalog path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := map[string]bool{}
	for i, src := range s.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if names[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, src.Name)
		}
		names[src.Name] = true
		if src.Query == nil {
			return fmt.Errorf("sources[%d]: query is required", i)
		}
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpSimplify, OpExpand, OpDNF:
			if step.Expr == nil {
				return fmt.Errorf("steps[%d]: expr is required for %s", i, step.Op)
			}
		case OpDecompose:
			if step.Query == nil || step.Source == nil {
				return fmt.Errorf("steps[%d]: query and source are required for decompose", i)
			}
		case OpSQL, OpResolve:
			if step.Query == nil {
				return fmt.Errorf("steps[%d]: query is required for %s", i, step.Op)
			}
		case OpCheck:
			if step.Query == nil {
				return fmt.Errorf("steps[%d]: query is required for check", i)
			}
			if s.Catalog == "" {
				return fmt.Errorf("steps[%d]: check needs a scenario catalog", i)
			}
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, sources map[string]bool) error {
	switch a.Type {
	case AssertSourceCalls:
		if !sources[a.Source] {
			return fmt.Errorf("assertions[%d]: unknown source %q", index, a.Source)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for source_calls", index)
		}
	case AssertSourceOrder:
		if len(a.Sources) == 0 {
			return fmt.Errorf("assertions[%d]: sources list is required for source_order", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
