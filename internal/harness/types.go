package harness

// Trace event types.
const (
	EventStep = "step"
	EventRead = "read"
)

// TraceEvent is one entry of a scenario trace: a step outcome, or a read
// from a source or cache made while resolving.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`

	// Step fields.
	Step   int    `json:"step,omitempty"`
	Op     string `json:"op,omitempty"`
	Input  any    `json:"input,omitempty"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`

	// Read fields.
	Source string `json:"source,omitempty"`
	Query  string `json:"query,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEvent) {
	e.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, e)
}
