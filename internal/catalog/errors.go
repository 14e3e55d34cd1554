package catalog

import "fmt"

// Check error codes.
const (
	ErrUnknownTable  = "unknown_table"
	ErrUnknownColumn = "unknown_column"
	ErrWrongTable    = "wrong_table"
	ErrTypeMismatch  = "type_mismatch"
	ErrNotAFilter    = "not_a_filter"
)

// CheckError is one problem found while type-checking an expression or
// query against the catalog.
type CheckError struct {
	Code      string `json:"code"`
	Path      string `json:"path,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Message   string `json:"message"`
}

func (e CheckError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}
