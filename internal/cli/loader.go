package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/splitq/internal/catalog"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
)

// LoadError represents an error that occurred while loading command input.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// readInput reads the bytes of an argument. "-" reads stdin, "@path" reads
// a file, anything else is the text itself.
func readInput(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadInput, Message: "read stdin", Err: err}
		}
		return b, nil
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("input file not found: %s", arg[1:])}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeBadInput, Message: "read " + arg[1:], Err: err}
		}
		return b, nil
	default:
		return []byte(arg), nil
	}
}

// readDocument reads a document argument. The text may be JSON or YAML.
func readDocument(arg string, stdin io.Reader) (any, error) {
	data, err := readInput(arg, stdin)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, &LoadError{Code: ErrCodeBadInput, Message: "parse document", Err: err}
	}
	return doc, nil
}

// readExpression reads and decodes an expression argument.
func readExpression(arg string, stdin io.Reader) (ir.Expression, error) {
	doc, err := readDocument(arg, stdin)
	if err != nil {
		return nil, err
	}
	e, err := ir.FromDocument(doc)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeBadInput, Message: "decode expression", Err: err}
	}
	return e, nil
}

// readQuery reads and decodes a query argument.
func readQuery(arg string, stdin io.Reader) (query.Query, error) {
	doc, err := readDocument(arg, stdin)
	if err != nil {
		return query.Query{}, err
	}
	q, err := query.FromDocument(doc)
	if err != nil {
		return query.Query{}, &LoadError{Code: ErrCodeBadInput, Message: "decode query", Err: err}
	}
	return q, nil
}

// loadCatalog loads a CUE catalog directory, mapping failures onto CLI
// error codes.
func loadCatalog(dir string) (*catalog.Catalog, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "error accessing catalog directory", Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}
	files, err := catalog.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "error scanning directory", Err: err}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	c, err := catalog.Load(dir)
	if err != nil {
		return c, &LoadError{Code: ErrCodeLoadFailed, Message: "load catalog", Err: err}
	}
	return c, nil
}
