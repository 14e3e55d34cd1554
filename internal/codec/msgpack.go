// Package codec provides the binary wire and storage encodings.
//
// Expressions, queries and datasets are encoded as MessagePack using the
// same document layout as their JSON form, so a persisted key decodes to a
// value Equal to the one that was stored. Payloads may additionally be
// compressed with ZStandard.
package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/splitq/internal/engine"
	"github.com/roach88/splitq/internal/ir"
	"github.com/roach88/splitq/internal/query"
)

// Encode serializes a document into MessagePack. Map keys are sorted so
// equal documents produce equal bytes.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes MessagePack data into a generic document. Integers
// decode as int64 or uint64, floats as float64 and maps as map[string]any.
func Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty MessagePack data")
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return doc, nil
}

// MarshalExpression encodes e.
func MarshalExpression(e ir.Expression) ([]byte, error) {
	return Encode(ir.ToDocument(e))
}

// UnmarshalExpression decodes an expression written by MarshalExpression.
func UnmarshalExpression(data []byte) (ir.Expression, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	e, err := ir.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("decode expression: %w", err)
	}
	return e, nil
}

// MarshalQuery encodes q.
func MarshalQuery(q query.Query) ([]byte, error) {
	return Encode(query.ToDocument(q))
}

// UnmarshalQuery decodes a query written by MarshalQuery.
func UnmarshalQuery(data []byte) (query.Query, error) {
	doc, err := Decode(data)
	if err != nil {
		return query.Query{}, err
	}
	q, err := query.FromDocument(doc)
	if err != nil {
		return query.Query{}, fmt.Errorf("decode query: %w", err)
	}
	return q, nil
}

// MarshalDataset encodes d.
func MarshalDataset(d *engine.Dataset) ([]byte, error) {
	return Encode(d.ToDocument())
}

// UnmarshalDataset decodes a dataset written by MarshalDataset.
func UnmarshalDataset(data []byte) (*engine.Dataset, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	d, err := engine.DatasetFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return d, nil
}
