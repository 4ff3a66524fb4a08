// Package results decodes SPARQL 1.1 JSON result sets into typed rows.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/roach88/iadas/internal/codec"
	"github.com/roach88/iadas/internal/ir"
)

// ErrInvalidShape is returned when a payload lacks head.vars or
// results.bindings.
var ErrInvalidShape = errors.New("invalid SPARQL result shape")

// Raw is the SPARQL 1.1 JSON results document. Absent members stay nil so
// that a missing head.vars can be told apart from an empty one.
type Raw struct {
	Head    *RawHead    `json:"head"`
	Results *RawResults `json:"results"`
}

// RawHead is the head member of a result document.
type RawHead struct {
	Vars []string `json:"vars"`
}

// RawResults is the results member of a result document.
type RawResults struct {
	Bindings []map[string]codec.Cell `json:"bindings"`
}

// Decode unmarshals a result document without checking its shape.
// Malformed JSON is reported as ErrInvalidShape.
func Decode(data []byte) (Raw, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return Raw{}, fmt.Errorf("%w: %v", ErrInvalidShape, err)
	}
	return raw, nil
}

// Validate reports ErrInvalidShape unless both head.vars and
// results.bindings are present.
func (r Raw) Validate() error {
	if r.Head == nil || r.Head.Vars == nil {
		return fmt.Errorf("%w: missing head.vars", ErrInvalidShape)
	}
	if r.Results == nil || r.Results.Bindings == nil {
		return fmt.Errorf("%w: missing results.bindings", ErrInvalidShape)
	}
	return nil
}

// ColumnType classifies a variable by its first non-null value.
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnCategorical ColumnType = "categorical"
	ColumnURI         ColumnType = "uri"
	ColumnBoolean     ColumnType = "boolean"
	ColumnEmpty       ColumnType = "empty"
)

// Row maps every result variable to its decoded value, or nil when the
// binding leaves it unbound.
type Row map[string]ir.Value

// Result is a decoded result set. Rows keep the binding order of the input.
type Result struct {
	Variables []string `json:"variables"`
	Rows      []Row    `json:"rows"`

	typesOnce sync.Once
	types     map[string]ColumnType
}

// Parse decodes and validates a result document.
func Parse(data []byte) (*Result, error) {
	raw, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return ParseRaw(raw)
}

// ParseRaw converts a decoded document into rows.
func ParseRaw(raw Raw) (*Result, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Variables: append([]string{}, raw.Head.Vars...),
		Rows:      make([]Row, 0, len(raw.Results.Bindings)),
	}
	for _, binding := range raw.Results.Bindings {
		row := make(Row, len(res.Variables))
		for _, v := range res.Variables {
			cell, ok := binding[v]
			if !ok {
				row[v] = nil
				continue
			}
			row[v] = codec.Decode(cell)
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// ColumnTypes returns the type of each variable, computed on first call.
func (r *Result) ColumnTypes() map[string]ColumnType {
	r.typesOnce.Do(func() {
		r.types = make(map[string]ColumnType, len(r.Variables))
		for _, v := range r.Variables {
			r.types[v] = ColumnEmpty
			for _, row := range r.Rows {
				if value := row[v]; value != nil {
					r.types[v] = typeOf(value)
					break
				}
			}
		}
	})
	return r.types
}

func typeOf(v ir.Value) ColumnType {
	switch v.(type) {
	case ir.Number:
		return ColumnNumeric
	case ir.Bool:
		return ColumnBoolean
	case ir.URIRef:
		return ColumnURI
	default:
		return ColumnCategorical
	}
}

// Table returns the display strings of every row in variable order.
// Unbound cells are empty strings.
func (r *Result) Table() [][]string {
	table := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(r.Variables))
		for j, v := range r.Variables {
			cells[j] = ir.Display(row[v])
		}
		table[i] = cells
	}
	return table
}

// DisplayRows returns each row as display strings keyed by variable.
// Unbound variables are absent.
func (r *Result) DisplayRows() []map[string]string {
	rows := make([]map[string]string, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = make(map[string]string, len(row))
		for name, v := range row {
			if v != nil {
				rows[i][name] = ir.Display(v)
			}
		}
	}
	return rows
}

var analysisIDPattern = regexp.MustCompile(`Analysis_(.+)$`)

// ExtractAnalysisID returns the identifier suffix of an analysis URI.
func ExtractAnalysisID(uri string) (string, bool) {
	m := analysisIDPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", false
	}
	return m[1], true
}
