package ir

import (
	"encoding/json"
	"math"
	"strconv"
)

// Value is a sealed interface over decoded SPARQL result cells.
// Only String, Number, Bool and URIRef implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// String is an untyped or string-typed literal, passed through unchanged.
type String string

func (String) irValue() {}

// Number is an integer- or decimal-typed literal.
//
// A numeric literal whose text does not parse is decoded as NaN so the
// anomaly stays visible downstream instead of becoming zero.
type Number float64

func (Number) irValue() {}

// MarshalJSON encodes non-finite numbers as strings since JSON has no
// representation for them.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(formatNumber(f))
	}
	return []byte(formatNumber(f)), nil
}

// IsFinite reports whether the number is neither NaN nor infinite.
func (n Number) IsFinite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Bool is a boolean-typed literal.
type Bool bool

func (Bool) irValue() {}

// URIRef is a resource reference. Label is the last path or fragment
// segment of URI.
type URIRef struct {
	URI   string `json:"uri"`
	Label string `json:"label"`
}

func (URIRef) irValue() {}

// Display returns the presentation string of a value: the label for a
// URIRef, the shortest decimal form for a number, "true"/"false" for a
// boolean. A nil value displays as the empty string.
func Display(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Number:
		return formatNumber(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case URIRef:
		return val.Label
	case *URIRef:
		return val.Label
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// LiteralKind selects the XSD datatype emitted for a literal.
type LiteralKind string

const (
	KindString  LiteralKind = "string"
	KindInteger LiteralKind = "integer"
	KindDecimal LiteralKind = "decimal"
	KindDate    LiteralKind = "date"
)

// Valid reports whether k is one of the supported literal kinds.
func (k LiteralKind) Valid() bool {
	switch k {
	case KindString, KindInteger, KindDecimal, KindDate:
		return true
	}
	return false
}

// NotApplicable is the sentinel for a field that does not apply to a record.
// It is always emitted as a plain string literal.
const NotApplicable = "N.A."

// Literal is a typed literal destined for query text.
// Value is stored unescaped.
type Literal struct {
	Value string      `json:"value"`
	Kind  LiteralKind `json:"kind"`
}

// IsNotApplicable reports whether the literal is the N.A. sentinel.
func (l Literal) IsNotApplicable() bool {
	return l.Value == NotApplicable
}
