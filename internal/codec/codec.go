// Package codec converts between application values and SPARQL syntax.
//
// Literal and Format are the only producers of literal text in the module;
// every query serializer goes through Format, so escaping is decided here
// and nowhere else. Decode is the inverse direction: it turns a SPARQL 1.1
// JSON result cell into a typed ir.Value.
package codec

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/iadas/internal/ir"
)

// XSD namespace used for datatype suffixes.
const XSDNamespace = "http://www.w3.org/2001/XMLSchema#"

// Literal builds a typed literal for value.
//
// Empty values and the N.A. sentinel always produce the plain string "N.A."
// regardless of the requested kind. Unknown kinds fall back to string.
func Literal(value string, kind ir.LiteralKind) ir.Literal {
	if value == "" || value == ir.NotApplicable {
		return ir.Literal{Value: ir.NotApplicable, Kind: ir.KindString}
	}
	if !kind.Valid() {
		kind = ir.KindString
	}
	return ir.Literal{Value: value, Kind: kind}
}

// literalEscaper escapes the characters that could end or corrupt a quoted
// SPARQL string. Backslash must be first so later escapes are not doubled.
var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
)

// Format renders a literal as SPARQL text: a double-quoted, escaped string
// with an xsd datatype suffix for typed kinds. Apart from escaping, the
// value's bytes are emitted unchanged.
func Format(lit ir.Literal) string {
	if lit.Value == "" || lit.IsNotApplicable() {
		return `"` + ir.NotApplicable + `"`
	}

	var b strings.Builder
	b.WriteByte('"')
	b.WriteString(literalEscaper.Replace(lit.Value))
	b.WriteByte('"')

	switch lit.Kind {
	case ir.KindInteger:
		b.WriteString("^^xsd:integer")
	case ir.KindDecimal:
		b.WriteString("^^xsd:decimal")
	case ir.KindDate:
		b.WriteString("^^xsd:date")
	}
	return b.String()
}

// FormatValue is shorthand for Format(Literal(value, kind)).
func FormatValue(value string, kind ir.LiteralKind) string {
	return Format(Literal(value, kind))
}

// Cell is one bound value in a SPARQL 1.1 JSON result row.
type Cell struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Decode converts a result cell into a typed value.
//
// URIs decode to URIRef with their last segment as label. Literals are
// coerced by datatype: decimal/double/float parse as floating point,
// integer/int as integer, boolean compares against "true". A numeric
// literal that does not parse in full ("12abc") decodes to NaN. Everything
// else is returned as the raw string.
func Decode(cell Cell) ir.Value {
	if cell.Type == "uri" {
		return ir.URIRef{URI: cell.Value, Label: LastSegment(cell.Value)}
	}

	dt := strings.ToLower(cell.Datatype)
	switch {
	case dt == "":
		return ir.String(cell.Value)
	case strings.Contains(dt, "decimal"), strings.Contains(dt, "double"), strings.Contains(dt, "float"):
		return ir.Number(parseFloat(cell.Value))
	case strings.Contains(dt, "integer"), strings.Contains(dt, "int"):
		return ir.Number(parseInteger(cell.Value))
	case strings.Contains(dt, "boolean"):
		return ir.Bool(cell.Value == "true")
	default:
		return ir.String(cell.Value)
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseInteger accepts integer text, and truncates decimal text the way a
// lenient integer parse would ("3.7" is 3).
func parseInteger(s string) float64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return math.Trunc(f)
	}
	return math.NaN()
}

// LastSegment returns the fragment of a URI, or its last path segment when
// there is no fragment. A URI ending in a separator yields "".
func LastSegment(uri string) string {
	if i := strings.LastIndexByte(uri, '#'); i >= 0 {
		return uri[i+1:]
	}
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
