package queryir

import "github.com/roach88/iadas/internal/ir"

// Query represents a complete SPARQL query or update request.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the serializer.
//
// Query types:
//   - Select: SELECT with a group graph pattern and solution modifiers
//   - InsertData: INSERT DATA with ground triples only
//   - Modify: DELETE { } INSERT { } WHERE { }
//   - Update: several update operations sharing one prefix block
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Pattern is one element of a group graph pattern.
//
// Pattern types: Triple, Block, Optional, Union, Bind, Filter.
type Pattern interface {
	patternNode()
}

// Term is a node position in a triple: subject, predicate or object.
//
// Term types: Var, PName, IRIRef, Lit, Path.
type Term interface {
	termNode()
}

// Expr is a filter or bind expression.
//
// Expr types: Var, Lit, Number, Call, Binary.
type Expr interface {
	exprNode()
}

// Prefix is a PREFIX declaration.
type Prefix struct {
	Name string // e.g. "iadas"
	IRI  string // e.g. "http://ia-das.org/onto#"
}

// Select represents a SELECT query.
//
// Semantics:
//
//	SELECT <projection> WHERE { <where> } ORDER BY <order> LIMIT <limit>
//
// A zero Limit omits the LIMIT clause.
type Select struct {
	Prefixes   []Prefix
	Distinct   bool
	Projection []Var
	Where      []Pattern
	OrderBy    []Var
	Limit      int
}

func (Select) queryNode() {}

// InsertData represents an INSERT DATA operation. Blocks must be ground:
// no variables are allowed.
type InsertData struct {
	Prefixes []Prefix
	Blocks   []Block
}

func (InsertData) queryNode() {}

// Modify represents a DELETE/INSERT/WHERE operation.
//
// When both templates are present, every subject must carry the same
// predicate set in Delete and Insert, and every variable object in Delete
// must be bound by an OPTIONAL in Where, so a previously absent value does
// not make the whole operation match nothing. Validate enforces both.
type Modify struct {
	Prefixes []Prefix
	Delete   []Block
	Insert   []Block
	Where    []Pattern
}

func (Modify) queryNode() {}

// Update groups several update operations into one request. Operations are
// InsertData or Modify values; their own Prefixes are ignored in favour of
// the request's.
type Update struct {
	Prefixes   []Prefix
	Operations []Query
}

func (Update) queryNode() {}

// Triple is a single triple pattern.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func (Triple) patternNode() {}

// PredicateObject is one "predicate object" pair of a Block.
type PredicateObject struct {
	Predicate Term
	Object    Term
}

// Block is a subject with a predicate-object list, rendered with the
// ";" shorthand. Comment, when set, is emitted as a line before the block.
type Block struct {
	Comment    string
	Subject    Term
	Properties []PredicateObject
}

func (Block) patternNode() {}

// Optional wraps patterns in OPTIONAL { }.
type Optional struct {
	Patterns []Pattern
}

func (Optional) patternNode() {}

// Union is an alternation of groups: { g1 } UNION { g2 } ...
type Union struct {
	Groups [][]Pattern
}

func (Union) patternNode() {}

// Bind assigns an expression to a variable: BIND(expr AS ?var).
type Bind struct {
	Expr Expr
	As   Var
}

func (Bind) patternNode() {}

// Filter restricts solutions: FILTER(expr).
type Filter struct {
	Expr Expr
}

func (Filter) patternNode() {}

// Var is a query variable, stored without the leading "?".
type Var string

func (Var) termNode() {}
func (Var) exprNode() {}

// PName is a prefixed name such as iadas:Analysis, or the keyword "a".
type PName string

func (PName) termNode() {}

// RDFType is the "a" keyword for rdf:type.
const RDFType PName = "a"

// IRIRef is an absolute IRI, rendered in angle brackets.
type IRIRef string

func (IRIRef) termNode() {}

// Lit is a typed literal. Rendering and escaping belong to the serializer.
type Lit struct {
	Literal ir.Literal
}

func (Lit) termNode() {}
func (Lit) exprNode() {}

// Path is a sequence property path, optionally inverted step by step:
// rdfs:subClassOf/rdfs:subClassOf or ^rdfs:subClassOf/^rdfs:subClassOf.
type Path struct {
	Steps   []PName
	Inverse bool
}

func (Path) termNode() {}

// Number is a numeric constant inside an expression.
type Number float64

func (Number) exprNode() {}

// Call is a function or cast call: LCASE(?x), xsd:decimal(?x).
type Call struct {
	Func string
	Args []Expr
}

func (Call) exprNode() {}

// Binary is an infix operation. Op is one of =, !=, <, <=, >, >=, &&, ||.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (Binary) exprNode() {}

// Str returns a plain string literal.
func Str(s string) Lit {
	return Lit{Literal: ir.Literal{Value: s, Kind: ir.KindString}}
}

// Eq builds left = right.
func Eq(left, right Expr) Binary { return Binary{Op: "=", Left: left, Right: right} }

// Or builds left || right.
func Or(left, right Expr) Binary { return Binary{Op: "||", Left: left, Right: right} }

// LCase builds LCASE(e).
func LCase(e Expr) Call { return Call{Func: "LCASE", Args: []Expr{e}} }

// Contains builds CONTAINS(haystack, needle).
func Contains(haystack, needle Expr) Call {
	return Call{Func: "CONTAINS", Args: []Expr{haystack, needle}}
}

// Cast builds a datatype cast such as xsd:decimal(e).
func Cast(datatype string, e Expr) Call { return Call{Func: datatype, Args: []Expr{e}} }

// Opt wraps a single triple in an OPTIONAL.
func Opt(s, p, o Term) Optional {
	return Optional{Patterns: []Pattern{Triple{Subject: s, Predicate: p, Object: o}}}
}

// Predicates returns the predicate names used across blocks, in first-seen
// order, excluding the "a" keyword.
func Predicates(blocks []Block) []string {
	var out []string
	seen := make(map[string]bool)
	for _, b := range blocks {
		for _, po := range b.Properties {
			name := termKey(po.Predicate)
			if po.Predicate == RDFType || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// termKey returns a comparable key for a term.
func termKey(t Term) string {
	switch v := t.(type) {
	case Var:
		return "?" + string(v)
	case PName:
		return string(v)
	case IRIRef:
		return "<" + string(v) + ">"
	case Lit:
		return "\"" + v.Literal.Value + "\"^^" + string(v.Literal.Kind)
	case Path:
		key := ""
		for i, s := range v.Steps {
			if i > 0 {
				key += "/"
			}
			if v.Inverse {
				key += "^"
			}
			key += string(s)
		}
		return key
	default:
		return ""
	}
}
