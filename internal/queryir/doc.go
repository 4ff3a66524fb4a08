// Package queryir provides the SPARQL query representation used by the
// IADAS query builder.
//
// Queries are built as small trees of sealed types and rendered to text by
// exactly one serializer (package querysparql). No code outside the
// serializer concatenates query text, so escaping and injection safety are
// decided in one place.
//
// ARCHITECTURE:
//
//	[Filter / Record] → [querybuild] → [queryir tree] → [querysparql] → text
//
// SEALED INTERFACES:
//
// Query, Pattern, Term and Expr are sealed interfaces using the marker
// method pattern. Only types in this package implement them, which lets the
// serializer use exhaustive type switches.
//
//	switch q := query.(type) {
//	case Select:
//	    // SELECT ... WHERE { }
//	case Modify:
//	    // DELETE { } INSERT { } WHERE { }
//	}
//
// VALUES:
//
// Literals carry an ir.Literal holding the unescaped value and its kind.
// Numbers in expressions are float64 constants rendered in shortest form.
// Neither is ever spliced into text by callers.
//
// VALIDATION:
//
// Validate checks the rules the builders depend on, most importantly that a
// DELETE/INSERT pair touches the same predicates and that every deleted
// value is matched through an OPTIONAL. The builder refuses to render a
// Modify that fails validation.
package queryir
