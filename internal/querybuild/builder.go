// Package querybuild turns filters and records into SPARQL text.
//
// Every builder assembles a queryir tree from the ontology tables and hands
// it to querysparql for rendering. Builders either return complete query
// text or a *BuildError; partial text is never returned.
package querybuild

import (
	"strings"

	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/queryir"
	"github.com/roach88/iadas/internal/querysparql"
)

// DefaultLimit caps SELECT results when the filter sets no limit.
const DefaultLimit = 10000

// DefaultSearchLimit caps Search results.
const DefaultSearchLimit = 50

// Builder builds queries against one ontology. It holds no mutable state
// and is safe for concurrent use.
type Builder struct {
	onto     *ontology.Ontology
	compiler *querysparql.Compiler
	prefixes []queryir.Prefix
	limit    int
}

// Option configures a Builder.
type Option func(*Builder)

// WithDefaultLimit overrides the SELECT limit used when a filter sets none.
func WithDefaultLimit(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.limit = n
		}
	}
}

// New creates a Builder over onto.
func New(onto *ontology.Ontology, opts ...Option) *Builder {
	b := &Builder{
		onto:     onto,
		compiler: querysparql.NewCompiler(),
		limit:    DefaultLimit,
	}
	for _, p := range onto.Prefixes {
		b.prefixes = append(b.prefixes, queryir.Prefix{Name: p.Name, IRI: p.IRI})
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ontology returns the tables the builder reads.
func (b *Builder) Ontology() *ontology.Ontology {
	return b.onto
}

// render validates q and compiles it to text.
func (b *Builder) render(q queryir.Query) (string, error) {
	if result := queryir.Validate(q); !result.Valid {
		return "", &BuildError{Code: ErrCodeInvalidQuery, Message: strings.Join(result.Problems, "; ")}
	}
	text, err := b.compiler.Compile(q)
	if err != nil {
		return "", &BuildError{Code: ErrCodeInvalidQuery, Message: err.Error()}
	}
	return text, nil
}
