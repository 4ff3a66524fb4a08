// Package hierarchy resolves concept hierarchy query results into the
// self/parents/children envelope rendered by the concept explorer.
//
// Resolve never fails: a malformed payload yields an envelope with
// Success false and an Error message, so callers always have a shape to
// render and can still tell a degraded answer from a real one.
package hierarchy

import (
	"cmp"
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/iadas/internal/codec"
	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/results"
)

// Relation tags emitted by the hierarchy query.
const (
	RelationSelf   = "self"
	RelationParent = "parent"
	RelationChild  = "child"
)

// UnknownLabel is the label of a node with no URI.
const UnknownLabel = "Unknown"

// ErrEmptyConcept is reported when no concept label was given.
var ErrEmptyConcept = errors.New("concept label required")

// Node is one concept of the hierarchy.
type Node struct {
	URI             string  `json:"uri"`
	Label           string  `json:"label"`
	OriginalConcept string  `json:"originalConcept"`
	OriginalLabel   string  `json:"originalLabel"`
	Level           float64 `json:"level"`
	DisplayLevel    string  `json:"displayLevel,omitempty"`
}

// Envelope is the resolved hierarchy of one concept.
type Envelope struct {
	Concept      string    `json:"concept"`
	Self         *Node     `json:"self"`
	Parents      []Node    `json:"parents"`
	Children     []Node    `json:"children"`
	TotalResults int       `json:"totalResults"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Resolver builds envelopes. The zero value is not usable; use New.
type Resolver struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the time source of envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger used for dropped bindings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Failure returns the empty envelope reporting err.
func (r *Resolver) Failure(concept string, err error) Envelope {
	return Envelope{
		Concept:   concept,
		Parents:   []Node{},
		Children:  []Node{},
		Success:   false,
		Error:     err.Error(),
		Timestamp: r.now().UTC(),
	}
}

// ResolveJSON decodes a SPARQL JSON payload and resolves it.
func (r *Resolver) ResolveJSON(data []byte, concept string) Envelope {
	raw, err := results.Decode(data)
	if err != nil {
		return r.Failure(concept, err)
	}
	return r.Resolve(raw, concept)
}

// Resolve partitions the bindings of raw by their relation tag. At most
// one self node is kept (the first). Parents are ordered by ascending raw
// level, ties keeping binding order, and numbered N1, N2, ... in that
// order. Bindings with any other tag are dropped with a warning.
func (r *Resolver) Resolve(raw results.Raw, concept string) Envelope {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return r.Failure(concept, ErrEmptyConcept)
	}
	if err := raw.Validate(); err != nil {
		r.logger.Warn("invalid hierarchy payload", "concept", concept, "err", err)
		return r.Failure(concept, err)
	}

	env := Envelope{
		Concept:      concept,
		Parents:      []Node{},
		Children:     []Node{},
		TotalResults: len(raw.Results.Bindings),
		Success:      true,
		Timestamp:    r.now().UTC(),
	}

	for _, binding := range raw.Results.Bindings {
		node := nodeOf(binding)
		switch relation := binding["relation"].Value; relation {
		case RelationParent:
			env.Parents = append(env.Parents, node)
		case RelationChild:
			env.Children = append(env.Children, node)
		case RelationSelf:
			if env.Self == nil {
				env.Self = &node
			}
		default:
			r.logger.Warn("dropping hierarchy binding", "concept", concept, "relation", relation, "related", node.URI)
		}
	}

	slices.SortStableFunc(env.Parents, func(a, b Node) int {
		return cmp.Compare(a.Level, b.Level)
	})
	for i := range env.Parents {
		env.Parents[i].DisplayLevel = DisplayLevel(i)
	}
	return env
}

// DisplayLevel returns the label of the parent at sorted position i.
func DisplayLevel(i int) string {
	return "N" + strconv.Itoa(i+1)
}

func nodeOf(binding map[string]codec.Cell) Node {
	concept := binding["concept"].Value
	related := binding["related"].Value
	return Node{
		URI:             related,
		Label:           labelOr(binding["relatedLabel"].Value, related),
		OriginalConcept: concept,
		OriginalLabel:   labelOr(binding["conceptLabel"].Value, concept),
		Level:           levelOf(binding["level"]),
	}
}

func labelOr(label, uri string) string {
	if label != "" {
		return label
	}
	return ReadableLabel(uri)
}

// levelOf reads a numeric level. Missing or non-numeric levels sort first.
func levelOf(cell codec.Cell) float64 {
	if cell.Value == "" {
		return 0
	}
	if cell.Datatype == "" {
		cell.Datatype = codec.XSDNamespace + "decimal"
	}
	n, ok := codec.Decode(cell).(ir.Number)
	if !ok || !n.IsFinite() {
		return 0
	}
	return float64(n)
}

var (
	upperPattern = regexp.MustCompile(`([A-Z])`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// ReadableLabel derives a label from the last segment of uri by splitting
// CamelCase words: "BodyImageConcern" becomes "Body Image Concern".
func ReadableLabel(uri string) string {
	if uri == "" {
		return UnknownLabel
	}
	last := uri
	if i := strings.LastIndexAny(uri, "#/"); i >= 0 {
		last = uri[i+1:]
	}
	readable := upperPattern.ReplaceAllString(last, " $1")
	readable = spacePattern.ReplaceAllString(strings.TrimSpace(readable), " ")
	if readable == "" {
		return UnknownLabel
	}
	return readable
}
