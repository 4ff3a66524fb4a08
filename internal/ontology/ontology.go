// Package ontology holds the IADAS vocabulary tables: prefixes, entity
// kinds, their ordered property lists and the display remap used when
// decoding fetched records.
//
// The tables are written in CUE (ontology.cue), embedded in the binary and
// compiled once. One table drives INSERT, DELETE/INSERT and record decoding,
// so the write path and the read path cannot drift apart.
package ontology

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/iadas/internal/ir"
)

//go:embed ontology.cue
var ontologySource []byte

// Prefix is a namespace prefix declaration.
type Prefix struct {
	Name string `json:"name"`
	IRI  string `json:"iri"`
}

// Property is one row of an entity's property list. Exactly one of Field,
// Const or Ref is set.
type Property struct {
	Predicate string         `json:"predicate"`
	Field     string         `json:"field,omitempty"`
	Kind      ir.LiteralKind `json:"kind,omitempty"`
	Const     string         `json:"const,omitempty"`
	Display   string         `json:"display,omitempty"`
	Ref       string         `json:"ref,omitempty"`
}

// IsRef reports whether the property links to another entity.
func (p Property) IsRef() bool { return p.Ref != "" }

// IsConst reports whether the property carries a fixed value.
func (p Property) IsConst() bool { return p.Const != "" }

// DisplayName is the record field a fetched value of this property is
// stored under. Refs have no display name.
func (p Property) DisplayName() string {
	if p.IsRef() {
		return ""
	}
	if p.Display != "" {
		return p.Display
	}
	return p.Field
}

// Entity describes one kind of resource written for an analysis.
type Entity struct {
	Name       string     `json:"name"`
	Key        string     `json:"key"`
	Type       string     `json:"type"`
	Tag        string     `json:"tag"`
	Properties []Property `json:"properties"`
}

// Category is a factor category accepted by the select filter.
type Category struct {
	Name     string   `json:"name"`
	Alias    string   `json:"alias"`
	Color    string   `json:"color"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Ontology is the compiled vocabulary. It is immutable after Load.
type Ontology struct {
	Prefixes   []Prefix
	Entities   []Entity
	Categories []Category

	byName  map[string]int
	byKey   map[string]int
	display map[DisplayKey]string
}

// DisplayKey identifies a fetched value: the entity group it was bound
// under and the full predicate IRI.
type DisplayKey struct {
	Entity    string
	Predicate string
}

// Load compiles and validates the embedded ontology tables.
func Load() (*Ontology, error) {
	return Compile(ontologySource)
}

var (
	defaultOnce sync.Once
	defaultOnto *Ontology
	defaultErr  error
)

// Default returns the embedded ontology, compiled on first use.
// It panics if the embedded tables are invalid, which is a build defect.
func Default() *Ontology {
	defaultOnce.Do(func() {
		defaultOnto, defaultErr = Load()
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("ontology: embedded tables are invalid: %v", defaultErr))
	}
	return defaultOnto
}

// Compile builds an Ontology from CUE source.
func Compile(src []byte) (*Ontology, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename("ontology.cue"))
	if err := v.Err(); err != nil {
		return nil, &LoadError{Field: "cue", Message: err.Error()}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Field: "cue", Message: err.Error()}
	}

	o := &Ontology{}
	if err := decodePath(v, "prefixes", &o.Prefixes); err != nil {
		return nil, err
	}
	if err := decodePath(v, "entities", &o.Entities); err != nil {
		return nil, err
	}
	if err := decodePath(v, "categories", &o.Categories); err != nil {
		return nil, err
	}

	if err := o.index(); err != nil {
		return nil, err
	}
	return o, nil
}

func decodePath(v cue.Value, path string, target any) error {
	sub := v.LookupPath(cue.ParsePath(path))
	if !sub.Exists() {
		return &LoadError{Field: path, Message: "missing"}
	}
	if err := sub.Decode(target); err != nil {
		return &LoadError{Field: path, Message: err.Error()}
	}
	return nil
}

// index builds lookup tables and checks the invariants every consumer
// relies on: unique entity names and keys, refs that resolve, known
// prefixes, and a display remap that is total and injective.
func (o *Ontology) index() error {
	o.byName = make(map[string]int, len(o.Entities))
	o.byKey = make(map[string]int, len(o.Entities))
	o.display = make(map[DisplayKey]string)

	var errs []error
	for i, e := range o.Entities {
		if _, dup := o.byName[e.Name]; dup {
			errs = append(errs, &LoadError{Field: "entities." + e.Name, Message: "duplicate entity name"})
		}
		if _, dup := o.byKey[e.Key]; dup {
			errs = append(errs, &LoadError{Field: "entities." + e.Name, Message: fmt.Sprintf("duplicate entity key %q", e.Key)})
		}
		o.byName[e.Name] = i
		o.byKey[e.Key] = i
	}

	owners := make(map[string]string)
	for _, e := range o.Entities {
		for _, p := range e.Properties {
			iri, err := o.Expand(p.Predicate)
			if err != nil {
				errs = append(errs, &LoadError{Field: "entities." + e.Name, Message: err.Error()})
				continue
			}
			if p.IsRef() {
				if _, ok := o.byName[p.Ref]; !ok {
					errs = append(errs, &LoadError{Field: "entities." + e.Name, Message: fmt.Sprintf("ref %q to unknown entity", p.Ref)})
				}
				continue
			}
			name := p.DisplayName()
			if name == "" {
				errs = append(errs, &LoadError{Field: "entities." + e.Name, Message: fmt.Sprintf("%s has no display name", p.Predicate)})
				continue
			}
			if prev, taken := owners[name]; taken {
				errs = append(errs, &LoadError{
					Field:   "entities." + e.Name,
					Message: fmt.Sprintf("display name %q of %s already used by %s", name, p.Predicate, prev),
				})
				continue
			}
			owners[name] = e.Name + "." + p.Predicate
			o.display[DisplayKey{Entity: e.Key, Predicate: iri}] = name
		}
	}
	return errors.Join(errs...)
}

// Entity returns the entity with the given name.
func (o *Ontology) Entity(name string) (Entity, bool) {
	i, ok := o.byName[name]
	if !ok {
		return Entity{}, false
	}
	return o.Entities[i], true
}

// EntityByKey returns the entity bound under the given fetch key.
func (o *Ontology) EntityByKey(key string) (Entity, bool) {
	i, ok := o.byKey[key]
	if !ok {
		return Entity{}, false
	}
	return o.Entities[i], true
}

// DisplayName maps a fetched (entity key, predicate IRI) pair to its record
// field. Unknown predicates (rdf:type, links) report false.
func (o *Ontology) DisplayName(entityKey, predicateIRI string) (string, bool) {
	name, ok := o.display[DisplayKey{Entity: entityKey, Predicate: predicateIRI}]
	return name, ok
}

// DisplayNames returns every display name in table order.
func (o *Ontology) DisplayNames() []string {
	var names []string
	for _, e := range o.Entities {
		for _, p := range e.Properties {
			if n := p.DisplayName(); n != "" {
				names = append(names, n)
			}
		}
	}
	return names
}

// Expand turns a prefixed name into a full IRI.
func (o *Ontology) Expand(pname string) (string, error) {
	prefix, local, ok := strings.Cut(pname, ":")
	if !ok {
		return "", fmt.Errorf("%q is not a prefixed name", pname)
	}
	for _, p := range o.Prefixes {
		if p.Name == prefix {
			return p.IRI + local, nil
		}
	}
	return "", fmt.Errorf("unknown prefix %q in %q", prefix, pname)
}

// CategoryAlias returns the ontology label for a filter category, or the
// input unchanged when it is not a known category name.
func (o *Ontology) CategoryAlias(name string) string {
	for _, c := range o.Categories {
		if c.Name == name {
			return c.Alias
		}
	}
	return name
}

// CategoryColor returns the palette color for an ontology category label
// or one of its synonyms.
func (o *Ontology) CategoryColor(label string) (string, bool) {
	for _, c := range o.Categories {
		if c.Alias == label || slices.Contains(c.Synonyms, label) {
			return c.Color, true
		}
	}
	return "", false
}

var (
	localIDPattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	doiPattern     = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// LocalID cleans a record identifier for use inside a subject local name.
func LocalID(id string) string {
	return localIDPattern.ReplaceAllString(id, "_")
}

// SubjectName returns the prefixed subject name of an entity for the given
// analysis identifier, e.g. iadas-data:Population_A12.
func SubjectName(e Entity, id string) string {
	return "iadas-data:" + e.Tag + "_" + LocalID(id)
}

// ArticleSubjectName returns the prefixed subject name of an article. The
// article is identified by its DOI; N.A. is used when the DOI is missing.
func ArticleSubjectName(doi string) string {
	if doi == "" {
		doi = ir.NotApplicable
	}
	return "iadas-data:Article_" + doiPattern.ReplaceAllString(doi, "_")
}

// LoadError reports an invalid ontology table.
type LoadError struct {
	Field   string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
