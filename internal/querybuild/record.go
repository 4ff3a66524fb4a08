package querybuild

import (
	"fmt"
	"strings"

	"github.com/roach88/iadas/internal/codec"
	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/queryir"
)

// IDField is the record field every write query is keyed on.
const IDField = "analysisId"

// Record holds the form fields of one analysis and its dependent entities,
// keyed by the field names of the ontology tables. Missing, empty and N.A.
// fields are written as the plain literal "N.A.".
type Record map[string]string

// ID returns the analysis identifier, or "" when the record has none.
func (r Record) ID() string {
	id := strings.TrimSpace(r[IDField])
	if id == ir.NotApplicable {
		return ""
	}
	return id
}

func (b *Builder) requireID(r Record) (string, error) {
	id := r.ID()
	if id == "" {
		return "", &BuildError{Code: ErrCodeMissingIdentifier, Message: "record has no " + IDField}
	}
	return id, nil
}

func (b *Builder) entity(name string) (ontology.Entity, error) {
	e, ok := b.onto.Entity(name)
	if !ok {
		return ontology.Entity{}, &BuildError{Code: ErrCodeUnknownEntity, Message: fmt.Sprintf("no entity named %q", name), Entity: name}
	}
	return e, nil
}

// subject returns the subject term of e for record r.
func (b *Builder) subject(e ontology.Entity, r Record, id string) queryir.Term {
	if e.Name == "Article" {
		return queryir.PName(ontology.ArticleSubjectName(r["doi"]))
	}
	return queryir.PName(ontology.SubjectName(e, id))
}

// object returns the value written for property p of record r.
func (b *Builder) object(p ontology.Property, r Record, id string) queryir.Term {
	switch {
	case p.IsRef():
		target, _ := b.onto.Entity(p.Ref)
		return b.subject(target, r, id)
	case p.IsConst():
		return queryir.Str(p.Const)
	default:
		return queryir.Lit{Literal: codec.Literal(r[p.Field], p.Kind)}
	}
}

// insertBlock builds the INSERT DATA block of one entity.
func (b *Builder) insertBlock(e ontology.Entity, r Record, id string) queryir.Block {
	block := queryir.Block{
		Comment:    e.Name,
		Subject:    b.subject(e, r, id),
		Properties: []queryir.PredicateObject{{Predicate: queryir.RDFType, Object: queryir.PName(e.Type)}},
	}
	for _, p := range e.Properties {
		block.Properties = append(block.Properties, queryir.PredicateObject{
			Predicate: queryir.PName(p.Predicate),
			Object:    b.object(p, r, id),
		})
	}
	return block
}

// Insert builds one INSERT DATA request covering every entity of the record.
func (b *Builder) Insert(r Record) (string, error) {
	id, err := b.requireID(r)
	if err != nil {
		return "", err
	}
	q := queryir.InsertData{Prefixes: b.prefixes}
	for _, e := range b.onto.Entities {
		q.Blocks = append(q.Blocks, b.insertBlock(e, r, id))
	}
	return b.render(q)
}

// InsertEntity builds INSERT DATA for a single entity kind.
func (b *Builder) InsertEntity(name string, r Record) (string, error) {
	id, err := b.requireID(r)
	if err != nil {
		return "", err
	}
	e, err := b.entity(name)
	if err != nil {
		return "", err
	}
	return b.render(queryir.InsertData{Prefixes: b.prefixes, Blocks: []queryir.Block{b.insertBlock(e, r, id)}})
}

// modify builds the DELETE/INSERT/WHERE operation of one entity. Both
// templates come from the same property loop, so they always carry the
// same predicates. Literal values are matched through OPTIONAL so that a
// previously absent value does not stop the update.
//
// The article is located through its link to the analysis rather than its
// DOI-derived name, since the DOI itself may be what is being edited.
func (b *Builder) modify(e ontology.Entity, r Record, id string) queryir.Modify {
	var subject queryir.Term
	var where []queryir.Pattern
	if e.Name == "Article" {
		subject = queryir.Var("article")
		analysis, _ := b.onto.Entity("Analysis")
		where = append(where, queryir.Triple{
			Subject:   subject,
			Predicate: iadas("hasAnalysis"),
			Object:    queryir.PName(ontology.SubjectName(analysis, id)),
		})
	} else {
		subject = b.subject(e, r, id)
	}
	where = append(where, queryir.Triple{Subject: subject, Predicate: queryir.RDFType, Object: queryir.PName(e.Type)})

	del := queryir.Block{Subject: subject}
	ins := queryir.Block{Subject: subject}
	for _, p := range e.Properties {
		pred := queryir.PName(p.Predicate)
		value := b.object(p, r, id)
		old := value
		if !p.IsRef() && !p.IsConst() {
			old = queryir.Var("old_" + p.DisplayName())
			where = append(where, queryir.Opt(subject, pred, old))
		}
		del.Properties = append(del.Properties, queryir.PredicateObject{Predicate: pred, Object: old})
		ins.Properties = append(ins.Properties, queryir.PredicateObject{Predicate: pred, Object: value})
	}

	return queryir.Modify{
		Delete: []queryir.Block{del},
		Insert: []queryir.Block{ins},
		Where:  where,
	}
}

// Update builds one SPARQL Update request with a DELETE/INSERT/WHERE
// operation per entity of the record.
func (b *Builder) Update(r Record) (string, error) {
	id, err := b.requireID(r)
	if err != nil {
		return "", err
	}
	q := queryir.Update{Prefixes: b.prefixes}
	for _, e := range b.onto.Entities {
		q.Operations = append(q.Operations, b.modify(e, r, id))
	}
	return b.render(q)
}

// UpdateEntity builds the DELETE/INSERT/WHERE operation of one entity kind.
func (b *Builder) UpdateEntity(name string, r Record) (string, error) {
	id, err := b.requireID(r)
	if err != nil {
		return "", err
	}
	e, err := b.entity(name)
	if err != nil {
		return "", err
	}
	m := b.modify(e, r, id)
	m.Prefixes = b.prefixes
	return b.render(m)
}

// Delete builds a request removing every triple of the analysis and its
// dependent entities, and the article's link to it. The article itself is
// kept since it may describe other analyses.
func (b *Builder) Delete(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == ir.NotApplicable {
		return "", &BuildError{Code: ErrCodeMissingIdentifier, Message: "delete needs an " + IDField}
	}

	analysis, err := b.entity("Analysis")
	if err != nil {
		return "", err
	}
	analysisSubject := queryir.PName(ontology.SubjectName(analysis, id))

	link := queryir.Block{Subject: queryir.Var("article"), Properties: []queryir.PredicateObject{
		{Predicate: iadas("hasAnalysis"), Object: analysisSubject},
	}}
	q := queryir.Update{Prefixes: b.prefixes}
	q.Operations = append(q.Operations, queryir.Modify{
		Delete: []queryir.Block{link},
		Where:  []queryir.Pattern{queryir.Triple{Subject: link.Subject, Predicate: iadas("hasAnalysis"), Object: analysisSubject}},
	})

	for _, e := range b.onto.Entities {
		if e.Name == "Article" {
			continue
		}
		s := queryir.PName(ontology.SubjectName(e, id))
		q.Operations = append(q.Operations, queryir.Modify{
			Delete: []queryir.Block{{Subject: s, Properties: []queryir.PredicateObject{
				{Predicate: queryir.Var("p"), Object: queryir.Var("o")},
			}}},
			Where: []queryir.Pattern{queryir.Triple{Subject: s, Predicate: queryir.Var("p"), Object: queryir.Var("o")}},
		})
	}
	return b.render(q)
}
