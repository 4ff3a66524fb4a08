package querybuild

import (
	"strings"

	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/queryir"
)

// MaxHierarchyDepth is the longest rdfs:subClassOf path Hierarchy follows.
const MaxHierarchyDepth = 4

// FetchRecord builds the query returning every (entity, property, value)
// of one analysis. Each entity kind is one UNION group that walks the
// links from the analysis and binds the kind's key to ?entity.
func (b *Builder) FetchRecord(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == ir.NotApplicable {
		return "", &BuildError{Code: ErrCodeMissingIdentifier, Message: "fetch needs an " + IDField}
	}
	analysis, err := b.entity("Analysis")
	if err != nil {
		return "", err
	}
	root := queryir.PName(ontology.SubjectName(analysis, id))

	paths := b.linkPaths(analysis.Name)
	var groups [][]queryir.Pattern
	for _, e := range b.onto.Entities {
		var group []queryir.Pattern
		var node queryir.Term
		switch {
		case e.Name == analysis.Name:
			node = root
		case paths[e.Name] != nil:
			prev := queryir.Term(root)
			for _, h := range paths[e.Name] {
				next := queryir.Var(h.to.Key)
				group = append(group, queryir.Triple{Subject: prev, Predicate: queryir.PName(h.predicate), Object: next})
				prev = next
			}
			node = prev
		default:
			predicate, ok := refTo(e, analysis.Name)
			if !ok {
				continue
			}
			node = queryir.Var(e.Key)
			group = append(group, queryir.Triple{Subject: node, Predicate: queryir.PName(predicate), Object: root})
		}
		group = append(group,
			queryir.Triple{Subject: node, Predicate: queryir.Var("property"), Object: queryir.Var("value")},
			queryir.Bind{Expr: queryir.Str(e.Key), As: "entity"},
		)
		groups = append(groups, group)
	}

	return b.render(queryir.Select{
		Prefixes:   b.prefixes,
		Projection: []queryir.Var{"entity", "property", "value"},
		Where:      []queryir.Pattern{queryir.Union{Groups: groups}},
	})
}

type hop struct {
	predicate string
	to        ontology.Entity
}

// linkPaths finds, for every entity reachable from start through ref
// properties, the shortest chain of links leading to it.
func (b *Builder) linkPaths(start string) map[string][]hop {
	paths := map[string][]hop{start: nil}
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		e, _ := b.onto.Entity(name)
		for _, p := range e.Properties {
			if !p.IsRef() || visited[p.Ref] {
				continue
			}
			target, ok := b.onto.Entity(p.Ref)
			if !ok {
				continue
			}
			visited[p.Ref] = true
			path := append(append([]hop(nil), paths[name]...), hop{predicate: p.Predicate, to: target})
			paths[p.Ref] = path
			queue = append(queue, p.Ref)
		}
	}
	delete(paths, start)
	return paths
}

func refTo(e ontology.Entity, target string) (string, bool) {
	for _, p := range e.Properties {
		if p.Ref == target {
			return p.Predicate, true
		}
	}
	return "", false
}

// Search builds a query listing analyses whose identifier contains term,
// case-insensitively. A non-positive limit uses DefaultSearchLimit.
func (b *Builder) Search(term string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	analysis, analysisID := queryir.Var("analysis"), queryir.Var("analysisId")
	where := []queryir.Pattern{
		queryir.Triple{Subject: analysis, Predicate: queryir.RDFType, Object: iadas("Analysis")},
		queryir.Triple{Subject: analysis, Predicate: iadas("analysisId"), Object: analysisID},
	}
	if term = strings.TrimSpace(term); term != "" {
		where = append(where, queryir.Filter{Expr: lcaseContains(analysisID, term)})
	}
	return b.render(queryir.Select{
		Prefixes:   b.prefixes,
		Projection: []queryir.Var{analysis, analysisID},
		Where:      where,
		OrderBy:    []queryir.Var{analysisID},
		Limit:      limit,
	})
}

// ListAnalyses builds a query listing every analysis with its article title.
func (b *Builder) ListAnalyses() (string, error) {
	analysis, article := queryir.Var("analysis"), queryir.Var("article")
	return b.render(queryir.Select{
		Prefixes:   b.prefixes,
		Distinct:   true,
		Projection: []queryir.Var{"analysis", "analysisId", "title"},
		Where: []queryir.Pattern{
			queryir.Triple{Subject: analysis, Predicate: queryir.RDFType, Object: iadas("Analysis")},
			queryir.Triple{Subject: analysis, Predicate: iadas("analysisId"), Object: queryir.Var("analysisId")},
			queryir.Optional{Patterns: []queryir.Pattern{
				queryir.Triple{Subject: article, Predicate: iadas("hasAnalysis"), Object: analysis},
				queryir.Triple{Subject: article, Predicate: queryir.PName("dcterms:title"), Object: queryir.Var("title")},
			}},
		},
		OrderBy: []queryir.Var{"analysisId"},
		Limit:   b.limit,
	})
}

// Hierarchy builds the concept hierarchy query for a concept label. Each
// row is tagged with ?relation (self, parent or child) and ?level, the
// length of the rdfs:subClassOf path between the concept and ?related.
func (b *Builder) Hierarchy(concept string) (string, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return "", &BuildError{Code: ErrCodeInvalidQuery, Message: "hierarchy needs a concept label"}
	}

	c, related := queryir.Var("concept"), queryir.Var("related")
	label := queryir.PName("rdfs:label")
	tag := func(relation string, level int) []queryir.Pattern {
		return []queryir.Pattern{
			queryir.Bind{Expr: queryir.Str(relation), As: "relation"},
			queryir.Bind{Expr: queryir.Number(float64(level)), As: "level"},
		}
	}

	groups := [][]queryir.Pattern{append([]queryir.Pattern{
		queryir.Triple{Subject: c, Predicate: label, Object: queryir.Var("conceptLabel")},
		queryir.Bind{Expr: c, As: "related"},
	}, tag("self", 0)...)}
	for _, inverse := range []bool{false, true} {
		relation := "parent"
		if inverse {
			relation = "child"
		}
		for depth := 1; depth <= MaxHierarchyDepth; depth++ {
			steps := make([]queryir.PName, depth)
			for i := range steps {
				steps[i] = "rdfs:subClassOf"
			}
			group := append([]queryir.Pattern{
				queryir.Triple{Subject: c, Predicate: queryir.Path{Steps: steps, Inverse: inverse}, Object: related},
			}, tag(relation, depth)...)
			groups = append(groups, group)
		}
	}

	return b.render(queryir.Select{
		Prefixes:   b.prefixes,
		Distinct:   true,
		Projection: []queryir.Var{"relation", "concept", "conceptLabel", "related", "relatedLabel", "level"},
		Where: []queryir.Pattern{
			queryir.Triple{Subject: c, Predicate: label, Object: queryir.Var("conceptLabel")},
			queryir.Union{Groups: groups},
			queryir.Opt(related, label, queryir.Var("relatedLabel")),
			queryir.Filter{Expr: queryir.Eq(
				queryir.LCase(queryir.Call{Func: "STR", Args: []queryir.Expr{queryir.Var("conceptLabel")}}),
				queryir.LCase(queryir.Str(concept)),
			)},
		},
		OrderBy: []queryir.Var{"relation", "level"},
	})
}
