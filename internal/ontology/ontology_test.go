package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iadas/internal/ir"
)

func TestLoadEmbedded(t *testing.T) {
	o, err := Load()
	require.NoError(t, err)

	assert.Len(t, o.Prefixes, 6)
	assert.Len(t, o.Entities, 11)

	analysis, ok := o.Entity("Analysis")
	require.True(t, ok)
	assert.Equal(t, "iadas:Analysis", analysis.Type)
	assert.Equal(t, "analysis", analysis.Key)
	assert.Equal(t, "iadas:analysisId", analysis.Properties[0].Predicate)
}

func TestDisplayRemapInjectiveAndTotal(t *testing.T) {
	o := Default()

	seen := make(map[string]string)
	for _, e := range o.Entities {
		for _, p := range e.Properties {
			if p.IsRef() {
				continue
			}
			name := p.DisplayName()
			require.NotEmpty(t, name, "%s.%s", e.Name, p.Predicate)
			prev, dup := seen[name]
			require.False(t, dup, "display %q used by %s and %s.%s", name, prev, e.Name, p.Predicate)
			seen[name] = e.Name + "." + p.Predicate

			iri, err := o.Expand(p.Predicate)
			require.NoError(t, err)
			got, ok := o.DisplayName(e.Key, iri)
			require.True(t, ok, "%s.%s", e.Name, p.Predicate)
			assert.Equal(t, name, got)
		}
	}
	assert.Len(t, o.DisplayNames(), len(seen))
}

func TestDisplayNameSharedPredicates(t *testing.T) {
	o := Default()
	iri := "http://ia-das.org/onto#sousGroupeAnalyse2"

	pop, ok := o.DisplayName("population", iri)
	require.True(t, ok)
	rel, ok := o.DisplayName("relation", iri)
	require.True(t, ok)
	assert.NotEqual(t, pop, rel)

	vd, _ := o.DisplayName("variableVD", "http://ia-das.org/onto#measure")
	vi, _ := o.DisplayName("variableVI", "http://ia-das.org/onto#measure")
	assert.Equal(t, "vdMeasure", vd)
	assert.Equal(t, "viMeasure", vi)

	_, ok = o.DisplayName("analysis", "http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	assert.False(t, ok)
}

func TestCompileRejectsCollision(t *testing.T) {
	src := []byte(`
prefixes: [{name: "iadas", iri: "http://ia-das.org/onto#"}]
entities: [
	{name: "A", key: "a", type: "iadas:A", tag: "A", properties: [{predicate: "iadas:x", field: "x", kind: "string"}]},
	{name: "B", key: "b", type: "iadas:B", tag: "B", properties: [{predicate: "iadas:y", field: "x", kind: "string"}]},
]
categories: []
`)
	_, err := Compile(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `display name "x"`)
}

func TestCompileRejectsDanglingRef(t *testing.T) {
	src := []byte(`
prefixes: [{name: "iadas", iri: "http://ia-das.org/onto#"}]
entities: [
	{name: "A", key: "a", type: "iadas:A", tag: "A", properties: [{predicate: "iadas:link", ref: "Missing"}]},
]
categories: []
`)
	_, err := Compile(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity")
}

func TestCompileRejectsUnknownPrefix(t *testing.T) {
	src := []byte(`
prefixes: []
entities: [
	{name: "A", key: "a", type: "ex:A", tag: "A", properties: [{predicate: "ex:x", field: "x", kind: "string"}]},
]
categories: []
`)
	_, err := Compile(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown prefix")
}

func TestSubjectNames(t *testing.T) {
	o := Default()
	pop, _ := o.Entity("Population")
	vd, _ := o.Entity("VariableVD")

	assert.Equal(t, "iadas-data:Population_A12", SubjectName(pop, "A12"))
	assert.Equal(t, "iadas-data:Variable_VD_A-12_b", SubjectName(vd, "A-12 b"))
	assert.Equal(t, "iadas-data:Article_10_1000_xyz_12", ArticleSubjectName("10.1000/xyz.12"))
	assert.Equal(t, "iadas-data:Article_N_A_", ArticleSubjectName(""))
}

func TestLocalIDStripsInjection(t *testing.T) {
	assert.Equal(t, "x___DROP_ALL", LocalID("x } DROP ALL"))
}

func TestCategoryAlias(t *testing.T) {
	o := Default()
	assert.Equal(t, "Intrapersonal factor related to DEAB", o.CategoryAlias("intrapersonal"))
	assert.Equal(t, "custom", o.CategoryAlias("custom"))

	color, ok := o.CategoryColor("Other behaviors")
	assert.True(t, ok)
	assert.Equal(t, "#1976D2", color)

	env, ok := o.CategoryColor(o.CategoryAlias("socio-environmental"))
	assert.True(t, ok)
	synonym, ok := o.CategoryColor("Sociocultural factor related to DEAB")
	assert.True(t, ok)
	assert.Equal(t, env, synonym)

	_, ok = o.CategoryColor("intrapersonal")
	assert.False(t, ok, "filter names are not labels")
}

func TestEntityTypesAndPredicates(t *testing.T) {
	o := Default()

	tests := []struct {
		entity    string
		typ       string
		predicate string
		kind      ir.LiteralKind
	}{
		{"Article", "iadas:SportPsychologyArticle", "bibo:journal", ir.KindString},
		{"Article", "iadas:SportPsychologyArticle", "dcterms:date", ir.KindString},
		{"Analysis", "iadas:Analysis", "iadas:analysisMultiplicity", ir.KindString},
		{"AgeStats", "iadas:AgeStatistics", "iadas:ageDescription", ir.KindString},
		{"ExperienceStats", "iadas:YearsOfExperienceStatistics", "iadas:experienceDescription", ir.KindString},
		{"ExperienceStats", "iadas:YearsOfExperienceStatistics", "iadas:meanYOE", ir.KindDecimal},
	}

	for _, tt := range tests {
		t.Run(tt.entity+"/"+tt.predicate, func(t *testing.T) {
			e, ok := o.Entity(tt.entity)
			require.True(t, ok)
			assert.Equal(t, tt.typ, e.Type)

			var found *Property
			for i := range e.Properties {
				if e.Properties[i].Predicate == tt.predicate {
					found = &e.Properties[i]
				}
			}
			require.NotNil(t, found, "%s has no %s", tt.entity, tt.predicate)
			assert.Equal(t, tt.kind, found.Kind)
		})
	}
}
