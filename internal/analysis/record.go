package analysis

import (
	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/results"
)

// Record sources.
const (
	SourceFuseki = "fuseki"
	SourceError  = "error"
)

// Missing is shown for panel fields with no value.
const Missing = "N/A"

// Record is the display form of one analysis: every fetched literal keyed
// by its display name.
type Record struct {
	ID     string            `json:"id"`
	Source string            `json:"source"`
	Fields map[string]string `json:"fields"`
	Error  string            `json:"error,omitempty"`
}

// IsError reports whether the record stands for a failed fetch.
func (r Record) IsError() bool {
	return r.Source == SourceError
}

// Field returns a display field, or "" when absent.
func (r Record) Field(name string) string {
	return r.Fields[name]
}

// ErrorRecord returns the record reported for an analysis that could not
// be fetched.
func ErrorRecord(id string, err error) Record {
	return Record{
		ID:     id,
		Source: SourceError,
		Fields: map[string]string{},
		Error:  err.Error(),
	}
}

// Decode builds the record of id from the (entity, property, value) rows
// returned by the record fetch query. Rows whose (entity, predicate) pair
// has no display name, such as rdf:type or links, are skipped. When a
// predicate carries several values the first one is kept.
func Decode(onto *ontology.Ontology, id string, res *results.Result) Record {
	rec := Record{ID: id, Source: SourceFuseki, Fields: map[string]string{}}
	for _, row := range res.Rows {
		entity := ir.Display(row["entity"])
		property, ok := row["property"].(ir.URIRef)
		if !ok || row["value"] == nil {
			continue
		}
		name, ok := onto.DisplayName(entity, property.URI)
		if !ok {
			continue
		}
		if _, seen := rec.Fields[name]; seen {
			continue
		}
		rec.Fields[name] = ir.Display(row["value"])
	}
	return rec
}

// PanelField is one labelled line of the detailed analysis view.
type PanelField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Panel is the summary of a record shown when an analysis is selected in
// the network.
type Panel struct {
	ID         string       `json:"id"`
	Source     string       `json:"source"`
	Title      string       `json:"title"`
	VI         string       `json:"vi"`
	VD         string       `json:"vd"`
	CategoryVI string       `json:"categoryVI"`
	CategoryVD string       `json:"categoryVD"`
	Relation   string       `json:"relation"`
	Moderator  string       `json:"moderator"`
	Mediator   string       `json:"mediator"`
	Error      string       `json:"error,omitempty"`
	Details    []PanelField `json:"details"`
}

// panelDetails lists the detailed view in display order. Each line shows
// the first non-empty field of its list.
var panelDetails = []struct {
	label  string
	fields []string
}{
	{"Authors", []string{"authors"}},
	{"Year", []string{"year"}},
	{"DOI", []string{"doi"}},
	{"Journal", []string{"journal"}},
	{"Country", []string{"country"}},
	{"Types of study", []string{"studyType"}},
	{"N", []string{"sampleSize"}},
	{"Population", []string{"population"}},
	{"Sexe", []string{"gender"}},
	{"Age", []string{"ageDescription"}},
	{"AgeForAnalysis_Mean", []string{"meanAge"}},
	{"SDAnalysis", []string{"sdAge"}},
	{"MinAge", []string{"minAge"}},
	{"MaxAge", []string{"maxAge"}},
	{"BMI", []string{"bmiDescription"}},
	{"BMI_Mean", []string{"meanBMI"}},
	{"BMI_SD", []string{"sdBMI"}},
	{"Sport_name", []string{"sportName"}},
	{"Sport_level", []string{"sportLevel"}},
	{"Type_of_sport_practice", []string{"sportPracticeType"}},
	{"Subcategory_of_sport", []string{"sportSubcategory"}},
	{"ACADS", []string{"acads", "vdName"}},
	{"VD", []string{"vdName"}},
	{"Measure_VD", []string{"vdMeasure"}},
	{"VI", []string{"viName"}},
	{"Measure_VI", []string{"viMeasure"}},
	{"Mediator", []string{"mediator"}},
	{"Measure_Mediator", []string{"mediatorMeasure"}},
	{"Moderator", []string{"moderator"}},
	{"Measure_Moderator", []string{"moderatorMeasure"}},
	{"Resultat_de_relation", []string{"resultatRelation"}},
	{"Degre_r", []string{"degreR"}},
	{"Degre_p", []string{"degreP"}},
	{"Signe_p", []string{"signeP"}},
	{"Degre_beta", []string{"degreBeta"}},
	{"Degre_RS", []string{"degreR2"}},
	{"Type_of_analysis", []string{"typeOfAnalysis"}},
	{"N_mobilise_dans_les_analyses", []string{"sampleSizeMobilized"}},
	{"Authors_conclusions", []string{"authorConclusion"}},
	{"Limites", []string{"limites"}},
	{"Perspectives", []string{"perspectives"}},
	{"Multiplicity_analyse", []string{"analysisMultiplicity"}},
}

// ToPanel summarises a record. Missing values show as N/A; a record
// without title is titled after its id.
func ToPanel(r Record) Panel {
	title := first(r, "title")
	if title == "" {
		title = "Analyse " + r.ID
	}
	p := Panel{
		ID:         r.ID,
		Source:     r.Source,
		Title:      title,
		VI:         orMissing(first(r, "viName")),
		VD:         orMissing(first(r, "vdName", "acads")),
		CategoryVI: orMissing(first(r, "viCategory")),
		CategoryVD: orMissing(first(r, "vdCategory")),
		Relation:   orMissing(first(r, "resultatRelation")),
		Moderator:  orMissing(first(r, "moderator")),
		Mediator:   orMissing(first(r, "mediator")),
		Error:      r.Error,
	}

	p.Details = []PanelField{{"Analysis_ID", r.ID}, {"Title", title}}
	if r.IsError() {
		p.Details = append(p.Details, PanelField{"ERROR", r.Error})
		return p
	}
	for _, d := range panelDetails {
		p.Details = append(p.Details, PanelField{d.label, orMissing(first(r, d.fields...))})
	}
	return p
}

func first(r Record, fields ...string) string {
	for _, f := range fields {
		if v := r.Fields[f]; v != "" {
			return v
		}
	}
	return ""
}

func orMissing(v string) string {
	if v == "" {
		return Missing
	}
	return v
}
