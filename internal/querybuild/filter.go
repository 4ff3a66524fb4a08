package querybuild

import (
	"fmt"

	"github.com/roach88/iadas/internal/queryir"
)

// Filter holds the optional criteria of a SELECT. Empty strings and nil
// pointers are absent and contribute nothing to the query. A zero numeric
// value behind a non-nil pointer is a real bound. Bounds and counts are
// non-negative; RelationDirection is one of +, - and NS; VariableType is
// VD or VI.
type Filter struct {
	SelectedVI          string   `json:"selectedVI,omitempty" yaml:"selectedVI,omitempty"`
	SelectedVD          string   `json:"selectedVD,omitempty" yaml:"selectedVD,omitempty"`
	SportType           string   `json:"sportType,omitempty" yaml:"sportType,omitempty"`
	ExperienceYears     string   `json:"experienceYears,omitempty" yaml:"experienceYears,omitempty"`
	PracticeFrequency   string   `json:"practiceFrequency,omitempty" yaml:"practiceFrequency,omitempty"`
	SportName           string   `json:"sportName,omitempty" yaml:"sportName,omitempty"`
	SportLevel          string   `json:"sportLevel,omitempty" yaml:"sportLevel,omitempty"`
	SportPracticeType   string   `json:"sportPracticeType,omitempty" yaml:"sportPracticeType,omitempty"`
	Gender              string   `json:"gender,omitempty" yaml:"gender,omitempty"`
	MinAge              *float64 `json:"minAge,omitempty" yaml:"minAge,omitempty" validate:"omitempty,gte=0"`
	MaxAge              *float64 `json:"maxAge,omitempty" yaml:"maxAge,omitempty" validate:"omitempty,gte=0"`
	MinSampleSize       *int     `json:"minSampleSize,omitempty" yaml:"minSampleSize,omitempty" validate:"omitempty,gte=0"`
	MaxSampleSize       *int     `json:"maxSampleSize,omitempty" yaml:"maxSampleSize,omitempty" validate:"omitempty,gte=0"`
	SignificantRelation *bool    `json:"significantRelation,omitempty" yaml:"significantRelation,omitempty"`
	RelationDirection   string   `json:"relationDirection,omitempty" yaml:"relationDirection,omitempty" validate:"omitempty,oneof=+ - NS"`
	ResultatRelation    string   `json:"resultatRelation,omitempty" yaml:"resultatRelation,omitempty"`
	FactorCategory      string   `json:"factorCategory,omitempty" yaml:"factorCategory,omitempty"`
	AnalysisType        string   `json:"analysisType,omitempty" yaml:"analysisType,omitempty"`
	Moderator           string   `json:"moderator,omitempty" yaml:"moderator,omitempty"`
	Mediator            string   `json:"mediator,omitempty" yaml:"mediator,omitempty"`
	PublicationYear     *int     `json:"publicationYear,omitempty" yaml:"publicationYear,omitempty" validate:"omitempty,gte=1000,lte=9999"`
	Country             string   `json:"country,omitempty" yaml:"country,omitempty"`
	StudyType           string   `json:"studyType,omitempty" yaml:"studyType,omitempty"`

	// VariableType names the side (VD or VI) the caller is browsing. Every
	// row already binds both ?vi and ?vd, so it does not narrow the query.
	VariableType string `json:"variableType,omitempty" yaml:"variableType,omitempty" validate:"omitempty,oneof=VD VI"`

	// Limit caps the result count; zero means the builder default.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty" validate:"gte=0"`
}

// IsEmpty reports whether no criterion is set. Limit and VariableType do
// not narrow the query and are ignored.
func (f Filter) IsEmpty() bool {
	probe := f
	probe.Limit = 0
	probe.VariableType = ""
	return probe == Filter{}
}

// Variables bound by the base shape, in projection order.
var baseProjection = []queryir.Var{
	"analysis", "relation", "vi", "vd", "categoryVI", "categoryVD", "resultatRelation",
	"moderator", "moderatorMeasure", "mediator", "mediatorMeasure",
	"degreR", "degreP", "degreBeta",
}

// Select builds the analysis search query for f.
func (b *Builder) Select(f Filter) (string, error) {
	q, err := b.selectQuery(f)
	if err != nil {
		return "", err
	}
	return b.render(q)
}

// selectBuilder collects deduplicated OPTIONAL patterns, filters and the
// projection of a SELECT.
type selectBuilder struct {
	where      []queryir.Pattern
	filters    []queryir.Pattern
	projection []queryir.Var
	seen       map[string]bool
	projected  map[queryir.Var]bool
}

func (s *selectBuilder) opt(subject, predicate, object queryir.Term) {
	key := fmt.Sprintf("%v %v %v", subject, predicate, object)
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.where = append(s.where, queryir.Opt(subject, predicate, object))
}

func (s *selectBuilder) project(v queryir.Var) {
	if s.projected[v] {
		return
	}
	s.projected[v] = true
	s.projection = append(s.projection, v)
}

func (s *selectBuilder) filter(e queryir.Expr) {
	s.filters = append(s.filters, queryir.Filter{Expr: e})
}

func iadas(local string) queryir.PName { return queryir.PName("iadas:" + local) }

func lcaseEq(v queryir.Var, value string) queryir.Expr {
	return queryir.Eq(queryir.LCase(v), queryir.LCase(queryir.Str(value)))
}

func lcaseContains(v queryir.Var, value string) queryir.Expr {
	return queryir.Contains(queryir.LCase(v), queryir.LCase(queryir.Str(value)))
}

func cmp(op, datatype string, v queryir.Var, n float64) queryir.Expr {
	return queryir.Binary{Op: op, Left: queryir.Cast(datatype, v), Right: queryir.Number(n)}
}

func (b *Builder) selectQuery(f Filter) (queryir.Select, error) {
	if err := f.Validate(); err != nil {
		return queryir.Select{}, err
	}

	s := &selectBuilder{seen: make(map[string]bool), projected: make(map[queryir.Var]bool)}

	analysis := queryir.Var("analysis")
	relation := queryir.Var("relation")
	variableVI := queryir.Var("variableVI")
	variableVD := queryir.Var("variableVD")
	population := queryir.Var("population")
	sport := queryir.Var("sport")
	article := queryir.Var("article")

	s.where = append(s.where, queryir.Triple{Subject: analysis, Predicate: queryir.RDFType, Object: iadas("Analysis")})
	s.opt(analysis, iadas("hasRelation"), relation)
	s.opt(relation, iadas("hasIndependentVariable"), variableVI)
	s.opt(relation, iadas("hasDependentVariable"), variableVD)
	s.opt(variableVI, iadas("VI"), queryir.Var("vi"))
	s.opt(variableVD, iadas("VD"), queryir.Var("vd"))
	s.opt(variableVI, iadas("hasCategory"), queryir.Var("categoryVI"))
	s.opt(variableVD, iadas("hasCategory"), queryir.Var("categoryVD"))
	s.opt(relation, iadas("resultatRelation"), queryir.Var("resultatRelation"))
	s.opt(analysis, iadas("hasModerator"), queryir.Var("moderator"))
	s.opt(analysis, iadas("moderatorMeasure"), queryir.Var("moderatorMeasure"))
	s.opt(analysis, iadas("hasMediator"), queryir.Var("mediator"))
	s.opt(analysis, iadas("mediatorMeasure"), queryir.Var("mediatorMeasure"))
	s.opt(relation, iadas("degreR"), queryir.Var("degreR"))
	s.opt(relation, iadas("degreP"), queryir.Var("degreP"))
	s.opt(relation, iadas("degreBeta"), queryir.Var("degreBeta"))
	for _, v := range baseProjection {
		s.project(v)
	}

	withPopulation := func() { s.opt(analysis, iadas("hasPopulation"), population) }
	withSport := func() { s.opt(analysis, iadas("hasSport"), sport) }
	withArticle := func() { s.opt(article, iadas("hasAnalysis"), analysis) }

	if f.SelectedVI != "" {
		s.filter(queryir.Eq(queryir.Var("vi"), queryir.Str(f.SelectedVI)))
	}
	if f.SelectedVD != "" {
		s.filter(queryir.Eq(queryir.Var("vd"), queryir.Str(f.SelectedVD)))
	}
	if f.SportType != "" {
		withSport()
		s.opt(sport, iadas("sportType"), queryir.Var("sportType"))
		s.filter(lcaseEq("sportType", f.SportType))
		s.project("sportType")
	}
	if f.ExperienceYears != "" {
		withPopulation()
		s.opt(population, iadas("experienceStats"), queryir.Var("experienceStat"))
		s.opt(queryir.Var("experienceStat"), iadas("experienceDescription"), queryir.Var("experienceYears"))
		s.filter(lcaseContains("experienceYears", f.ExperienceYears))
		s.project("experienceYears")
	}
	if f.PracticeFrequency != "" {
		withPopulation()
		s.opt(population, iadas("exerciseFreqStats"), queryir.Var("exerciseStat"))
		s.opt(queryir.Var("exerciseStat"), iadas("exerciseFreqDescription"), queryir.Var("practiceFrequency"))
		s.filter(lcaseContains("practiceFrequency", f.PracticeFrequency))
		s.project("practiceFrequency")
	}
	if f.SportName != "" {
		withSport()
		s.opt(sport, iadas("sportName"), queryir.Var("sportName"))
		s.filter(lcaseContains("sportName", f.SportName))
		s.project("sportName")
	}
	if f.SportLevel != "" {
		withSport()
		s.opt(sport, iadas("sportLevel"), queryir.Var("sportLevel"))
		s.filter(lcaseEq("sportLevel", f.SportLevel))
		s.project("sportLevel")
	}
	if f.SportPracticeType != "" {
		withSport()
		s.opt(sport, iadas("sportPracticeType"), queryir.Var("sportPracticeType"))
		s.filter(lcaseEq("sportPracticeType", f.SportPracticeType))
		s.project("sportPracticeType")
	}
	if f.Gender != "" {
		withPopulation()
		s.opt(population, iadas("gender"), queryir.Var("gender"))
		s.filter(lcaseEq("gender", f.Gender))
		s.project("gender")
	}
	if f.MinAge != nil || f.MaxAge != nil {
		withPopulation()
		s.opt(population, iadas("ageStats"), queryir.Var("ageStat"))
		s.opt(queryir.Var("ageStat"), iadas("meanAge"), queryir.Var("age"))
		if f.MinAge != nil {
			s.filter(cmp(">=", "xsd:decimal", "age", *f.MinAge))
		}
		if f.MaxAge != nil {
			s.filter(cmp("<=", "xsd:decimal", "age", *f.MaxAge))
		}
		s.project("age")
	}
	if f.MinSampleSize != nil || f.MaxSampleSize != nil {
		withPopulation()
		s.opt(population, iadas("sampleSize"), queryir.Var("sampleSize"))
		if f.MinSampleSize != nil {
			s.filter(cmp(">=", "xsd:integer", "sampleSize", float64(*f.MinSampleSize)))
		}
		if f.MaxSampleSize != nil {
			s.filter(cmp("<=", "xsd:integer", "sampleSize", float64(*f.MaxSampleSize)))
		}
		s.project("sampleSize")
	}
	if f.SignificantRelation != nil {
		result := queryir.Var("resultatRelation")
		if *f.SignificantRelation {
			s.filter(queryir.Or(queryir.Eq(result, queryir.Str("+")), queryir.Eq(result, queryir.Str("-"))))
		} else {
			s.filter(queryir.Eq(result, queryir.Str("NS")))
		}
	}
	if f.RelationDirection != "" {
		s.filter(queryir.Eq(queryir.Var("resultatRelation"), queryir.Str(f.RelationDirection)))
	} else if f.ResultatRelation != "" {
		s.filter(lcaseEq("resultatRelation", f.ResultatRelation))
	}
	if f.FactorCategory != "" {
		s.filter(lcaseContains("categoryVI", b.onto.CategoryAlias(f.FactorCategory)))
	}
	if f.AnalysisType != "" {
		s.opt(analysis, iadas("typeOfAnalysis"), queryir.Var("analysisType"))
		s.filter(lcaseContains("analysisType", f.AnalysisType))
		s.project("analysisType")
	}
	if f.Moderator != "" {
		s.filter(lcaseContains("moderator", f.Moderator))
	}
	if f.Mediator != "" {
		s.filter(lcaseContains("mediator", f.Mediator))
	}
	if f.PublicationYear != nil {
		withArticle()
		s.opt(article, queryir.PName("dcterms:date"), queryir.Var("publicationYear"))
		s.filter(queryir.Eq(queryir.Cast("xsd:integer", queryir.Var("publicationYear")), queryir.Number(float64(*f.PublicationYear))))
		s.project("publicationYear")
	}
	if f.Country != "" {
		withArticle()
		s.opt(article, iadas("country"), queryir.Var("country"))
		s.filter(lcaseEq("country", f.Country))
		s.project("country")
	}
	if f.StudyType != "" {
		withArticle()
		s.opt(article, iadas("studyType"), queryir.Var("studyType"))
		s.filter(lcaseContains("studyType", f.StudyType))
		s.project("studyType")
	}

	limit := b.limit
	if f.Limit > 0 {
		limit = f.Limit
	}

	return queryir.Select{
		Prefixes:   b.prefixes,
		Projection: s.projection,
		Where:      append(s.where, s.filters...),
		OrderBy:    []queryir.Var{"vi", "vd", "resultatRelation", "degreR"},
		Limit:      limit,
	}, nil
}
