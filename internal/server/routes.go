package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/roach88/iadas/internal/analysis"
	"github.com/roach88/iadas/internal/graph"
	"github.com/roach88/iadas/internal/hierarchy"
	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/querybuild"
	"github.com/roach88/iadas/internal/results"
	"github.com/roach88/iadas/internal/store"
)

// Query types of the /api/query envelope. Any other value builds a SELECT
// from the envelope's filters.
const (
	QueryTypeRawSPARQL = "raw_sparql"
	QueryTypeHierarchy = "hierarchy"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "query",
		Method:      http.MethodPost,
		Path:        "/api/query",
		Summary:     "Run a filter, hierarchy or raw SPARQL query",
		Tags:        []string{"query"},
	}, s.handleQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "graph",
		Method:      http.MethodPost,
		Path:        "/api/graph",
		Summary:     "Build the result graph and factor network of a filter query",
		Tags:        []string{"query"},
	}, s.handleGraph)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-analyses",
		Method:      http.MethodGet,
		Path:        "/api/analyses",
		Summary:     "List analyses with their article titles",
		Tags:        []string{"analyses"},
	}, s.handleListAnalyses)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-analyses",
		Method:      http.MethodGet,
		Path:        "/api/analyses/search",
		Summary:     "Search analyses by identifier",
		Tags:        []string{"analyses"},
	}, s.handleSearchAnalyses)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-analysis",
		Method:      http.MethodGet,
		Path:        "/api/analyses/{id}",
		Summary:     "Get an analysis record",
		Tags:        []string{"analyses"},
	}, s.handleGetAnalysis)

	huma.Register(s.api, huma.Operation{
		OperationID: "batch-analyses",
		Method:      http.MethodPost,
		Path:        "/api/analyses/batch",
		Summary:     "Get several analysis records",
		Tags:        []string{"analyses"},
	}, s.handleBatchAnalyses)

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-analysis",
		Method:        http.MethodPost,
		Path:          "/api/analyses",
		Summary:       "Insert an analysis",
		Tags:          []string{"analyses"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateAnalysis)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-analysis",
		Method:      http.MethodPut,
		Path:        "/api/analyses/{id}",
		Summary:     "Update an analysis",
		Tags:        []string{"analyses"},
	}, s.handleUpdateAnalysis)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-analysis",
		Method:      http.MethodDelete,
		Path:        "/api/analyses/{id}",
		Summary:     "Delete an analysis",
		Tags:        []string{"analyses"},
	}, s.handleDeleteAnalysis)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-journal",
		Method:      http.MethodGet,
		Path:        "/api/journal",
		Summary:     "List journalled updates",
		Tags:        []string{"journal"},
	}, s.handleListJournal)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-journal-entry",
		Method:      http.MethodGet,
		Path:        "/api/journal/{id}",
		Summary:     "Get one journalled update",
		Tags:        []string{"journal"},
	}, s.handleGetJournalEntry)

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-cache",
		Method:      http.MethodDelete,
		Path:        "/api/cache",
		Summary:     "Drop every cached analysis",
		Tags:        []string{"cache"},
	}, s.handleClearCache)

	huma.Register(s.api, huma.Operation{
		OperationID: "cache-stats",
		Method:      http.MethodGet,
		Path:        "/api/cache/stats",
		Summary:     "Count cached analyses",
		Tags:        []string{"cache"},
	}, s.handleCacheStats)
}

// --- Input/Output types ---

// QueryRequest is the /api/query envelope. Filter criteria sit beside the
// envelope fields at the top level.
type QueryRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	QueryType      string `json:"queryType,omitempty" doc:"raw_sparql, hierarchy, or anything else for a filter query"`
	RawSparqlQuery string `json:"rawSparqlQuery,omitempty" doc:"SPARQL text for raw_sparql"`
	Concept        string `json:"concept,omitempty" doc:"Concept label for hierarchy"`

	querybuild.Filter
}

// QueryResult is the SPARQL JSON result, optionally with decoded rows.
type QueryResult struct {
	Head        *results.RawHead              `json:"head"`
	Results     *results.RawResults           `json:"results"`
	Rows        []map[string]string           `json:"rows,omitempty"`
	ColumnTypes map[string]results.ColumnType `json:"columnTypes,omitempty"`
}

// UpdateResult reports a SPARQL Update the server sent.
type UpdateResult struct {
	Status     string       `json:"status"`
	AnalysisID string       `json:"analysisId,omitempty"`
	Journal    *store.Entry `json:"journal,omitempty"`
}

type queryInput struct {
	Decode bool `query:"decode" doc:"Add decoded rows and column types"`
	Body   QueryRequest
}
type queryOutput struct {
	Body any
}

type graphInput struct {
	Body querybuild.Filter
}

// GraphResult holds both views of a filter query's rows.
type GraphResult struct {
	Graph   graph.Graph         `json:"graph"`
	Network graph.FactorNetwork `json:"network"`
}
type graphOutput struct {
	Body GraphResult
}

type analysisIDInput struct {
	ID string `path:"id"`
}

// AnalysisView is a record with its detail panel.
type AnalysisView struct {
	analysis.Record
	Panel analysis.Panel `json:"panel"`
}
type analysisOutput struct {
	Body AnalysisView
}

type batchInput struct {
	Body struct {
		IDs []string `json:"ids" minItems:"1" doc:"Analysis identifiers"`
	}
}
type batchOutput struct {
	Body struct {
		Records []AnalysisView `json:"records"`
	}
}

type searchInput struct {
	Query string `query:"q" doc:"Substring of the analysis identifier"`
	Limit int    `query:"limit" minimum:"0" doc:"Maximum results"`
}

// AnalysisSummary is one listed or matched analysis.
type AnalysisSummary struct {
	URI   string `json:"uri"`
	ID    string `json:"analysisId"`
	Title string `json:"title,omitempty"`
}
type analysesOutput struct {
	Body struct {
		Analyses []AnalysisSummary `json:"analyses"`
	}
}

type createInput struct {
	Entity string `query:"entity" doc:"Write only this entity kind"`
	Body   querybuild.Record
}
type updateInput struct {
	ID     string `path:"id"`
	Entity string `query:"entity" doc:"Write only this entity kind"`
	Body   querybuild.Record
}
type updateOutput struct {
	Body UpdateResult
}

type journalInput struct {
	AnalysisID string `query:"analysisId"`
	Limit      int    `query:"limit" minimum:"0"`
}
type journalOutput struct {
	Body struct {
		Entries []store.Entry `json:"entries"`
	}
}

type journalEntryInput struct {
	ID string `path:"id"`
}
type journalEntryOutput struct {
	Body store.Entry
}

type statusOutput struct {
	Body struct {
		Status string `json:"status" example:"cleared"`
	}
}
type cacheStatsOutput struct {
	Body analysis.Stats
}

// --- Handlers ---

func (s *Server) handleQuery(ctx context.Context, input *queryInput) (*queryOutput, error) {
	req := input.Body
	switch req.QueryType {
	case QueryTypeHierarchy:
		return &queryOutput{Body: s.resolveHierarchy(ctx, req.Concept)}, nil
	case QueryTypeRawSPARQL:
		text := strings.TrimSpace(req.RawSparqlQuery)
		if text == "" {
			return nil, huma.Error400BadRequest("rawSparqlQuery is empty")
		}
		// Writes only go through the analysis routes.
		if IsUpdate(text) {
			return nil, huma.Error400BadRequest("SPARQL Update is not accepted on /api/query; use the /api/analyses routes")
		}
		res, err := s.runSelect(ctx, text, input.Decode)
		if err != nil {
			return nil, err
		}
		return &queryOutput{Body: res}, nil
	default:
		text, err := s.deps.Builder.Select(req.Filter)
		if err != nil {
			return nil, buildError(err)
		}
		res, err := s.runSelect(ctx, text, input.Decode)
		if err != nil {
			return nil, err
		}
		return &queryOutput{Body: res}, nil
	}
}

// resolveHierarchy never fails: problems are reported in the envelope.
func (s *Server) resolveHierarchy(ctx context.Context, concept string) hierarchy.Envelope {
	text, err := s.deps.Builder.Hierarchy(concept)
	if err != nil {
		return s.deps.Resolver.Failure(strings.TrimSpace(concept), hierarchy.ErrEmptyConcept)
	}
	data, err := s.deps.Endpoint.Query(ctx, text)
	if err != nil {
		s.logger.Warn("hierarchy query failed", "concept", concept, "err", err)
		return s.deps.Resolver.Failure(strings.TrimSpace(concept), err)
	}
	return s.deps.Resolver.ResolveJSON(data, concept)
}

func (s *Server) runSelect(ctx context.Context, text string, decode bool) (*QueryResult, error) {
	data, err := s.deps.Endpoint.Query(ctx, text)
	if err != nil {
		return nil, s.upstreamError("running query", err)
	}
	raw, err := results.Decode(data)
	if err != nil {
		return nil, s.upstreamError("decoding results", err)
	}
	out := &QueryResult{Head: raw.Head, Results: raw.Results}
	if !decode {
		return out, nil
	}
	res, err := results.ParseRaw(raw)
	if err != nil {
		return nil, s.upstreamError("decoding results", err)
	}
	out.Rows = res.DisplayRows()
	out.ColumnTypes = res.ColumnTypes()
	return out, nil
}

func (s *Server) handleGraph(ctx context.Context, input *graphInput) (*graphOutput, error) {
	text, err := s.deps.Builder.Select(input.Body)
	if err != nil {
		return nil, buildError(err)
	}
	res, err := s.fetch(ctx, text)
	if err != nil {
		return nil, err
	}
	return &graphOutput{Body: GraphResult{
		Graph:   graph.Materialize(res.Rows, res.Variables),
		Network: graph.Network(res.Rows),
	}}, nil
}

func (s *Server) handleListAnalyses(ctx context.Context, _ *struct{}) (*analysesOutput, error) {
	text, err := s.deps.Builder.ListAnalyses()
	if err != nil {
		return nil, buildError(err)
	}
	return s.summaries(ctx, text)
}

func (s *Server) handleSearchAnalyses(ctx context.Context, input *searchInput) (*analysesOutput, error) {
	text, err := s.deps.Builder.Search(input.Query, input.Limit)
	if err != nil {
		return nil, buildError(err)
	}
	return s.summaries(ctx, text)
}

func (s *Server) summaries(ctx context.Context, text string) (*analysesOutput, error) {
	res, err := s.fetch(ctx, text)
	if err != nil {
		return nil, err
	}
	out := &analysesOutput{}
	out.Body.Analyses = make([]AnalysisSummary, 0, res.Len())
	for _, row := range res.Rows {
		sum := AnalysisSummary{ID: ir.Display(row["analysisId"]), Title: ir.Display(row["title"])}
		if uri, ok := row["analysis"].(ir.URIRef); ok {
			sum.URI = uri.URI
		}
		out.Body.Analyses = append(out.Body.Analyses, sum)
	}
	return out, nil
}

func (s *Server) handleGetAnalysis(ctx context.Context, input *analysisIDInput) (*analysisOutput, error) {
	rec := s.deps.Cache.Get(ctx, input.ID)
	return &analysisOutput{Body: view(rec)}, nil
}

func (s *Server) handleBatchAnalyses(ctx context.Context, input *batchInput) (*batchOutput, error) {
	recs := s.deps.Cache.GetMany(ctx, input.Body.IDs)
	out := &batchOutput{}
	out.Body.Records = make([]AnalysisView, len(recs))
	for i, rec := range recs {
		out.Body.Records[i] = view(rec)
	}
	return out, nil
}

func (s *Server) handleCreateAnalysis(ctx context.Context, input *createInput) (*updateOutput, error) {
	var text string
	var err error
	if input.Entity != "" {
		text, err = s.deps.Builder.InsertEntity(input.Entity, input.Body)
	} else {
		text, err = s.deps.Builder.Insert(input.Body)
	}
	if err != nil {
		return nil, buildError(err)
	}
	res, err := s.apply(ctx, store.KindInsert, input.Body.ID(), text)
	if err != nil {
		return nil, err
	}
	return &updateOutput{Body: *res}, nil
}

func (s *Server) handleUpdateAnalysis(ctx context.Context, input *updateInput) (*updateOutput, error) {
	rec := input.Body
	if rec == nil {
		rec = querybuild.Record{}
	}
	switch id := rec.ID(); id {
	case "":
		rec[querybuild.IDField] = input.ID
	case input.ID:
	default:
		return nil, huma.Error400BadRequest(fmt.Sprintf("record %s %q does not match path id %q", querybuild.IDField, id, input.ID))
	}

	var text string
	var err error
	if input.Entity != "" {
		text, err = s.deps.Builder.UpdateEntity(input.Entity, rec)
	} else {
		text, err = s.deps.Builder.Update(rec)
	}
	if err != nil {
		return nil, buildError(err)
	}
	res, err := s.apply(ctx, store.KindUpdate, input.ID, text)
	if err != nil {
		return nil, err
	}
	return &updateOutput{Body: *res}, nil
}

func (s *Server) handleDeleteAnalysis(ctx context.Context, input *analysisIDInput) (*updateOutput, error) {
	text, err := s.deps.Builder.Delete(input.ID)
	if err != nil {
		return nil, buildError(err)
	}
	res, err := s.apply(ctx, store.KindDelete, input.ID, text)
	if err != nil {
		return nil, err
	}
	return &updateOutput{Body: *res}, nil
}

func (s *Server) handleListJournal(ctx context.Context, input *journalInput) (*journalOutput, error) {
	if s.deps.Journal == nil {
		return nil, huma.Error503ServiceUnavailable("journal not configured")
	}
	entries, err := s.deps.Journal.List(ctx, store.ListOptions{AnalysisID: input.AnalysisID, Limit: input.Limit})
	if err != nil {
		return nil, huma.Error500InternalServerError("listing journal", err)
	}
	out := &journalOutput{}
	out.Body.Entries = entries
	if out.Body.Entries == nil {
		out.Body.Entries = []store.Entry{}
	}
	return out, nil
}

func (s *Server) handleGetJournalEntry(ctx context.Context, input *journalEntryInput) (*journalEntryOutput, error) {
	if s.deps.Journal == nil {
		return nil, huma.Error503ServiceUnavailable("journal not configured")
	}
	entry, err := s.deps.Journal.Get(ctx, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, huma.Error404NotFound(fmt.Sprintf("journal entry %s not found", input.ID))
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("reading journal", err)
	}
	return &journalEntryOutput{Body: entry}, nil
}

func (s *Server) handleClearCache(_ context.Context, _ *struct{}) (*statusOutput, error) {
	s.deps.Cache.Clear()
	out := &statusOutput{}
	out.Body.Status = "cleared"
	return out, nil
}

func (s *Server) handleCacheStats(_ context.Context, _ *struct{}) (*cacheStatsOutput, error) {
	return &cacheStatsOutput{Body: s.deps.Cache.Stats()}, nil
}

// --- Helpers ---

// apply sends an update, through the journal when one is configured, and
// drops the cached record of the analysis it touched.
func (s *Server) apply(ctx context.Context, kind store.Kind, analysisID, text string) (*UpdateResult, error) {
	out := &UpdateResult{Status: string(store.StatusApplied), AnalysisID: analysisID}
	var err error
	if s.deps.Journal != nil {
		var entry store.Entry
		entry, err = s.deps.Journal.Apply(ctx, kind, analysisID, text, s.deps.Endpoint.Update)
		if entry.ID != "" {
			out.Journal = &entry
		}
	} else {
		err = s.deps.Endpoint.Update(ctx, text)
	}
	if analysisID != "" {
		s.deps.Cache.Forget(analysisID)
	}
	if err != nil {
		return nil, s.upstreamError(fmt.Sprintf("%s update", kind), err)
	}
	s.logger.Info("update applied", "kind", kind, "id", analysisID)
	return out, nil
}

func (s *Server) fetch(ctx context.Context, text string) (*results.Result, error) {
	data, err := s.deps.Endpoint.Query(ctx, text)
	if err != nil {
		return nil, s.upstreamError("running query", err)
	}
	res, err := results.Parse(data)
	if err != nil {
		return nil, s.upstreamError("decoding results", err)
	}
	return res, nil
}

func (s *Server) upstreamError(op string, err error) error {
	s.logger.Error("sparql endpoint error", "op", op, "err", err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(op + ": endpoint timed out")
	case errors.Is(err, results.ErrInvalidShape):
		return huma.Error502BadGateway(op+": malformed endpoint response", err)
	default:
		return huma.Error502BadGateway(op, err)
	}
}

func buildError(err error) error {
	var be *querybuild.BuildError
	if errors.As(err, &be) {
		return huma.Error400BadRequest(be.Error())
	}
	return huma.Error500InternalServerError("building query", err)
}

func view(rec analysis.Record) AnalysisView {
	return AnalysisView{Record: rec, Panel: analysis.ToPanel(rec)}
}

var updateKeywords = []string{"INSERT", "DELETE", "LOAD", "CLEAR", "CREATE", "DROP", "COPY", "MOVE", "ADD", "WITH"}

// IsUpdate reports whether text is a SPARQL Update request, judged by the
// first keyword after comment lines and the PREFIX and BASE declarations.
func IsUpdate(text string) bool {
	var words []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
			words = append(words, strings.Fields(line)...)
		}
	}
	for i := 0; i < len(words); i++ {
		switch word := strings.ToUpper(words[i]); word {
		case "PREFIX":
			// "PREFIX p: <iri>" or "PREFIX p:<iri>"
			if i+1 < len(words) && !strings.Contains(words[i+1], "<") {
				i++
			}
			i++
		case "BASE":
			i++
		default:
			for _, kw := range updateKeywords {
				if word == kw || strings.HasPrefix(word, kw+"{") {
					return true
				}
			}
			return false
		}
	}
	return false
}
