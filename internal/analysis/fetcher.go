package analysis

import (
	"context"
	"fmt"

	"github.com/roach88/iadas/internal/querybuild"
	"github.com/roach88/iadas/internal/results"
)

// Querier runs a SELECT query and returns its SPARQL JSON results.
type Querier interface {
	Query(ctx context.Context, query string) ([]byte, error)
}

// QueryFetcher fetches records with the record query of a Builder.
type QueryFetcher struct {
	builder *querybuild.Builder
	querier Querier
}

// NewQueryFetcher creates a Fetcher running builder's record query
// through querier.
func NewQueryFetcher(builder *querybuild.Builder, querier Querier) *QueryFetcher {
	return &QueryFetcher{builder: builder, querier: querier}
}

// FetchRecord implements Fetcher.
func (f *QueryFetcher) FetchRecord(ctx context.Context, id string) (*results.Result, error) {
	query, err := f.builder.FetchRecord(id)
	if err != nil {
		return nil, err
	}
	data, err := f.querier.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis %s: %w", id, err)
	}
	res, err := results.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fetch analysis %s: %w", id, err)
	}
	return res, nil
}
