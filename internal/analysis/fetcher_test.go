package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/querybuild"
	"github.com/roach88/iadas/internal/results"
)

type querierFunc func(ctx context.Context, query string) ([]byte, error)

func (f querierFunc) Query(ctx context.Context, query string) ([]byte, error) {
	return f(ctx, query)
}

func TestQueryFetcher(t *testing.T) {
	var seen string
	q := querierFunc(func(_ context.Context, query string) ([]byte, error) {
		seen = query
		return []byte(`{"head":{"vars":["entity","property","value"]},"results":{"bindings":[
		  {"entity":{"type":"literal","value":"sport"},
		   "property":{"type":"uri","value":"http://ia-das.org/onto#sportLevel"},
		   "value":{"type":"literal","value":"Elite"}}
		]}}`), nil
	})
	f := NewQueryFetcher(querybuild.New(ontology.Default()), q)

	res, err := f.FetchRecord(context.Background(), "A 7")

	require.NoError(t, err)
	assert.Contains(t, seen, "iadas-data:Analysis_A_7")
	assert.Equal(t, 1, res.Len())
}

func TestQueryFetcherErrors(t *testing.T) {
	builder := querybuild.New(ontology.Default())

	t.Run("missing id", func(t *testing.T) {
		f := NewQueryFetcher(builder, querierFunc(func(context.Context, string) ([]byte, error) {
			t.Fatal("query must not run")
			return nil, nil
		}))
		_, err := f.FetchRecord(context.Background(), " ")
		assert.True(t, querybuild.IsMissingIdentifier(err))
	})

	t.Run("transport", func(t *testing.T) {
		down := errors.New("connection refused")
		f := NewQueryFetcher(builder, querierFunc(func(context.Context, string) ([]byte, error) {
			return nil, down
		}))
		_, err := f.FetchRecord(context.Background(), "A1")
		assert.ErrorIs(t, err, down)
		assert.Contains(t, err.Error(), "fetch analysis A1")
	})

	t.Run("shape", func(t *testing.T) {
		f := NewQueryFetcher(builder, querierFunc(func(context.Context, string) ([]byte, error) {
			return []byte(`{}`), nil
		}))
		_, err := f.FetchRecord(context.Background(), "A1")
		assert.ErrorIs(t, err, results.ErrInvalidShape)
	})
}

func TestCacheOverQueryFetcher(t *testing.T) {
	calls := 0
	q := querierFunc(func(context.Context, string) ([]byte, error) {
		calls++
		return []byte(`{"head":{"vars":["entity","property","value"]},"results":{"bindings":[]}}`), nil
	})
	builder := querybuild.New(ontology.Default())
	c := New(NewQueryFetcher(builder, q), WithOntology(builder.Ontology()))

	rec := c.Get(context.Background(), "A1")
	c.Get(context.Background(), "A1")

	assert.False(t, rec.IsError())
	assert.Empty(t, rec.Fields)
	assert.Equal(t, 1, calls)
}
