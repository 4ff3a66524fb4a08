package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/testutil"
)

const insertQuery = `INSERT DATA { iadas-data:Sport_A1 a iadas:Sport . }`

func TestBegin(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	e, err := s.Begin(ctx, KindInsert, "A1", insertQuery)
	require.NoError(t, err)

	hash, err := ir.QueryHash("insert", insertQuery)
	require.NoError(t, err)
	assert.Equal(t, Entry{
		Seq:        1,
		ID:         "upd-0001",
		Kind:       KindInsert,
		AnalysisID: "A1",
		QueryHash:  hash,
		Query:      insertQuery,
		Status:     StatusPending,
		CreatedAt:  clock.Now(),
	}, e)

	got, err := s.Get(ctx, "upd-0001")
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestBeginRejectsUnknownKind(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.Begin(context.Background(), Kind("drop"), "A1", insertQuery)
	assert.Error(t, err)
}

func TestBeginRejectsInvalidUTF8(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.Begin(context.Background(), KindInsert, "A1", "INSERT DATA { <a> <b> \"\xff\" }")
	require.Error(t, err)

	entries, err := s.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFinish(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	ok, err := s.Begin(ctx, KindUpdate, "A1", "DELETE { } INSERT { } WHERE { }")
	require.NoError(t, err)
	bad, err := s.Begin(ctx, KindDelete, "A1", "DELETE WHERE { }")
	require.NoError(t, err)

	require.NoError(t, s.Finish(ctx, ok.ID, nil))
	require.NoError(t, s.Finish(ctx, bad.ID, errors.New("HTTP 500")))

	got, err := s.Get(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, got.Status)
	assert.Empty(t, got.Error)

	got, err = s.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "HTTP 500", got.Error)

	assert.ErrorIs(t, s.Finish(ctx, "missing", nil), ErrNotFound)
}

func TestApply(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	var sent string
	e, err := s.Apply(ctx, KindInsert, "A1", insertQuery, func(_ context.Context, q string) error {
		sent = q
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, insertQuery, sent)
	assert.Equal(t, StatusApplied, e.Status)

	down := errors.New("connection refused")
	e, err = s.Apply(ctx, KindInsert, "A2", insertQuery, func(context.Context, string) error {
		return down
	})
	assert.ErrorIs(t, err, down)
	assert.Equal(t, StatusFailed, e.Status)

	stored, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, "connection refused", stored.Error)
}

func TestApplyRecordsOutcomeAfterCancel(t *testing.T) {
	s, _ := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	e, err := s.Apply(ctx, KindUpdate, "A1", insertQuery, func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	stored, err := s.Get(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestList(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"A1", "A2", "A1"} {
		_, err := s.Begin(ctx, KindUpdate, id, "q-"+id)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, testutil.DefaultTime.Add(2*time.Minute), all[2].CreatedAt)

	a1, err := s.List(ctx, ListOptions{AnalysisID: "A1"})
	require.NoError(t, err)
	require.Len(t, a1, 2)
	assert.Equal(t, "upd-0001", a1[0].ID)
	assert.Equal(t, "upd-0003", a1[1].ID)

	limited, err := s.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.List(ctx, ListOptions{AnalysisID: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFindByHash(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	first, err := s.Begin(ctx, KindInsert, "A1", insertQuery)
	require.NoError(t, err)
	_, err = s.Begin(ctx, KindUpdate, "A1", insertQuery)
	require.NoError(t, err)
	again, err := s.Begin(ctx, KindInsert, "A1", insertQuery)
	require.NoError(t, err)

	found, err := s.FindByHash(ctx, first.QueryHash)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, first.ID, found[0].ID)
	assert.Equal(t, again.ID, found[1].ID)
}

func TestGetNotFound(t *testing.T) {
	s, _ := createTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
