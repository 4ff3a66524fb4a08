package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/iadas/internal/ir"
)

// Kind is the operation an update performs.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Status is the outcome of a journalled update.
type Status string

const (
	StatusPending Status = "pending"
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
)

// ErrNotFound is returned when no entry has the requested id.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one journalled update.
type Entry struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	AnalysisID string    `json:"analysisId"`
	QueryHash  string    `json:"queryHash"`
	Query      string    `json:"query"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Begin records a pending update and returns the stored entry.
func (s *Store) Begin(ctx context.Context, kind Kind, analysisID, query string) (Entry, error) {
	hash, err := ir.QueryHash(string(kind), query)
	if err != nil {
		return Entry{}, fmt.Errorf("begin update: %w", err)
	}
	e := Entry{
		ID:         s.newID(),
		Kind:       kind,
		AnalysisID: analysisID,
		QueryHash:  hash,
		Query:      query,
		Status:     StatusPending,
		CreatedAt:  s.now().UTC(),
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO updates
		(id, kind, analysis_id, query_hash, query, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		string(e.Kind),
		e.AnalysisID,
		e.QueryHash,
		e.Query,
		string(e.Status),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("begin update: %w", err)
	}
	if e.Seq, err = result.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("begin update: last insert id: %w", err)
	}
	return e, nil
}

// Finish marks an entry applied, or failed with cause when cause is non-nil.
func (s *Store) Finish(ctx context.Context, id string, cause error) error {
	status, msg := StatusApplied, ""
	if cause != nil {
		status, msg = StatusFailed, cause.Error()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE updates SET status = ?, error = ? WHERE id = ?
	`, string(status), msg, id)
	if err != nil {
		return fmt.Errorf("finish update: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish update: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish update %s: %w", id, ErrNotFound)
	}
	return nil
}

// Apply journals query, runs exec with it, and records the outcome.
// The error of exec is returned unchanged; a journal failure after exec
// ran is joined to it.
func (s *Store) Apply(ctx context.Context, kind Kind, analysisID, query string, exec func(context.Context, string) error) (Entry, error) {
	e, err := s.Begin(ctx, kind, analysisID, query)
	if err != nil {
		return Entry{}, err
	}

	execErr := exec(ctx, query)
	// The outcome is recorded even when ctx was cancelled during exec.
	if err := s.Finish(context.WithoutCancel(ctx), e.ID, execErr); err != nil {
		return e, errors.Join(execErr, err)
	}

	e.Status = StatusApplied
	if execErr != nil {
		e.Status, e.Error = StatusFailed, execErr.Error()
	}
	return e, execErr
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, kind, analysis_id, query_hash, query, status, error, created_at
		FROM updates
		WHERE id = ?
	`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return e, err
}

// ListOptions narrows List.
type ListOptions struct {
	AnalysisID string
	Limit      int
}

// List returns journal entries oldest first.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := `
		SELECT seq, id, kind, analysis_id, query_hash, query, status, error, created_at
		FROM updates`
	var args []any
	if opts.AnalysisID != "" {
		query += ` WHERE analysis_id = ?`
		args = append(args, opts.AnalysisID)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updates: %w", err)
	}
	return entries, nil
}

// FindByHash returns the entries whose query hashes to hash, oldest first.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, kind, analysis_id, query_hash, query, status, error, created_at
		FROM updates
		WHERE query_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("query updates by hash: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updates: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                     Entry
		kind, status, created string
	)
	if err := row.Scan(&e.Seq, &e.ID, &kind, &e.AnalysisID, &e.QueryHash, &e.Query, &status, &e.Error, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan update: %w", err)
	}
	e.Kind = Kind(kind)
	e.Status = Status(status)
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Entry{}, fmt.Errorf("scan update %s: created_at: %w", e.ID, err)
	}
	e.CreatedAt = t
	return e, nil
}
