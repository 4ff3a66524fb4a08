// Package analysis fetches analysis records from the triple store and
// keeps them in a short-lived cache.
//
// A Cache is created once by the process and shared by its callers. Reads
// never fail: a fetch error yields an error Record, which is returned but
// not cached, so the next read retries.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/results"
)

// DefaultTTL is how long a fetched record is served from the cache.
const DefaultTTL = 5 * time.Minute

// Fetcher loads the (entity, property, value) rows of one analysis.
type Fetcher interface {
	FetchRecord(ctx context.Context, id string) (*results.Result, error)
}

type entry struct {
	record   Record
	inserted time.Time
}

// Cache serves analysis records, fetching them on a miss.
//
// Concurrent misses for the same id each fetch; the last write wins.
// Expiry is checked at read time only.
type Cache struct {
	fetcher Fetcher
	onto    *ontology.Ontology
	now     func() time.Time
	ttl     time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source used for entry ages.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithOntology sets the tables used to decode fetched rows.
func WithOntology(onto *ontology.Ontology) Option {
	return func(c *Cache) { c.onto = onto }
}

// New creates a Cache reading through fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		now:     time.Now,
		ttl:     DefaultTTL,
		logger:  slog.Default(),
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onto == nil {
		c.onto = ontology.Default()
	}
	return c
}

// Key returns the cache key of an analysis id.
func Key(id string) string {
	return "analysis_" + id
}

// Get returns the record of id, from the cache when a live entry exists.
func (c *Cache) Get(ctx context.Context, id string) Record {
	rec, err := c.get(ctx, id)
	if err != nil {
		return ErrorRecord(id, err)
	}
	return rec
}

func (c *Cache) get(ctx context.Context, id string) (Record, error) {
	if rec, ok := c.lookup(id); ok {
		cacheHits.Inc()
		return rec, nil
	}
	cacheMisses.Inc()

	res, err := c.fetcher.FetchRecord(ctx, id)
	if err != nil {
		// Abandoned by the caller or by a failed sibling in GetMany.
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			c.logger.Debug("analysis fetch cancelled", "id", id)
			return Record{}, err
		}
		fetchErrors.Inc()
		c.logger.Warn("analysis fetch failed", "id", id, "err", err)
		return Record{}, err
	}
	rec := Decode(c.onto, id, res)
	if len(rec.Fields) == 0 {
		c.logger.Debug("analysis has no fields", "id", id)
	}

	c.mu.Lock()
	c.entries[Key(id)] = entry{record: rec, inserted: c.now()}
	c.mu.Unlock()
	return rec, nil
}

func (c *Cache) lookup(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key(id)]
	if !ok || !c.live(e) {
		return Record{}, false
	}
	return e.record, true
}

func (c *Cache) live(e entry) bool {
	return c.now().Sub(e.inserted) < c.ttl
}

// GetMany returns one record per id, in input order. The ids are fetched
// concurrently; if any fetch fails the batch is abandoned and every id is
// read again one at a time, failures becoming error records.
func (c *Cache) GetMany(ctx context.Context, ids []string) []Record {
	out := make([]Record, len(ids))
	if len(ids) == 0 {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := c.get(gctx, id)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		return out
	}
	c.logger.Info("batch fetch failed, retrying serially", "ids", len(ids), "err", err)

	for i, id := range ids {
		out[i] = c.Get(ctx, id)
	}
	return out
}

// Forget drops the entry of id, so the next read fetches it again.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(id))
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats counts cache entries by liveness.
type Stats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// Stats returns the current entry counts.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{Total: len(c.entries)}
	for _, e := range c.entries {
		if c.live(e) {
			s.Valid++
		}
	}
	s.Expired = s.Total - s.Valid
	return s
}
