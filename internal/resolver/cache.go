package resolver

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"horse.fit/nycpedia/internal/wiki"
)

// Cache table names, also used as metric labels.
const (
	TableEntities   = "entities"
	TablePredicates = "predicates"
	TableCategories = "categories"
	TableSummaries  = "summaries"
	TableCandidates = "candidates"
)

// Cache holds the memo tables shared by every resolution that uses it.
// Entries are never evicted. A Cache is safe for concurrent use.
type Cache struct {
	entities   *memo[*wiki.Entity]
	predicates *memo[bool]
	categories *memo[bool]
	summaries  *memo[*wiki.ArticleSummary]
	candidates *memo[[]wiki.Candidate]
}

func NewCache() *Cache {
	return &Cache{
		entities:   newMemo[*wiki.Entity](TableEntities, false),
		predicates: newMemo[bool](TablePredicates, true),
		categories: newMemo[bool](TableCategories, true),
		summaries:  newMemo[*wiki.ArticleSummary](TableSummaries, false),
		candidates: newMemo[[]wiki.Candidate](TableCandidates, false),
	}
}

// CacheStats reports the number of entries per table.
type CacheStats struct {
	Entities   int `json:"entities"`
	Predicates int `json:"predicates"`
	Categories int `json:"categories"`
	Summaries  int `json:"summaries"`
	Candidates int `json:"candidates"`
}

func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{
		Entities:   c.entities.len(),
		Predicates: c.predicates.len(),
		Categories: c.categories.len(),
		Summaries:  c.summaries.len(),
		Candidates: c.candidates.len(),
	}
}

func (c *Cache) setObserver(fn func(table string, hit bool)) {
	c.entities.observe = fn
	c.predicates.observe = fn
	c.categories.observe = fn
	c.summaries.observe = fn
	c.candidates.observe = fn
}

// memo is an append-only table with in-flight deduplication.
type memo[V any] struct {
	name string
	// storeFailures keeps the zero value for a failed computation so the
	// fail-closed answer is not recomputed.
	storeFailures bool
	observe       func(table string, hit bool)

	mu      sync.RWMutex
	entries map[string]V
	group   singleflight.Group
}

func newMemo[V any](name string, storeFailures bool) *memo[V] {
	return &memo[V]{name: name, storeFailures: storeFailures, entries: make(map[string]V)}
}

func (m *memo[V]) peek(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *memo[V]) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// store writes v unless the computing context was cancelled.
func (m *memo[V]) store(ctx context.Context, key string, v V, err error) {
	if ctx.Err() != nil || isContextErr(err) {
		return
	}
	if err != nil {
		if !m.storeFailures {
			return
		}
		var zero V
		v = zero
	}
	m.mu.Lock()
	m.entries[key] = v
	m.mu.Unlock()
}

// do returns the cached value for key or computes it with fn. Concurrent
// callers for the same key share one computation.
func (m *memo[V]) do(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, error) {
	if v, ok := m.peek(key); ok {
		m.record(true)
		return v, nil
	}
	m.record(false)

	ch := m.group.DoChan(key, func() (any, error) {
		if v, ok := m.peek(key); ok {
			return v, nil
		}
		v, err := fn(ctx)
		m.store(ctx, key, v, err)
		return v, err
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil && isContextErr(res.Err) && ctx.Err() == nil {
			// The shared computation belonged to a caller that went away.
			v, err := fn(ctx)
			m.store(ctx, key, v, err)
			return v, err
		}
		v, _ := res.Val.(V)
		return v, res.Err
	}
}

func (m *memo[V]) record(hit bool) {
	if m.observe != nil {
		m.observe(m.name, hit)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
