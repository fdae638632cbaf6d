package cache

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/tradelens/analytics-engine/internal/model"
)

// DefaultMaxEntries bounds the in-memory cache.
const DefaultMaxEntries = 1024

type memoryEntry struct {
	result  model.AggregateResult
	expires time.Time
}

// Memory is an in-process cache with a TTL from insertion and a bounded
// number of entries, evicting the least recently used one when full.
// Expired entries are removed when they are next looked up.
type Memory struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, memoryEntry]
	ttl   time.Duration
	clock Clock
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(c Clock) MemoryOption {
	return func(m *Memory) { m.clock = c }
}

// NewMemory creates a cache holding at most maxEntries results for ttl each.
// ttl <= 0 selects DefaultTTL; maxEntries <= 0 leaves the size unbounded.
func NewMemory(ttl time.Duration, maxEntries int, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = math.MaxInt32
	}
	// NewLRU only fails for a non-positive size.
	l, _ := simplelru.NewLRU[string, memoryEntry](maxEntries, nil)
	m := &Memory{lru: l, ttl: ttl, clock: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the stored result for spec if it has not expired.
func (m *Memory) Get(_ context.Context, spec model.FilterSpec) (model.AggregateResult, bool) {
	key := spec.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lru.Get(key)
	if !ok {
		return model.AggregateResult{}, false
	}
	if !m.clock().Before(e.expires) {
		m.lru.Remove(key)
		return model.AggregateResult{}, false
	}
	return e.result, true
}

// Put stores result for spec, replacing any previous entry.
func (m *Memory) Put(_ context.Context, spec model.FilterSpec, result model.AggregateResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(spec.Key(), memoryEntry{result: result, expires: m.clock().Add(m.ttl)})
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
