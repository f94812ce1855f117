// Package report aggregates scoped financial summaries behind a read-through cache.
package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/fincore/internal/shared"
)

// DefaultTTL is how long a computed report stays valid.
const DefaultTTL = 5 * time.Minute

// Key identifies a cached report per caller scope and filter combination.
type Key struct {
	Report    string
	Role      shared.Role
	CountryID *int64
	BranchID  *int64
	Params    string
}

func (k Key) String() string {
	return strings.Join([]string{k.Report, string(k.Role), idToken(k.CountryID), idToken(k.BranchID), k.Params}, "|")
}

func idToken(id *int64) string {
	if id == nil {
		return "*"
	}
	return strconv.FormatInt(*id, 10)
}

// CacheObserver receives hit/miss/invalidation events.
type CacheObserver interface {
	ObserveCache(report, result string)
}

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// Cache is an in-process TTL cache. Expired entries are evicted lazily on read
// and InvalidateAll is visible to every later read.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	generation uint64
	ttl        time.Duration
	now        func() time.Time
	group      singleflight.Group
	observer   CacheObserver
}

// NewCache constructs a cache with the given TTL, falling back to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

// WithNow overrides the clock so tests can simulate expiry.
func (c *Cache) WithNow(now func() time.Time) {
	if now != nil {
		c.mu.Lock()
		c.now = now
		c.mu.Unlock()
	}
}

// SetObserver attaches metrics.
func (c *Cache) SetObserver(observer CacheObserver) {
	c.mu.Lock()
	c.observer = observer
	c.mu.Unlock()
}

// Get returns a live entry, evicting it when expired.
func (c *Cache) Get(key Key) (any, bool) {
	value, ok, _ := c.lookup(key.String())
	c.observe(key.Report, ok)
	return value, ok
}

func (c *Cache) lookup(k string) (any, bool, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		return nil, false, c.generation
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, k)
		return nil, false, c.generation
	}
	return e.value, true, c.generation
}

// GetOrCompute returns the cached value for key or runs compute once for
// concurrent callers. A value computed across an invalidation is returned to
// its callers but never stored.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) (any, error)) (any, error) {
	k := key.String()
	value, ok, gen := c.lookup(k)
	c.observe(key.Report, ok)
	if ok {
		return value, nil
	}
	value, err, _ := c.group.Do(fmt.Sprintf("%d|%s", gen, k), func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.store(k, v, gen)
		return v, nil
	})
	return value, err
}

func (c *Cache) store(k string, value any, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	c.entries[k] = cacheEntry{value: value, storedAt: c.now()}
}

// InvalidateAll drops every entry unconditionally.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.generation++
	observer := c.observer
	c.mu.Unlock()
	if observer != nil {
		observer.ObserveCache("*", "invalidate")
	}
}

// Len reports the number of stored entries, including expired ones not yet read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) observe(report string, hit bool) {
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()
	if observer == nil {
		return
	}
	if hit {
		observer.ObserveCache(report, "hit")
		return
	}
	observer.ObserveCache(report, "miss")
}

// Fetch is the typed form of GetOrCompute.
func Fetch[T any](ctx context.Context, c *Cache, key Key, compute func(context.Context) (T, error)) (T, error) {
	value, err := c.GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("report: cached %s has type %T", key.Report, value)
	}
	return typed, nil
}
