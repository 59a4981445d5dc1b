// Package querycache deduplicates and caches discovery fetches keyed by
// canonical query keys. It is the only shared mutable state in the data
// layer; construct one per lifetime and inject it.
package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kolabhq/kolab-discovery/internal/core/observability"
)

type Status int

const (
	StatusPending Status = iota
	StatusFulfilled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is a read-only snapshot of one cached query.
type Entry struct {
	Status    Status
	Data      any
	Err       error
	FetchedAt time.Time
	Stale     bool
}

// entry fields other than done are guarded by Cache.mu; waiters may read
// them without the lock only after done is closed.
type entry struct {
	status    Status
	data      any
	err       error
	fetchedAt time.Time
	stale     bool
	done      chan struct{}
}

const (
	DefaultTTL      = 45 * time.Second
	DefaultCapacity = 512
)

type Option func(*Cache)

func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithClock overrides the freshness clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *entry]
	ttl      time.Duration
	capacity int
	now      func() time.Time
	subs     []func(key string)
}

func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, f := range opts {
		f(c)
	}
	c.entries, _ = lru.New[string, *entry](c.capacity)
	return c
}

// OnChange registers a notification hook called (outside the cache lock)
// whenever an entry settles or is invalidated. The UI layer hangs re-render
// triggers off this.
func (c *Cache) OnChange(fn func(key string)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Get returns a snapshot of the entry for key, if present.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key)
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Status:    e.status,
		Data:      e.data,
		Err:       e.err,
		FetchedAt: e.fetchedAt,
		Stale:     e.stale,
	}, true
}

// Do resolves key through fn with at-most-one concurrent fetch per key. A
// caller arriving while a fetch for the same key is in flight receives that
// fetch's result instead of issuing a duplicate. Fulfilled entries are
// served until they go stale (TTL or invalidation); failed entries are not
// re-served, so the next caller refetches.
func (c *Cache) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	kind := kindOf(key)

	c.mu.Lock()
	if e, ok := c.entries.Get(key); ok {
		switch {
		case e.status == StatusPending:
			done := e.done
			c.mu.Unlock()
			observability.IncCacheResult(kind, "join")
			select {
			case <-done:
				// settled fields are safe to read after close
				return e.data, e.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case e.status == StatusFulfilled && !e.stale && c.now().Sub(e.fetchedAt) < c.ttl:
			data := e.data
			c.mu.Unlock()
			observability.IncCacheResult(kind, "hit")
			return data, nil
		}
	}

	e := &entry{status: StatusPending, done: make(chan struct{})}
	c.entries.Add(key, e)
	c.mu.Unlock()
	observability.IncCacheResult(kind, "miss")

	data, err := fn(ctx)

	c.mu.Lock()
	e.data = data
	e.err = err
	e.fetchedAt = c.now()
	if err != nil {
		e.status = StatusFailed
		e.stale = true
	} else {
		e.status = StatusFulfilled
		// an invalidation that raced the fetch keeps the entry stale
	}
	close(e.done)
	subs := append([]func(string){}, c.subs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(key)
	}
	return data, err
}

// InvalidatePrefix marks every entry whose key starts with prefix as stale
// and returns how many were touched. Pending entries are marked too, so a
// result that lands after the invalidation is not served as fresh.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	var touched []string
	for _, k := range c.entries.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if e, ok := c.entries.Peek(k); ok && !e.stale {
			e.stale = true
			touched = append(touched, k)
		}
	}
	subs := append([]func(string){}, c.subs...)
	c.mu.Unlock()

	for _, k := range touched {
		for _, fn := range subs {
			fn(k)
		}
	}
	return len(touched)
}

// Len reports the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Do is the typed wrapper most callers use.
func Do[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	v, err := c.Do(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("querycache: entry for %q holds %T", key, v)
	}
	return out, nil
}

func kindOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}
