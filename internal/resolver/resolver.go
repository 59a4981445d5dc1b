// Package resolver turns discovery filters into event feeds and map
// projections, hiding backend topology (RPC vs raw table) from callers.
package resolver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/kolabhq/kolab-discovery/internal/cache/keys"
	"github.com/kolabhq/kolab-discovery/internal/cache/querycache"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/core/observability"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

const (
	DefaultFeedLimit = 50
	DefaultMapLimit  = 200
)

const (
	pathPrimary  = "primary"
	pathFallback = "fallback"
)

// SharedStore is the optional cross-instance cache tier (Redis). Local
// in-flight dedup still happens in the query cache; this tier only shares
// settled payloads between replicas.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

type Config struct {
	Logger   *slog.Logger
	Primary  source.EventSource
	Fallback source.EventSource
	Cache    *querycache.Cache
	// Shared may be nil; the resolver then runs purely in-process.
	Shared    SharedStore
	SharedTTL time.Duration

	FeedLimit int
	MapLimit  int
}

type Resolver struct {
	logger    *slog.Logger
	primary   source.EventSource
	fallback  source.EventSource
	cache     *querycache.Cache
	shared    SharedStore
	sharedTTL time.Duration
	feedLimit int
	mapLimit  int
}

func New(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FeedLimit <= 0 {
		cfg.FeedLimit = DefaultFeedLimit
	}
	if cfg.MapLimit <= 0 {
		cfg.MapLimit = DefaultMapLimit
	}
	if cfg.SharedTTL <= 0 {
		cfg.SharedTTL = querycache.DefaultTTL
	}
	return &Resolver{
		logger:    cfg.Logger,
		primary:   cfg.Primary,
		fallback:  cfg.Fallback,
		cache:     cfg.Cache,
		shared:    cfg.Shared,
		sharedTTL: cfg.SharedTTL,
		feedLimit: cfg.FeedLimit,
		mapLimit:  cfg.MapLimit,
	}
}

// resolve tries the primary source and falls back to the table source on
// any primary failure. Empty primary results are a valid success and do not
// trigger the fallback. When both fail, the fallback's error is the one
// surfaced.
func (r *Resolver) resolve(ctx context.Context, kind string, f model.EventFilters, opts source.QueryOptions) ([]model.EventRecord, string, error) {
	rows, err := r.primary.QueryEvents(ctx, f, opts)
	if err == nil {
		observability.IncResolverPath(kind, pathPrimary)
		return rows, pathPrimary, nil
	}

	r.logger.Warn("primary source failed, falling back", "kind", kind, "err", err)
	observability.IncResolverPath(kind, pathFallback)

	rows, ferr := r.fallback.QueryEvents(ctx, f, opts)
	if ferr != nil {
		observability.IncResolverFailure(kind)
		return nil, pathFallback, ferr
	}
	return rows, pathFallback, nil
}

// InvalidateReads marks every cached feed and map entry stale, locally and
// on the shared tier. Called after any successful mutation and by the
// invalidation consumer.
func (r *Resolver) InvalidateReads(ctx context.Context) {
	for _, kind := range []string{keys.KindFeed, keys.KindMap} {
		n := r.cache.InvalidatePrefix(keys.Prefix(kind))
		if r.shared != nil {
			if _, err := r.shared.DelPrefix(ctx, keys.Prefix(kind)); err != nil {
				r.logger.Warn("shared tier invalidation failed", "kind", kind, "err", err)
			}
		}
		r.logger.Debug("invalidated cached reads", "kind", kind, "local_entries", n)
	}
}

// sharedGet decodes a shared-tier payload into out; a miss or a decode
// problem is treated as a miss.
func (r *Resolver) sharedGet(ctx context.Context, key string, out any) bool {
	if r.shared == nil {
		return false
	}
	raw, ok, err := r.shared.Get(ctx, key)
	if err != nil {
		r.logger.Warn("shared tier get failed", "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		r.logger.Warn("shared tier payload corrupt", "key", key, "err", err)
		return false
	}
	return true
}

func (r *Resolver) sharedSet(ctx context.Context, key string, val any) {
	if r.shared == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := r.shared.Set(ctx, key, raw, r.sharedTTL); err != nil {
		r.logger.Warn("shared tier set failed", "key", key, "err", err)
	}
}
