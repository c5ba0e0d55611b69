package pagecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/go-pagination/pkg/pager"
)

var (
	// ErrCacheMiss indicates the requested cursor was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config configures a CachedSource.
type Config struct {
	// Source is the cache namespace. Required; sources sharing a Redis
	// instance must use distinct names.
	Source string

	// TTL is the lifetime of cached pages.
	TTL time.Duration

	// Logger overrides the package logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration with a short page lifetime.
func DefaultConfig(source string) Config {
	return Config{
		Source: source,
		TTL:    60 * time.Second,
	}
}

// CachedSource decorates a CursorSource with a Redis page cache.
// Concurrent misses for the same cursor are collapsed into a single
// upstream call. Cache failures degrade to direct fetches; they are
// logged, counted and never surfaced to the caller.
type CachedSource[E any] struct {
	source pager.CursorSource[E]
	redis  *redis.Client
	cfg    Config
	sf     singleflight.Group
	logger zerolog.Logger
}

// NewCachedSource creates a caching decorator around source.
func NewCachedSource[E any](source pager.CursorSource[E], redisClient *redis.Client, cfg Config) (*CachedSource[E], error) {
	if source == nil {
		return nil, fmt.Errorf("pagecache: source is required")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("pagecache: redis client is required")
	}
	if cfg.Source == "" {
		return nil, fmt.Errorf("pagecache: source name is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig(cfg.Source).TTL
	}
	logger := log.With().Str("component", "pagecache").Str("source", cfg.Source).Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &CachedSource[E]{
		source: source,
		redis:  redisClient,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// List implements pager.CursorSource. Cached pages are returned without
// touching the upstream source; misses fetch upstream once per cursor
// and store the result with the configured TTL.
func (c *CachedSource[E]) List(ctx context.Context, cursor pager.Cursor) (pager.ListResult[E], error) {
	key := Key{Source: c.cfg.Source, Cursor: cursor}.String()

	if res, err := c.get(ctx, key); err == nil {
		CacheHits.WithLabelValues(c.cfg.Source).Inc()
		return res, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		CacheErrors.WithLabelValues("get").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to source")
	}
	CacheMisses.WithLabelValues(c.cfg.Source).Inc()

	v, err, _ := c.sf.Do(key, func() (any, error) {
		res, err := c.source.List(ctx, cursor)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return pager.ListResult[E]{}, err
	}
	return v.(pager.ListResult[E]), nil
}

// Invalidate removes the cached page for one cursor.
func (c *CachedSource[E]) Invalidate(ctx context.Context, cursor pager.Cursor) error {
	key := Key{Source: c.cfg.Source, Cursor: cursor}.String()
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("pagecache: redis del: %w", err)
	}
	return nil
}

// InvalidateAll removes every cached page of this source. Refresh flows
// call it so a new pagination pass observes fresh data.
func (c *CachedSource[E]) InvalidateAll(ctx context.Context) error {
	pattern := Prefix(c.cfg.Source) + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		return fmt.Errorf("pagecache: redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("pagecache: redis del: %w", err)
	}
	return nil
}

func (c *CachedSource[E]) get(ctx context.Context, key string) (pager.ListResult[E], error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return pager.ListResult[E]{}, ErrCacheMiss
		}
		return pager.ListResult[E]{}, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return pager.ListResult[E]{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.IsExpired() {
		// Redis TTL should have removed it already; treat as a miss.
		_ = c.redis.Del(ctx, key).Err()
		return pager.ListResult[E]{}, ErrCacheMiss
	}

	var items []E
	if err := json.Unmarshal(entry.Items, &items); err != nil {
		return pager.ListResult[E]{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return pager.ListResult[E]{
		Items:      items,
		NextCursor: entry.NextCursor,
		HasMore:    entry.HasMore,
	}, nil
}

// store writes a fetched page to Redis. Failures only cost future cache
// hits, so they are logged and dropped.
func (c *CachedSource[E]) store(ctx context.Context, key string, res pager.ListResult[E]) {
	items, err := json.Marshal(res.Items)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("marshal page failed")
		return
	}
	now := time.Now()
	entry := Entry{
		Items:      items,
		NextCursor: res.NextCursor,
		HasMore:    res.HasMore,
		CachedAt:   now,
		Expires:    now.Add(c.cfg.TTL),
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("marshal cache entry failed")
		return
	}
	if err := c.redis.Set(ctx, key, data, entry.TTL()).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	CacheEntryBytes.Observe(float64(len(data)))
}
