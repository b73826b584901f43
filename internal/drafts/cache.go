package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Redis keys of the live listing. Snapshots live under ListingKey suffixed
// with the generation stored at ListingVersionKey.
const (
	ListingKey        = "catalog:product_drafts:listing"
	ListingVersionKey = "catalog:product_drafts:listing:version"
)

// Bounds of the listing TTL.
const (
	DefaultListingTTL = 60 * time.Minute
	MinListingTTL     = time.Minute
	MaxListingTTL     = 100 * time.Minute
)

// BoundTTL clamps ttl into [MinListingTTL, MaxListingTTL]; zero selects the default.
func BoundTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl <= 0:
		return DefaultListingTTL
	case ttl < MinListingTTL:
		return MinListingTTL
	case ttl > MaxListingTTL:
		return MaxListingTTL
	}
	return ttl
}

// ListingCache keeps the full live listing in Redis. Redis failures degrade to
// storage reads; they never fail a request on their own.
//
// Every mutation bumps the listing generation before reloading, and a fill is
// stored under the generation read before its load started. A fill that raced
// a mutation therefore lands on a retired key and can never shadow the
// refreshed snapshot.
type ListingCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
	lookups *prometheus.CounterVec
}

// NewListingCache builds the cache. A nil registerer skips metric registration.
func NewListingCache(client *redis.Client, ttl time.Duration, logger *slog.Logger, registerer prometheus.Registerer) *ListingCache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &ListingCache{client: client, ttl: BoundTTL(ttl), logger: logger}
	if registerer != nil {
		c.lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_draft_cache_lookups_total",
			Help: "Draft listing cache lookups partitioned by result.",
		}, []string{"result"})
		registerer.MustRegister(c.lookups)
	}
	return c
}

// TTL reports the effective expiry of the listing.
func (c *ListingCache) TTL() time.Duration {
	return c.ttl
}

// Version returns the current listing generation, initialising it when missing.
func (c *ListingCache) Version(ctx context.Context) (int64, error) {
	if err := c.client.SetNX(ctx, ListingVersionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	return c.client.Get(ctx, ListingVersionKey).Int64()
}

// Bump retires the current generation and returns the new one.
func (c *ListingCache) Bump(ctx context.Context) (int64, error) {
	return c.client.Incr(ctx, ListingVersionKey).Result()
}

func versionedKey(ver int64) string {
	return fmt.Sprintf("%s:%d", ListingKey, ver)
}

// GetOrLoad returns the cached listing, rebuilding it once for all concurrent
// callers on a miss.
func (c *ListingCache) GetOrLoad(ctx context.Context, load Loader) ([]Draft, error) {
	if load == nil {
		return nil, errors.New("drafts: listing loader required")
	}
	if c == nil || c.client == nil {
		return load(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		c.logger.Warn("read draft listing version", slog.Any("error", err))
		return load(ctx)
	}
	items, ok := c.read(ctx, ver)
	if ok {
		c.observe("hit")
		return items, nil
	}
	c.observe("miss")

	v, err, _ := c.group.Do(strconv.FormatInt(ver, 10), func() (interface{}, error) {
		items, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.write(ctx, ver, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Draft), nil
}

// Refresh starts a new generation and stores the listing under it. When the
// new snapshot cannot be stored the generation is bumped again so readers fall
// through to storage.
func (c *ListingCache) Refresh(ctx context.Context, load Loader) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.Bump(ctx)
	if err != nil {
		return err
	}
	items, err := load(ctx)
	if err != nil {
		c.Invalidate(ctx)
		return err
	}
	raw, err := json.Marshal(items)
	if err != nil {
		c.Invalidate(ctx)
		return err
	}
	if err := c.client.Set(ctx, versionedKey(ver), raw, c.ttl).Err(); err != nil {
		c.Invalidate(ctx)
		return err
	}
	return nil
}

// Invalidate retires the cached listing.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if _, err := c.Bump(ctx); err != nil {
		c.logger.Warn("invalidate draft listing", slog.Any("error", err))
	}
}

// Lookup finds one live draft inside the cached listing.
func (c *ListingCache) Lookup(ctx context.Context, id int64) (Draft, bool) {
	if c == nil || c.client == nil {
		return Draft{}, false
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return Draft{}, false
	}
	items, ok := c.read(ctx, ver)
	if !ok {
		return Draft{}, false
	}
	for _, d := range items {
		if d.ID == id {
			return d, true
		}
	}
	return Draft{}, false
}

func (c *ListingCache) read(ctx context.Context, ver int64) ([]Draft, bool) {
	payload, err := c.client.Get(ctx, versionedKey(ver)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("read draft listing cache", slog.Any("error", err))
		}
		return nil, false
	}
	var items []Draft
	if err := json.Unmarshal(payload, &items); err != nil {
		c.logger.Warn("decode draft listing cache", slog.Any("error", err))
		c.Invalidate(ctx)
		return nil, false
	}
	return items, true
}

func (c *ListingCache) write(ctx context.Context, ver int64, items []Draft) {
	raw, err := json.Marshal(items)
	if err != nil {
		c.logger.Warn("encode draft listing cache", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, versionedKey(ver), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("store draft listing cache", slog.Any("error", err))
	}
}

func (c *ListingCache) observe(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}
