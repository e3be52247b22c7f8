package orgs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campus/pkg/permissions"
)

// CacheConfig sizes the university cache
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
	KeyPrefix  string
}

// DefaultCacheConfig returns the cache settings used by the server
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxEntries: 1024,
		TTL:        5 * time.Minute,
		KeyPrefix:  "campus:university:",
	}
}

// CacheStats reports lookups served by each layer
type CacheStats struct {
	LocalHits  int64 `json:"local_hits"`
	RemoteHits int64 `json:"remote_hits"`
	Misses     int64 `json:"misses"`
}

// CacheObserver receives per-layer hit and miss counts
type CacheObserver interface {
	ObserveCacheHit(cache, layer string)
	ObserveCacheMiss(cache string)
}

const cacheName = "universities"

// CachedService caches Get in an expirable LRU and, when a Redis client is
// supplied, in Redis. Redis failures fall through to the wrapped service.
type CachedService struct {
	Service
	config CacheConfig
	local  *lru.LRU[int64, *Organization]
	redis  *redis.Client
	obs    CacheObserver

	localHits  atomic.Int64
	remoteHits atomic.Int64
	misses     atomic.Int64
}

// NewCachedService wraps next. rdb may be nil.
func NewCachedService(next Service, rdb *redis.Client, config CacheConfig) *CachedService {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig().TTL
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultCacheConfig().KeyPrefix
	}
	return &CachedService{
		Service: next,
		config:  config,
		local:   lru.NewLRU[int64, *Organization](config.MaxEntries, nil, config.TTL),
		redis:   rdb,
	}
}

// WithObserver reports hits and misses to obs as well as Stats
func (c *CachedService) WithObserver(obs CacheObserver) *CachedService {
	c.obs = obs
	return c
}

func (c *CachedService) hit(layer string) {
	if c.obs != nil {
		c.obs.ObserveCacheHit(cacheName, layer)
	}
}

// Get returns a cached copy when available
func (c *CachedService) Get(ctx context.Context, id int64) (*Organization, error) {
	if org, ok := c.local.Get(id); ok {
		c.localHits.Add(1)
		c.hit("local")
		return copyOrganization(org), nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, c.key(id)).Bytes()
		switch {
		case err == nil:
			var org Organization
			if err := json.Unmarshal(data, &org); err == nil {
				c.remoteHits.Add(1)
				c.hit("redis")
				c.local.Add(id, &org)
				return copyOrganization(&org), nil
			}
		case err != redis.Nil:
			logrus.WithError(err).WithField("organization_id", id).Warn("university cache read failed")
		}
	}

	c.misses.Add(1)
	if c.obs != nil {
		c.obs.ObserveCacheMiss(cacheName)
	}
	org, err := c.Service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, org)
	return copyOrganization(org), nil
}

// Exists consults the cache before the wrapped service
func (c *CachedService) Exists(ctx context.Context, id int64) (bool, error) {
	if _, ok := c.local.Get(id); ok {
		return true, nil
	}
	return c.Service.Exists(ctx, id)
}

// Update invalidates the cached university
func (c *CachedService) Update(ctx context.Context, perms *permissions.Resolver, id int64, req UpdateRequest) (*Organization, error) {
	org, err := c.Service.Update(ctx, perms, id, req)
	c.Invalidate(ctx, id)
	return org, err
}

// SetImage invalidates the cached university
func (c *CachedService) SetImage(ctx context.Context, perms *permissions.Resolver, id int64, imageURL string) (*Organization, error) {
	org, err := c.Service.SetImage(ctx, perms, id, imageURL)
	c.Invalidate(ctx, id)
	return org, err
}

// Deactivate invalidates the cached university
func (c *CachedService) Deactivate(ctx context.Context, perms *permissions.Resolver, id int64) (*Organization, error) {
	org, err := c.Service.Deactivate(ctx, perms, id)
	c.Invalidate(ctx, id)
	return org, err
}

// Invalidate drops id from both layers
func (c *CachedService) Invalidate(ctx context.Context, id int64) {
	c.local.Remove(id)
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, c.key(id)).Err(); err != nil {
		logrus.WithError(err).WithField("organization_id", id).Warn("university cache invalidation failed")
	}
}

// Stats returns hit and miss counters
func (c *CachedService) Stats() CacheStats {
	return CacheStats{
		LocalHits:  c.localHits.Load(),
		RemoteHits: c.remoteHits.Load(),
		Misses:     c.misses.Load(),
	}
}

func (c *CachedService) store(ctx context.Context, org *Organization) {
	c.local.Add(org.ID, copyOrganization(org))
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(org)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(org.ID), data, c.config.TTL).Err(); err != nil {
		logrus.WithError(err).WithField("organization_id", org.ID).Warn("university cache write failed")
	}
}

func (c *CachedService) key(id int64) string {
	return fmt.Sprintf("%s%d", c.config.KeyPrefix, id)
}

func copyOrganization(org *Organization) *Organization {
	cp := *org
	return &cp
}
