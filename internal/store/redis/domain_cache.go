package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eventsaas/eventsaas/internal/tenant"
	goredis "github.com/redis/go-redis/v9"
)

const domainCachePrefix = "tenant:host:"

// DomainCache implements tenant.DomainCache with one JSON string per host.
type DomainCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// NewDomainCache creates a host → tenant cache whose entries live for ttl.
func NewDomainCache(rdb goredis.Cmdable, ttl time.Duration) *DomainCache {
	return &DomainCache{rdb: rdb, ttl: ttl}
}

var _ tenant.DomainCache = (*DomainCache)(nil)

func domainKey(host string) string {
	return domainCachePrefix + host
}

// Get returns the cached resolution for host or tenant.ErrCacheMiss.
func (c *DomainCache) Get(ctx context.Context, host string) (*tenant.Resolution, error) {
	data, err := c.rdb.Get(ctx, domainKey(host)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, tenant.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read domain cache: %w", err)
	}

	var res tenant.Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		// Unreadable entries behave like misses and get overwritten.
		return nil, tenant.ErrCacheMiss
	}
	return &res, nil
}

// Set caches the resolution for host.
func (c *DomainCache) Set(ctx context.Context, host string, res tenant.Resolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode domain cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, domainKey(host), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write domain cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached entries for hosts.
func (c *DomainCache) Invalidate(ctx context.Context, hosts ...string) error {
	if len(hosts) == 0 {
		return nil
	}
	keys := make([]string, len(hosts))
	for i, h := range hosts {
		keys[i] = domainKey(h)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate domain cache: %w", err)
	}
	return nil
}
