package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const catalogVersionKey = "rbac:catalog:version"

// CatalogCache is a read-through Redis cache in front of the permission
// catalog. Versioned keys let catalog edits invalidate every cached operation
// with a single counter bump.
type CatalogCache struct {
	store  Catalog
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type cachedOperation struct {
	Roles      []string `json:"roles"`
	Registered bool     `json:"registered"`
}

// NewCatalogCache wraps the catalog store with Redis caching.
func NewCatalogCache(store Catalog, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	return &CatalogCache{store: store, client: client, ttl: ttl, logger: logger}
}

// RolesForOperation serves the permitted role set from cache, falling back to
// the store on miss or Redis failure. Authorization must keep working when
// Redis is down.
func (c *CatalogCache) RolesForOperation(ctx context.Context, operation string) ([]string, bool, error) {
	if c == nil || c.client == nil {
		return c.store.RolesForOperation(ctx, operation)
	}

	key, err := c.buildKey(ctx, operation)
	if err != nil {
		c.warn("rbac cache key", err)
		return c.store.RolesForOperation(ctx, operation)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedOperation
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached.Roles, cached.Registered, nil
		}
	} else if err != redis.Nil {
		c.warn("rbac cache get", err)
	}

	roles, registered, err := c.store.RolesForOperation(ctx, operation)
	if err != nil {
		return nil, false, err
	}

	data, err := json.Marshal(cachedOperation{Roles: roles, Registered: registered})
	if err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.warn("rbac cache set", err)
		}
	}
	return roles, registered, nil
}

// Invalidate bumps the catalog version, orphaning every cached entry.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, catalogVersionKey).Err()
}

func (c *CatalogCache) buildKey(ctx context.Context, operation string) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rbac:op:%s:%d", operation, ver), nil
}

func (c *CatalogCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, catalogVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, catalogVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

func (c *CatalogCache) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.Any("error", err))
	}
}

var _ Catalog = (*CatalogCache)(nil)
