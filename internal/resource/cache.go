package resource

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds resources read outside booking transactions. Booking writes
// always read the resource row under lock and never consult it.
type Cache interface {
	Get(ctx context.Context, id string) (*Resource, bool)
	Set(ctx context.Context, res *Resource)
	Invalidate(ctx context.Context, id string)
}

type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Resource, bool) { return nil, false }
func (NopCache) Set(context.Context, *Resource)                {}
func (NopCache) Invalidate(context.Context, string)            {}

// OwnerEvictor drops the cached copies of every resource an owner holds. User
// deletion removes those rows through teardown, which never sees the cache.
type OwnerEvictor struct {
	repo  Repository
	cache Cache
}

func NewOwnerEvictor(repo Repository, cache Cache) *OwnerEvictor {
	if cache == nil {
		cache = NopCache{}
	}
	return &OwnerEvictor{repo: repo, cache: cache}
}

const ownedPageSize = 100

// OwnedBy lists the IDs of all resources owned by ownerID.
func (e *OwnerEvictor) OwnedBy(ctx context.Context, ownerID string) ([]string, error) {
	var ids []string
	for page := 1; ; page++ {
		items, total, err := e.repo.List(ctx, Filter{OwnerID: ownerID, Page: page, PageSize: ownedPageSize})
		if err != nil {
			return nil, err
		}
		for _, res := range items {
			ids = append(ids, res.ID)
		}
		if len(items) == 0 || len(ids) >= total {
			return ids, nil
		}
	}
}

func (e *OwnerEvictor) Evict(ctx context.Context, ids []string) {
	for _, id := range ids {
		e.cache.Invalidate(ctx, id)
	}
}

// RedisCache stores JSON-encoded resources with a TTL. Redis errors degrade to
// cache misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, log: logger}
}

func cacheKey(id string) string {
	return "reservation:resource:" + id
}

type cachedResource struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capacity     int       `json:"capacity"`
	IsRestricted bool      `json:"is_restricted"`
	TimeZone     string    `json:"time_zone"`
	Schedule     *Schedule `json:"schedule"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func encodeCached(res *Resource) ([]byte, error) {
	return json.Marshal(cachedResource(*res))
}

func decodeCached(data []byte) (*Resource, error) {
	var c cachedResource
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	res := Resource(c)
	return &res, nil
}

func (c *RedisCache) Get(ctx context.Context, id string) (*Resource, bool) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("resource cache read failed", "resource_id", id, "error", err)
		}
		return nil, false
	}
	res, err := decodeCached(data)
	if err != nil {
		c.log.Warn("resource cache entry corrupt", "resource_id", id, "error", err)
		return nil, false
	}
	return res, true
}

func (c *RedisCache) Set(ctx context.Context, res *Resource) {
	data, err := encodeCached(res)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(res.ID), data, c.ttl).Err(); err != nil {
		c.log.Warn("resource cache write failed", "resource_id", res.ID, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.log.Warn("resource cache invalidate failed", "resource_id", id, "error", err)
	}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
