package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"listing-service/internal/domain"

	"github.com/go-redis/redis/v8"
)

var ErrCacheMiss = errors.New("cache miss")

const DefaultListingTTL = 10 * time.Minute

type RedisCache struct {
	client *redis.Client
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

func NewRedisCache(client *redis.Client) Cache {
	return &RedisCache{
		client: client,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func ListingKey(id int64) string {
	return fmt.Sprintf("listing:%d", id)
}

// ListingCache stores listings as JSON under listing:<id>.
type ListingCache struct {
	cache Cache
	ttl   time.Duration
}

func NewListingCache(c Cache, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	return &ListingCache{cache: c, ttl: ttl}
}

func (lc *ListingCache) Get(ctx context.Context, id int64) (*domain.Listing, error) {
	raw, err := lc.cache.Get(ctx, ListingKey(id))
	if err != nil {
		return nil, err
	}

	var l domain.Listing
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return nil, fmt.Errorf("failed to decode cached listing %d: %w", id, err)
	}
	return &l, nil
}

func (lc *ListingCache) Put(ctx context.Context, l *domain.Listing) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode listing %d: %w", l.ID, err)
	}
	return lc.cache.Set(ctx, ListingKey(l.ID), string(raw), lc.ttl)
}

func (lc *ListingCache) Invalidate(ctx context.Context, id int64) error {
	return lc.cache.Delete(ctx, ListingKey(id))
}
