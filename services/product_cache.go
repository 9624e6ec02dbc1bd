package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rusticroots/storefront-api/models"
)

const featuredProductsKey = "rustic-roots:products:featured"

// ProductCache caches the featured product listing
type ProductCache interface {
	GetFeatured(ctx context.Context) ([]models.Product, bool)
	SetFeatured(ctx context.Context, products []models.Product) error
	Invalidate(ctx context.Context) error
}

var productCacheInstance ProductCache = NoopProductCache{}

// GetProductCache returns the global product cache
func GetProductCache() ProductCache {
	return productCacheInstance
}

// SetProductCache sets the global product cache
func SetProductCache(c ProductCache) {
	productCacheInstance = c
}

// RedisProductCache stores the featured listing as JSON in Redis
type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProductCache creates a cache whose entries live for ttl
func NewRedisProductCache(client *redis.Client, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{client: client, ttl: ttl}
}

func (c *RedisProductCache) GetFeatured(ctx context.Context) ([]models.Product, bool) {
	val, err := c.client.Get(ctx, featuredProductsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var products []models.Product
	if err := json.Unmarshal(val, &products); err != nil {
		return nil, false
	}
	return products, true
}

func (c *RedisProductCache) SetFeatured(ctx context.Context, products []models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, featuredProductsKey, data, c.ttl).Err()
}

func (c *RedisProductCache) Invalidate(ctx context.Context) error {
	err := c.client.Del(ctx, featuredProductsKey).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// NoopProductCache never caches
type NoopProductCache struct{}

func (NoopProductCache) GetFeatured(context.Context) ([]models.Product, bool) { return nil, false }
func (NoopProductCache) SetFeatured(context.Context, []models.Product) error { return nil }
func (NoopProductCache) Invalidate(context.Context) error { return nil }
