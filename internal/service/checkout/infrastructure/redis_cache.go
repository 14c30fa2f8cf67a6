// internal/service/checkout/infrastructure/redis_cache.go
package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vertex/internal/pkg/logger"
)

// RedisAvailabilityCache 把热门 SKU 的可用量缓存在 Redis 里，
// 供 GetAvailable 的读路径使用。写路径每次成功写入后失效对应 key，
// 缓存只会短暂落后、不会长期脏。
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAvailabilityCache 创建缓存实例。
func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

func availabilityKey(sku string) string {
	return fmt.Sprintf("stock:avail:{%s}", sku)
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, sku string) (int, bool) {
	val, err := c.client.Get(ctx, availabilityKey(sku)).Result()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		// 缓存故障降级到存储读，不影响正确性
		logger.Ctx(ctx).Warn().Err(err).Str("sku", sku).Msg("availability cache read failed")
		return 0, false
	}
	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return available, true
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, sku string, available int) {
	if err := c.client.Set(ctx, availabilityKey(sku), available, c.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("sku", sku).Msg("availability cache write failed")
	}
}

func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, sku string) {
	if err := c.client.Del(ctx, availabilityKey(sku)).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("sku", sku).Msg("availability cache invalidation failed")
	}
}
