package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/aishort/models"
	"github.com/cppla/aishort/services"
)

const (
	aliasKeyPrefix = "cache:alias:"
	redisOpTimeout = 2 * time.Second
)

// RedisCache implements services.AliasCache. Every method is best-effort:
// Redis trouble is logged and reported as a miss.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache returns nil when client is nil so callers can pass the result
// straight into services.ResolverOptions.
func NewRedisCache(client *redis.Client, logger *zap.Logger) services.AliasCache {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, logger: logger}
}

func aliasKey(alias string) string {
	return aliasKeyPrefix + alias
}

func (c *RedisCache) Get(ctx context.Context, alias string) (*models.URLRecord, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	b, err := c.client.Get(ctx, aliasKey(alias)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("cache get failed", zap.String("alias", alias), zap.Error(err))
		}
		return nil, false
	}
	var rec models.URLRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		c.logger.Warn("cache entry undecodable", zap.String("alias", alias), zap.Error(err))
		return nil, false
	}
	return &rec, true
}

func (c *RedisCache) Set(ctx context.Context, rec *models.URLRecord, ttl time.Duration) {
	if rec == nil || ttl <= 0 {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, aliasKey(rec.Alias), b, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("alias", rec.Alias), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, alias string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Del(ctx, aliasKey(alias)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.String("alias", alias), zap.Error(err))
	}
}
