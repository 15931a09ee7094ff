package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"poolLedger/internal/model"
)

// Cache persists resolved metadata across runs.
type Cache interface {
	Get(ctx context.Context, chainID uint64, address string) (model.TokenMeta, bool, error)
	Set(ctx context.Context, chainID uint64, meta model.TokenMeta) error
}

// RedisCache stores metadata as JSON under tokenmeta:{chainId}:{address}.
type RedisCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisCache connects to addr and pings it. A zero ttl keeps keys forever.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *goredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, chainID uint64, address string) (model.TokenMeta, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(chainID, address)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return model.TokenMeta{}, false, nil
	}
	if err != nil {
		return model.TokenMeta{}, false, err
	}
	var meta model.TokenMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return model.TokenMeta{}, false, fmt.Errorf("decode cached metadata: %w", err)
	}
	return meta, true, nil
}

func (c *RedisCache) Set(ctx context.Context, chainID uint64, meta model.TokenMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKey(chainID, meta.Address), raw, c.ttl).Err()
}

func redisKey(chainID uint64, address string) string {
	return fmt.Sprintf("tokenmeta:%d:%s", chainID, address)
}
