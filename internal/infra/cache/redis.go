package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketplace/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedisClient は接続してPINGまで確認する。
func NewRedisClient(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if cfg.RedisHost == "" {
		return nil, fmt.Errorf("REDIS_HOST is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisHost,
		Password:     cfg.RedisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info().Str("addr", cfg.RedisHost).Msg("Connected to Redis")
	return client, nil
}

// 画面用データの読み取りキャッシュ（キーごとにJSONを置く）
type RedisViewCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisViewCache(client *redis.Client, ttl time.Duration) *RedisViewCache {
	return &RedisViewCache{client: client, ttl: ttl, prefix: "view:"}
}

func (c *RedisViewCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// 世代キーは値より長く残す（消えても0に戻るだけで、古い世代の書き込みは通らない）
const generationTTL = 24 * time.Hour

// 世代が一致するときだけSETする
var setIfGenerationScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if (cur or '0') ~= ARGV[2] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

func (c *RedisViewCache) genKey(key string) string {
	return c.prefix + "gen:" + key
}

func (c *RedisViewCache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisViewCache) SetIfGeneration(ctx context.Context, key string, value []byte, gen int64) (bool, error) {
	n, err := setIfGenerationScript.Run(ctx, c.client,
		[]string{c.prefix + key, c.genKey(key)},
		value, strconv.FormatInt(gen, 10), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// 古くなった画面のキーを消して世代を進める
func (c *RedisViewCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Incr(ctx, c.genKey(k))
			pipe.Expire(ctx, c.genKey(k), generationTTL)
			pipe.Del(ctx, c.prefix+k)
		}
		return nil
	})
	return err
}
