package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"brew-intelligence/models"
)

// ErrLocked is returned by Acquire when another run holds the lock.
var ErrLocked = errors.New("lock held by another run")

const (
	insightKeyPrefix = "insights:"
	lockKeyPrefix    = "lock:"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds the connection parameters for RedisCache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache mirrors cached insight views into Redis and provides the
// aggregation run lock.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

// InsightKey returns the Redis key under which view key is mirrored.
func InsightKey(key string) string {
	return insightKeyPrefix + key
}

// PublishInsights writes every entry in one MULTI/EXEC so readers never see
// a mix of old and new views.
func (c *RedisCache) PublishInsights(ctx context.Context, entries []models.InsightEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, InsightKey(e.Key), e.Data, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish %d insights: %w", len(entries), err)
	}
	return nil
}

// Insight returns the mirrored JSON for key, or nil when absent.
func (c *RedisCache) Insight(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, InsightKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return data, nil
}

// Acquire takes the named lock for at most ttl. The returned release func
// frees it if it is still ours.
func (c *RedisCache) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: acquire %s: %w", name, ErrLocked)
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, c.client, []string{key}, token).Err()
	}
	return release, nil
}

// Close closes the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
