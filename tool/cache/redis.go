package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shoplab-ai/shoplab/pkg/logging"
)

// RedisConfig holds configuration for the Redis-backed cache.
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for entries (0 means no expiration)
}

// Redis is a Cache backed by a Redis server, shared across process restarts
// and replicas. Lookups and writes are best-effort: Redis being down only
// costs cache hits.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis creates a Redis-backed cache.
func NewRedis(config *RedisConfig) *Redis {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "shoplab:tools:",
			TTL:    time.Hour,
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &Redis{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
		logger: logging.WithComponent("tool_cache"),
	}
}

// Get returns a cached value if present.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("redis cache get failed", "error", err)
		}
		return "", false
	}
	return value, true
}

// Set stores a value under the key.
func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		r.logger.Debug("redis cache set failed", "error", err)
	}
}

// Close releases the underlying Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
