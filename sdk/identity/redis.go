package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps the user key in Redis so that several processes acting
// for the same user share one identity.
type RedisStore struct {
	Client *redis.Client
	// Key is the Redis key holding the token.
	Key string
	// TTL expires the token after the last write. Zero keeps it forever.
	TTL time.Duration
}

// RedisKey returns the key a namespace's token is stored under.
func RedisKey(namespace string) string {
	return fmt.Sprintf("identity:%s:user_key", namespace)
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{Client: client, Key: RedisKey(namespace), TTL: ttl}
}

// InitRedis connects to addr, instruments the client for tracing and checks
// the connection.
func InitRedis(ctx context.Context, addr, namespace string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr), zap.String("namespace", namespace))
	return NewRedisStore(client, namespace, ttl), nil
}

func (r *RedisStore) Token(ctx context.Context) (string, error) {
	val, err := r.Client.Get(ctx, r.Key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read user key: %w", err)
	}
	return val, nil
}

func (r *RedisStore) Save(ctx context.Context, token string) error {
	if err := r.Client.Set(ctx, r.Key, token, r.TTL).Err(); err != nil {
		return fmt.Errorf("write user key: %w", err)
	}
	return nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
