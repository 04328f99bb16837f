// Package session provides a Redis backend for per-profile editor storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"citeme/api/internal/store"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements store.KV using Redis strings.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed store. ttl of zero keeps entries
// until they are deleted.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "citeme:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(profile, key string) string {
	return s.prefix + profile + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, profile, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(profile, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", store.Wrap("get", key, err)
	}
	return value, nil
}

// Set stores value, refreshing the TTL when one is configured.
func (s *RedisStore) Set(ctx context.Context, profile, key, value string) error {
	return store.Wrap("set", key, s.client.Set(ctx, s.key(profile, key), value, s.ttl).Err())
}

func (s *RedisStore) Delete(ctx context.Context, profile, key string) error {
	return store.Wrap("delete", key, s.client.Del(ctx, s.key(profile, key)).Err())
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
