package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps the token under one Redis key.
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

// NewRedisTokenStore constructs a store using key "<prefix><key>".
func NewRedisTokenStore(client *redis.Client, prefix, key string) *RedisTokenStore {
	if prefix == "" {
		prefix = "classroom:"
	}
	return &RedisTokenStore{client: client, key: prefix + key}
}

func (s *RedisTokenStore) Get(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisTokenStore) Set(ctx context.Context, token string) error {
	return s.client.Set(ctx, s.key, token, 0).Err()
}

func (s *RedisTokenStore) Remove(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
