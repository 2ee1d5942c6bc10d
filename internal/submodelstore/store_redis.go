package submodelstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"twinhub/pkg/platform/sentinel"
)

const keyPrefix = "twinhub:submodel:"

// RedisStore persists payloads in Redis. Payloads live until explicitly
// deleted; no TTL, the metadata store owns the lifecycle.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, payload Payload) error {
	if err := s.client.Set(ctx, keyPrefix+key, []byte(payload), 0).Err(); err != nil {
		return fmt.Errorf("submodel store put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Payload, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("submodel store get %s: %w", key, err)
	}
	return Payload(raw), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	deleted, err := s.client.Del(ctx, keyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("submodel store delete %s: %w", key, err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
