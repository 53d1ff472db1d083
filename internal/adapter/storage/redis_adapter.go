package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phantom-eng/bytefood-web/internal/core/domain"
)

const cartKeyPrefix = "cart:"

// RedisAdapter stores each cart as one JSON document, refreshed on every save.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAdapter keeps carts for ttl after their last change; zero keeps them forever.
func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: ttl}
}

func (r *RedisAdapter) Load(ctx context.Context, key string) ([]domain.LineEntry, error) {
	raw, err := r.client.Get(ctx, cartKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var entries []domain.LineEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return entries, nil
}

func (r *RedisAdapter) Save(ctx context.Context, key string, entries []domain.LineEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return r.client.Set(ctx, cartKeyPrefix+key, raw, r.ttl).Err()
}

func (r *RedisAdapter) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, cartKeyPrefix+key).Err()
}
