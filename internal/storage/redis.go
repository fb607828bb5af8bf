package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisSlots(client *redis.Client, baseTTL time.Duration) *RedisSlots {
	return &RedisSlots{
		client:  client,
		baseTTL: baseTTL,
	}
}

// RedisSlots stores each cart under cart:<key>. Keys expire after the base TTL
// plus up to four minutes of jitter so idle carts do not expire in bursts.
type RedisSlots struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisSlots) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, slotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r RedisSlots) Save(ctx context.Context, key string, payload []byte) error {
	if err := r.client.Set(ctx, slotKey(key), payload, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisSlots) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, slotKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r RedisSlots) ttl() time.Duration {
	if r.baseTTL <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	return r.baseTTL + jitter
}

func slotKey(key string) string {
	return fmt.Sprintf("cart:%s", key)
}
