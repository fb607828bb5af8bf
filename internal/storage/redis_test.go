package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns RedisSlots backed by it
func setupTestRedis(t *testing.T) (*RedisSlots, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	slots := NewRedisSlots(client, 15*time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return slots, mr, cleanup
}

func TestRedisLoad_Success(t *testing.T) {
	slots, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	payload := `[{"id":"1","name":"Mug","category":"kitchen","image":"mug.png","price":10,"quantity":2}]`
	require.NoError(t, mr.Set(slotKey("session-1"), payload))

	data, err := slots.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(data))
}

func TestRedisLoad_NotFound(t *testing.T) {
	slots, _, cleanup := setupTestRedis(t)
	defer cleanup()

	data, err := slots.Load(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.Nil(t, data)
}

func TestRedisLoad_ServerDown(t *testing.T) {
	slots, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	_, err := slots.Load(context.Background(), "session-1")
	require.ErrorContains(t, err, "redis get failed")
	assert.NotErrorIs(t, err, ErrSlotNotFound)
}

func TestRedisSave_WithTTL(t *testing.T) {
	slots, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	err := slots.Save(context.Background(), "session-2", []byte("[]"))
	require.NoError(t, err)

	stored, err := mr.Get(slotKey("session-2"))
	require.NoError(t, err)
	assert.Equal(t, "[]", stored)

	ttl := mr.TTL(slotKey("session-2"))
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl <= 20*time.Minute, "TTL should be base + max jitter")
}

func TestRedisSave_NoTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	slots := NewRedisSlots(client, 0)
	require.NoError(t, slots.Save(context.Background(), "session-3", []byte("[]")))
	assert.Equal(t, time.Duration(0), mr.TTL(slotKey("session-3")))
}

func TestRedisDelete(t *testing.T) {
	slots, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(slotKey("session-4"), "[]"))
	assert.True(t, mr.Exists(slotKey("session-4")))

	require.NoError(t, slots.Delete(context.Background(), "session-4"))
	assert.False(t, mr.Exists(slotKey("session-4")))

	// Deleting non-existent key should not error
	assert.NoError(t, slots.Delete(context.Background(), "session-4"))
}

func TestSlotKey_Format(t *testing.T) {
	assert.Equal(t, "cart:abc", slotKey("abc"))
}
