package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupTestMongo(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)
	return uri
}

func TestMongoSlots(t *testing.T) {
	uri := setupTestMongo(t)
	ctx := context.Background()

	slots, err := OpenMongoSlots(ctx, uri, "testdb")
	require.NoError(t, err)
	defer slots.Close(ctx)

	_, err = slots.Load(ctx, "session-1")
	assert.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, slots.Save(ctx, "session-1", []byte(`[{"id":"1","quantity":1}]`)))
	require.NoError(t, slots.Save(ctx, "session-1", []byte(`[{"id":"1","quantity":3}]`)))

	data, err := slots.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1","quantity":3}]`, string(data))

	require.NoError(t, slots.Delete(ctx, "session-1"))
	_, err = slots.Load(ctx, "session-1")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestOpenMongoSlots_IndexConflictClosesClient(t *testing.T) {
	uri := setupTestMongo(t)
	ctx := context.Background()

	db, err := ConnectMongoDB(ctx, uri, "conflictdb")
	require.NoError(t, err)
	defer db.Client().Disconnect(ctx)

	// same key pattern with a different TTL
	_, err = db.Collection("cart_slots").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(60),
	})
	require.NoError(t, err)

	slots, err := OpenMongoSlots(ctx, uri, "conflictdb")
	require.ErrorContains(t, err, "failed to create indexes")
	assert.Nil(t, slots)
}

func TestMongoSlots_CloseDisconnects(t *testing.T) {
	uri := setupTestMongo(t)
	ctx := context.Background()

	slots, err := OpenMongoSlots(ctx, uri, "testdb")
	require.NoError(t, err)
	require.NoError(t, slots.Close(ctx))

	_, err = slots.Load(ctx, "session-1")
	assert.ErrorIs(t, err, mongo.ErrClientDisconnected)
}
