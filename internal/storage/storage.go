package storage

import (
	"context"
	"errors"
)

// Slots is durable key/value storage holding one serialized cart per key.
// Consumers define this interface, backends implement it.
type Slots interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrSlotNotFound = errors.New("slot not found")
