package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// chanReader feeds queued messages and then blocks until the context ends.
type chanReader struct {
	msgs   chan kafka.Message
	m      sync.Mutex
	closed bool
}

func newChanReader(values ...string) *chanReader {
	r := &chanReader{msgs: make(chan kafka.Message, len(values))}
	for i, v := range values {
		r.msgs <- kafka.Message{Offset: int64(i), Value: []byte(v)}
	}
	return r
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) Close() error {
	r.m.Lock()
	defer r.m.Unlock()
	r.closed = true
	return nil
}

type errReader struct{}

func (errReader) ReadMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("broker gone")
}

func (errReader) Close() error { return errors.New("already closed") }

func TestPoller_ClearsCart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slots := storage.NewMemorySlots()
	reg := session.NewRegistry(slots, nil, 0)
	defer reg.Close()

	reg.Get(ctx, "s1").AddItem(ctx, domain.Product{ID: "1", Price: 3})
	reg.Get(ctx, "s2").AddItem(ctx, domain.Product{ID: "1", Price: 3})

	reader := newChanReader(
		`not json`,
		`{"checkout_id":"chk-0"}`,
		`{"checkout_id":"chk-1","session_id":"s1"}`,
	)
	p := newPoller(reg, reader, nil)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(reg.Get(ctx, "s1").Items()) == 0
	}, time.Second, 10*time.Millisecond, "cart was not cleared")
	assert.Len(t, reg.Get(ctx, "s2").Items(), 1)

	data, err := slots.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	cancel()
	<-done
	p.Close()
	assert.True(t, reader.closed)
}

func TestPoller_LogsBadMessages(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reader := newChanReader(`{`, `{"checkout_id":"chk-0"}`)
	reg := session.NewRegistry(storage.NewMemorySlots(), nil, 0)
	defer reg.Close()

	p := newPoller(reg, reader, zap.New(core))
	p.getMessageAndClearCart(context.Background())
	p.getMessageAndClearCart(context.Background())

	assert.Equal(t, 1, logs.FilterMessage("error parsing message").Len())
	assert.Equal(t, 1, logs.FilterMessage("missing session_id").Len())
	assert.Equal(t, 0, reg.Len())
}

func TestPoller_ReadErrorAndClose(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := newPoller(nil, errReader{}, zap.New(core))

	p.getMessageAndClearCart(context.Background())
	p.Close()

	assert.Equal(t, 1, logs.FilterMessage("error reading message").Len())
	assert.Equal(t, 1, logs.FilterMessage("error closing reader").Len())
}
