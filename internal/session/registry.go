package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	hydrateTimeout    = 5 * time.Second
	slotDeleteTimeout = 2 * time.Second
)

type entry struct {
	store    *store.Store
	lastUsed atomic.Int64
	watchers atomic.Int32
}

func (e *entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

// Registry hands out one cart store per storefront session. Stores idle for
// longer than the configured TTL are dropped from memory; their carts remain in
// the slot storage and are hydrated again on the next request.
type Registry struct {
	slots   storage.Slots
	log     *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
	sfg      singleflight.Group // one hydrate per session

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewRegistry(slots storage.Slots, log *zap.Logger, idleTTL time.Duration) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		slots:       slots,
		log:         log,
		idleTTL:     idleTTL,
		now:         time.Now,
		sessions:    make(map[string]*entry),
		stopCleanup: make(chan struct{}),
	}

	if idleTTL > 0 {
		r.wg.Add(1)
		go r.cleanupLoop(max(idleTTL/4, time.Second))
	}

	return r
}

// Get returns the live store for sessionID, hydrating it from slot storage on
// first use.
func (r *Registry) Get(ctx context.Context, sessionID string) *store.Store {
	return r.entry(ctx, sessionID).store
}

func (r *Registry) entry(ctx context.Context, sessionID string) *entry {
	r.mu.RLock()
	e, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		e.touch(r.now())
		return e
	}

	v, _, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.sessions[sessionID]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		// the slot read must not be cut short by the first caller's request
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
		defer cancel()

		created := &entry{store: store.Open(hctx, r.slots, sessionID, r.log)}
		created.touch(r.now())

		r.mu.Lock()
		r.sessions[sessionID] = created
		r.mu.Unlock()

		r.log.Debug("cart session hydrated", zap.String("session_id", sessionID))
		return created, nil
	})

	e = v.(*entry)
	e.touch(r.now())
	return e
}

// Watch subscribes fn to the session's cart and keeps the store resident until
// the returned func is called.
func (r *Registry) Watch(ctx context.Context, sessionID string, fn func(domain.Snapshot)) (*store.Store, func()) {
	e := r.entry(ctx, sessionID)
	e.watchers.Add(1)
	unsubscribe := e.store.Subscribe(fn)

	var once sync.Once
	return e.store, func() {
		once.Do(func() {
			unsubscribe()
			e.watchers.Add(-1)
			e.touch(r.now())
		})
	}
}

// Clear empties the session's cart, hydrating it first when it is not resident.
func (r *Registry) Clear(ctx context.Context, sessionID string) {
	r.Get(ctx, sessionID).Clear(ctx)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) cleanupLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

// evictIdle drops idle stores. An idle cart that is empty also loses its slot,
// since a missing slot hydrates to the same empty cart. The slot is deleted
// under the registry lock so a concurrent Get cannot re-hydrate and write
// before the delete lands.
func (r *Registry) evictIdle() {
	cutoff := r.now().Add(-r.idleTTL).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		if e.watchers.Load() > 0 {
			continue
		}
		if e.lastUsed.Load() >= cutoff {
			continue
		}
		delete(r.sessions, id)
		r.log.Debug("cart session evicted", zap.String("session_id", id))

		if len(e.store.Items()) == 0 {
			r.dropSlot(id)
		}
	}
}

func (r *Registry) dropSlot(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), slotDeleteTimeout)
	defer cancel()
	if err := r.slots.Delete(ctx, sessionID); err != nil {
		r.log.Warn("failed to delete empty cart slot", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Close stops the eviction loop and waits for it to exit.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stopCleanup)
	})
	r.wg.Wait()
}
