// Package store holds the cart of a single storefront session.
//
// A Store is hydrated from its storage slot once, mutated only through AddItem,
// RemoveItem, UpdateQuantity and Clear, and written through to the slot after
// every applied mutation. Slot failures never reach the caller: the in-memory
// cart stays authoritative and the failure is logged.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"go.uber.org/zap"
)

type subscriber struct {
	id int
	fn func(domain.Snapshot)
}

type Store struct {
	key   string
	slots storage.Slots
	log   *zap.Logger

	mu      sync.Mutex
	items   []domain.LineItem
	applied uint64 // mutations applied, guarded by mu

	// delivered counts mutations whose observers have run. A mutation waits
	// for its turn on notifyCond without holding mu.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub int
}

// Open hydrates the cart stored under key. A missing, unreadable or malformed
// slot yields an empty cart; Open never fails.
func Open(ctx context.Context, slots storage.Slots, key string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		key:   key,
		slots: slots,
		log:   log.With(zap.String("slot", key)),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	s.items = s.hydrate(ctx)
	return s
}

func (s *Store) Key() string {
	return s.key
}

func (s *Store) hydrate(ctx context.Context) []domain.LineItem {
	data, err := s.slots.Load(ctx, s.key)
	if errors.Is(err, storage.ErrSlotNotFound) {
		return nil
	}
	if err != nil {
		s.log.Warn("cart slot unreadable, starting empty", zap.Error(err))
		return nil
	}

	items, err := decodeItems(data)
	if err != nil {
		s.log.Warn("cart slot malformed, starting empty", zap.Error(err))
		return nil
	}
	return items
}

func decodeItems(data []byte) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	seen := make(map[domain.ProductID]struct{}, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("item %q has quantity %d", item.ID, item.Quantity)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("item %q appears twice", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return items, nil
}

// AddItem increments the quantity of an existing line or appends a new one with
// quantity 1. An existing line keeps the price it was first added with.
func (s *Store) AddItem(ctx context.Context, p domain.Product) {
	s.mutate(ctx, func() bool {
		if i := s.indexOf(p.ID); i >= 0 {
			s.items[i].Quantity = addQuantity(s.items[i].Quantity, 1)
			return true
		}
		s.items = append(s.items, domain.LineItem{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			Image:    p.Image,
			Price:    p.Price,
			Quantity: 1,
		})
		return true
	})
}

func (s *Store) RemoveItem(ctx context.Context, id domain.ProductID) {
	s.mutate(ctx, func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		return true
	})
}

// UpdateQuantity shifts the quantity by delta, never below 1 and never past
// math.MaxInt. Use RemoveItem to drop a line.
func (s *Store) UpdateQuantity(ctx context.Context, id domain.ProductID, delta int) {
	s.mutate(ctx, func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		s.items[i].Quantity = max(1, s.items[i].Quantity+delta)
		return true
	})
}

// Clear empties the cart and always writes an empty array to the slot.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func() bool {
		s.items = nil
		return true
	})
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

func (s *Store) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ComputeTotals(s.items)
}

func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to run after every applied mutation. Calls happen
// outside the cart lock, one mutation at a time and in mutation order, so fn
// may read the store. fn must not mutate it: the mutation would wait for its
// own delivery turn. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(domain.Snapshot)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) mutate(ctx context.Context, apply func() bool) {
	s.mu.Lock()
	if !apply() {
		s.mu.Unlock()
		return
	}
	s.persist(ctx)
	snap := s.snapshotLocked()
	seq := s.applied
	s.applied++
	s.mu.Unlock()

	s.notify(seq, snap)
}

// notify runs the observers for mutation seq once every earlier mutation has
// been delivered.
func (s *Store) notify(seq uint64, snap domain.Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for s.delivered != seq {
		s.notifyCond.Wait()
	}
	defer func() {
		s.delivered++
		s.notifyCond.Broadcast()
	}()

	for _, fn := range s.subscribers() {
		fn(domain.Snapshot{
			Items:  append([]domain.LineItem(nil), snap.Items...),
			Totals: snap.Totals,
		})
	}
}

func (s *Store) subscribers() []func(domain.Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	fns := make([]func(domain.Snapshot), len(s.subs))
	for i, sub := range s.subs {
		fns[i] = sub.fn
	}
	return fns
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) {
	payload, err := json.Marshal(s.copyItems())
	if err != nil {
		s.log.Warn("marshal cart failed", zap.Error(err))
		return
	}
	if err := s.slots.Save(ctx, s.key, payload); err != nil {
		s.log.Warn("cart slot write failed, keeping in-memory state", zap.Error(err))
	}
}

func (s *Store) indexOf(id domain.ProductID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyItems() []domain.LineItem {
	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		Items:  s.copyItems(),
		Totals: domain.ComputeTotals(s.items),
	}
}
