// Package state holds the keyed collaborator stores (worlds, characters,
// journal entries and saved sessions) that feed ending generation.
package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Yates-Labs/narraitor/internal/engine"
	"github.com/Yates-Labs/narraitor/internal/kv"
	"github.com/rs/zerolog"
)

// collection is a keyed map snapshotted to the key-value adapter on every
// mutation. Persistence failures are logged by the adapter and never surface.
type collection[T any] struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	items     map[string]T
	idOf      func(T) string
	name      string

	kv  kv.Store
	key string
	log zerolog.Logger
}

func newCollection[T any](ctx context.Context, name string, idOf func(T) string, store kv.Store, log zerolog.Logger) *collection[T] {
	c := &collection[T]{
		items: make(map[string]T),
		idOf:  idOf,
		name:  name,
		kv:    store,
		key:   kv.KeyPrefix + name,
		log:   log.With().Str("component", name+"_store").Logger(),
	}
	var snap map[string]T
	if kv.LoadJSON(ctx, store, c.log, c.key, &snap) {
		for id, v := range snap {
			c.items[id] = v
		}
	}
	return c
}

func (c *collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

func (c *collection[T]) put(ctx context.Context, v T) {
	c.mu.Lock()
	c.items[c.idOf(v)] = v
	c.mu.Unlock()
	c.persist(ctx)
}

// replace overwrites an existing item and fails when it is missing.
func (c *collection[T]) replace(ctx context.Context, v T) error {
	id := c.idOf(v)
	c.mu.Lock()
	if _, ok := c.items[id]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%s %s not found: %w", c.name, id, engine.ErrNotFound)
	}
	c.items[id] = v
	c.mu.Unlock()
	c.persist(ctx)
	return nil
}

func (c *collection[T]) remove(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, ok := c.items[id]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%s %s not found: %w", c.name, id, engine.ErrNotFound)
	}
	delete(c.items, id)
	c.mu.Unlock()
	c.persist(ctx)
	return nil
}

// list returns the items accepted by keep, ordered by less.
func (c *collection[T]) list(keep func(T) bool, less func(a, b T) bool) []T {
	c.mu.RLock()
	out := make([]T, 0, len(c.items))
	for _, v := range c.items {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// persist holds persistMu across snapshot and write, so the last write is
// always the newest snapshot.
func (c *collection[T]) persist(ctx context.Context) {
	if c.kv == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.RLock()
	snap := make(map[string]T, len(c.items))
	for id, v := range c.items {
		snap[id] = v
	}
	c.mu.RUnlock()
	kv.SaveJSON(ctx, c.kv, c.log, c.key, snap)
}
