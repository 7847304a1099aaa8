package utils

import (
	"sync"
)

// KeyedCache is an additive in-memory cache. Entries are never evicted;
// the only way to drop them is Clear, which the owner calls when its
// session ends.
type KeyedCache[K comparable, V any] struct {
	items map[K]V
	mu    sync.RWMutex
}

// NewKeyedCache creates an empty cache
func NewKeyedCache[K comparable, V any]() *KeyedCache[K, V] {
	return &KeyedCache[K, V]{
		items: make(map[K]V),
	}
}

// Set stores value under key, replacing any previous value
func (c *KeyedCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = value
}

// Get retrieves a value from cache
func (c *KeyedCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.items[key]
	return value, ok
}

// Has checks if a key exists in cache
func (c *KeyedCache[K, V]) Has(key K) bool {
	_, ok := c.Get(key)
	return ok
}

// Len returns the number of items in cache
func (c *KeyedCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Keys returns all keys in cache, in no particular order
func (c *KeyedCache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}

	return keys
}

// Clear removes all items from cache
func (c *KeyedCache[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]V)
	c.mu.Unlock()
}
