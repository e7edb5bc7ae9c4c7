// Package catalog provides a concurrency-safe keyed collection that remembers
// insertion order. Registry bindings keep their devices and listener
// bookkeeping in it.
package catalog

import "sync"

// Entry is a key and its value.
type Entry[T any] struct {
	Key   string
	Value T
}

// Catalog stores values by key.
type Catalog[T any] interface {
	// Set stores value under key. An existing key keeps its position.
	Set(key string, value T)

	// Add stores value only if key is absent and reports whether it did.
	Add(key string, value T) bool

	// Get retrieves a value by key.
	Get(key string) (T, bool)

	// Find returns the first value, in insertion order, accepted by match.
	Find(match func(T) bool) (T, bool)

	// List returns all entries in insertion order.
	List() []Entry[T]

	// Delete removes key and returns the value it held.
	Delete(key string) (T, bool)

	// Clear removes all entries.
	Clear()

	Has(key string) bool
	Keys() []string
	Len() int
}

// InMemory is the map-backed Catalog.
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

var _ Catalog[int] = (*InMemory[int])(nil)

// New creates an empty in-memory catalog.
func New[T any]() *InMemory[T] {
	return &InMemory[T]{
		items: make(map[string]T),
	}
}

// Set stores a value with the given key.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = value
}

// Add stores a value unless the key is taken.
func (c *InMemory[T]) Add(key string, value T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; ok {
		return false
	}
	c.order = append(c.order, key)
	c.items[key] = value
	return true
}

// Get retrieves a value by key.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.items[key]
	return value, ok
}

// Find returns the first matching value in insertion order.
func (c *InMemory[T]) Find(match func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range c.order {
		if v := c.items[key]; match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// List returns all entries in insertion order.
func (c *InMemory[T]) List() []Entry[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry[T], 0, len(c.order))
	for _, key := range c.order {
		entries = append(entries, Entry[T]{Key: key, Value: c.items[key]})
	}
	return entries
}

// Delete removes an entry by key.
func (c *InMemory[T]) Delete(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if !ok {
		return value, false
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return value, true
}

// Clear removes all entries.
func (c *InMemory[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T)
	c.order = nil
}

// Has checks if a key exists.
func (c *InMemory[T]) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[key]
	return ok
}

// Keys returns all keys in insertion order.
func (c *InMemory[T]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Len returns the number of entries.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
