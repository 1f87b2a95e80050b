package geoip

import (
	"container/list"
	"sync"
)

// lru is a bounded, mutex-guarded map that forgets the least recently used
// key once it grows past its limit.
type lru[K comparable, V any] struct {
	mu    sync.Mutex
	limit int
	order *list.List // front is most recent; elements hold *slot[K, V]
	index map[K]*list.Element
}

type slot[K comparable, V any] struct {
	key K
	val V
}

func newLRU[K comparable, V any](limit int) *lru[K, V] {
	limit = max(limit, 1)
	return &lru[K, V]{
		limit: limit,
		order: list.New(),
		index: make(map[K]*list.Element, limit),
	}
}

func (c *lru[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*slot[K, V]).val, true
}

func (c *lru[K, V]) put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		el.Value.(*slot[K, V]).val = val
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(&slot[K, V]{key: key, val: val})
	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*slot[K, V]).key)
	}
}

func (c *lru[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
