package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache evicts the least recently used entry beyond maxSize and treats
// entries older than ttl as missing.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
}

type entry[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

var (
	_ Cache[int] = (*LRUCache[int])(nil)
	_ Cleaner    = (*LRUCache[int])(nil)
)

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if c.now().After(e.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return e.data, true
}

func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, data: data, expiresAt: c.now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(e)
	for c.lru.Len() > c.maxSize {
		c.removeElement(c.lru.Back())
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, elem := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(elem)
			removed++
		}
	}
	return removed
}

func (c *LRUCache[T]) removeElement(elem *list.Element) {
	e := elem.Value.(*entry[T])
	delete(c.items, e.key)
	c.lru.Remove(elem)
}

func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
