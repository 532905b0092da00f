package intent

import (
	"container/list"
	"context"
	"strings"
	"sync"
)

// Cache is an LRU of extracted phrases keyed by request text.
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key     string
	phrases []string
}

// NewCache creates a cache holding at most capacity requests.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached phrases for text if present.
func (c *Cache) Get(text string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).phrases, true
	}
	return nil, false
}

// Set stores phrases for text, evicting the least recently used entry at capacity.
func (c *Cache) Set(text string, phrases []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[text]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).phrases = phrases
		return
	}
	c.entries[text] = c.lru.PushFront(&cacheEntry{key: text, phrases: phrases})
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Cached wraps next so repeated requests skip extraction. Errors are not cached.
func Cached(next Extractor, cache *Cache) Extractor {
	return Func(func(ctx context.Context, text string) ([]string, error) {
		key := strings.ToLower(strings.TrimSpace(text))
		if phrases, ok := cache.Get(key); ok {
			return append([]string(nil), phrases...), nil
		}
		phrases, err := next.ExtractIntent(ctx, text)
		if err != nil {
			return nil, err
		}
		cache.Set(key, append([]string(nil), phrases...))
		return phrases, nil
	})
}
