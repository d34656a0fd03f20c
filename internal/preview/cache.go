// Package preview extracts single frames from a source and keeps the most
// recently used ones on disk.
package preview

import (
	"os"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/rs/zerolog/log"
)

const DefaultCapacity = 20

// Cache maps a timestamp in seconds to an extracted frame file. Evicting an
// entry deletes its file.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{lru: lru.New(capacity)}
	c.lru.OnEvicted = func(key lru.Key, value any) {
		path := value.(string)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Debug().Str("op", "preview/cache").Err(err).Msgf("could not remove evicted frame %s", path)
		}
	}
	return c
}

// Get returns the frame for ts and marks it most recently used.
func (c *Cache) Get(ts int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(ts)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *Cache) Put(ts int, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.lru.Get(ts); ok {
		if old.(string) == path {
			return
		}
		// Add would overwrite without evicting the old file
		c.lru.Remove(ts)
	}
	c.lru.Add(ts, path)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear drops every entry and deletes the frame files.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Clear()
}
