package cfg

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies a declaration within a compilation. Both components must
// be comparable, typically pointers owned by the host.
type Key struct {
	Compilation any
	Declaration any
}

type cacheEntry struct {
	graph *Graph
	err   error
}

// Cache memoizes graphs per (compilation, declaration). Concurrent requests
// for the same key share a single construction. Entries live until their
// compilation is invalidated.
type Cache struct {
	mu          sync.Mutex
	group       singleflight.Group
	entries     map[any]map[any]cacheEntry
	generations map[any]uint64
	ids         map[Key]uint64
	nextID      uint64
}

func NewCache() *Cache {
	return &Cache{
		entries:     make(map[any]map[any]cacheEntry),
		generations: make(map[any]uint64),
		ids:         make(map[Key]uint64),
	}
}

// Get returns the cached graph for key, calling build at most once per key
// and compilation generation. Construction failures are cached as well.
func (c *Cache) Get(key Key, build func() (*Graph, error)) (*Graph, error) {
	c.mu.Lock()
	if entry, ok := c.entries[key.Compilation][key.Declaration]; ok {
		c.mu.Unlock()
		return entry.graph, entry.err
	}
	gen := c.generations[key.Compilation]
	id, ok := c.ids[key]
	if !ok {
		c.nextID++
		id = c.nextID
		c.ids[key] = id
	}
	c.mu.Unlock()

	flight := strconv.FormatUint(id, 10) + "@" + strconv.FormatUint(gen, 10)
	res, _, _ := c.group.Do(flight, func() (interface{}, error) {
		c.mu.Lock()
		if entry, ok := c.entries[key.Compilation][key.Declaration]; ok {
			c.mu.Unlock()
			return entry, nil
		}
		c.mu.Unlock()

		var entry cacheEntry
		func() {
			defer func() {
				if r := recover(); r != nil {
					entry = cacheEntry{err: unavailablef("%v: construction panicked: %v", key.Declaration, r)}
				}
			}()
			entry.graph, entry.err = build()
		}()
		if entry.err == nil && entry.graph == nil {
			entry.err = unavailablef("%v: no graph", key.Declaration)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generations[key.Compilation] == gen {
			decls, ok := c.entries[key.Compilation]
			if !ok {
				decls = make(map[any]cacheEntry)
				c.entries[key.Compilation] = decls
			}
			decls[key.Declaration] = entry
		}
		return entry, nil
	})

	entry := res.(cacheEntry)
	return entry.graph, entry.err
}

// Invalidate drops every entry of a compilation. Constructions in flight
// for that compilation are not cached.
func (c *Cache) Invalidate(compilation any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, compilation)
	c.generations[compilation]++
	for key := range c.ids {
		if key.Compilation == compilation {
			delete(c.ids, key)
		}
	}
}

// Len counts the cached entries.
func (c *Cache) Len() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, decls := range c.entries {
		n += len(decls)
	}
	return
}
