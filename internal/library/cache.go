// Package library owns the per-source session cache and coordinates loads:
// instant switching between sources, coalesced reloads and background
// warm-up of the sources that are not on screen.
package library

import (
	"sync"
	"time"

	"cmdtrace/internal/index"
)

// Entry is one cached load.
type Entry struct {
	Sessions []index.Session
	LoadedAt time.Time
}

// Cache holds the most recent load per source kind. There is no eviction;
// the key space is the small fixed set of source kinds.
type Cache struct {
	mu      sync.RWMutex
	entries map[index.SourceKind]Entry
	now     func() time.Time
}

func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{entries: make(map[index.SourceKind]Entry), now: now}
}

func (c *Cache) Get(kind index.SourceKind) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[kind]
	return e, ok
}

// Put replaces the entry for kind wholesale.
func (c *Cache) Put(kind index.SourceKind, sessions []index.Session) Entry {
	return c.putAt(kind, sessions, c.now())
}

func (c *Cache) putAt(kind index.SourceKind, sessions []index.Session, at time.Time) Entry {
	e := Entry{Sessions: sessions, LoadedAt: at}
	c.mu.Lock()
	c.entries[kind] = e
	c.mu.Unlock()
	return e
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
