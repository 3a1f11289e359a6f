// Package cache provides an LRU cache for prepared SQL statements.
package cache

import (
	"container/list"
	"database/sql"
	"sync"
)

// DefaultCapacity is the default maximum number of cached prepared statements.
const DefaultCapacity = 512

// StmtCache stores prepared statements keyed by their SQL text, evicting the
// least recently used entry once capacity is reached. Evicted statements are
// closed.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List
}

type entry struct {
	key  string
	stmt *sql.Stmt
}

// New creates a statement cache with the default capacity.
func New() *StmtCache {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a statement cache with the given capacity.
func NewWithCapacity(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get returns the cached statement for sql, marking it most recently used.
func (c *StmtCache) Get(sql string) (*sql.Stmt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[sql]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*entry).stmt, true
}

// Set stores a prepared statement, evicting the least recently used entry if
// the cache is full. If sql is already cached the existing statement is kept
// and the new one closed.
func (c *StmtCache) Set(sqlText string, stmt *sql.Stmt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[sqlText]; ok {
		_ = stmt.Close()
		return
	}

	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			ev := oldest.Value.(*entry)
			c.lru.Remove(oldest)
			delete(c.items, ev.key)
			_ = ev.stmt.Close()
		}
	}

	c.items[sqlText] = c.lru.PushFront(&entry{key: sqlText, stmt: stmt})
}

// Len returns the number of cached statements.
func (c *StmtCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear closes and removes all cached statements.
func (c *StmtCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, el := range c.items {
		_ = el.Value.(*entry).stmt.Close()
	}
	c.items = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
}
