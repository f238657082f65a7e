package readcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matheus3301/imv/internal/types"
)

// DefaultDateIndexEntries is the number of date indexes kept.
const DefaultDateIndexEntries = 20

// DateIndexKey identifies one cached date index.
type DateIndexKey struct {
	Source types.DateIndexSource
	ChatID int64
}

// DateIndexCache is an LRU of date indexes. Entries never expire; callers
// Remove them when the conversation changes.
type DateIndexCache struct {
	lru *lru.Cache[DateIndexKey, []types.DateIndexEntry]
}

// NewDateIndexCache creates a cache holding capacity indexes.
func NewDateIndexCache(capacity int) (*DateIndexCache, error) {
	if capacity <= 0 {
		capacity = DefaultDateIndexEntries
	}
	l, err := lru.New[DateIndexKey, []types.DateIndexEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create date index cache: %w", err)
	}
	return &DateIndexCache{lru: l}, nil
}

func (c *DateIndexCache) Get(key DateIndexKey) ([]types.DateIndexEntry, bool) {
	return c.lru.Get(key)
}

func (c *DateIndexCache) Put(key DateIndexKey, entries []types.DateIndexEntry) {
	c.lru.Add(key, entries)
}

// RemoveChat drops every source cached for chatID.
func (c *DateIndexCache) RemoveChat(chatID int64) {
	for _, src := range []types.DateIndexSource{types.SourceMessages, types.SourceMedia} {
		c.lru.Remove(DateIndexKey{Source: src, ChatID: chatID})
	}
}

func (c *DateIndexCache) Len() int {
	return c.lru.Len()
}

func (c *DateIndexCache) Reset() {
	c.lru.Purge()
}
