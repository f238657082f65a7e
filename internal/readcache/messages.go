// Package readcache holds client-side caches of daemon responses so that
// switching between conversations does not refetch what was just on screen.
package readcache

import (
	"sync"
	"time"

	"github.com/matheus3301/imv/internal/types"
)

// Defaults for the message cache.
const (
	DefaultMessageEntries = 10
	DefaultMessageTTL     = 5 * time.Minute
)

// MessageEntry is the cached newest window of one conversation.
type MessageEntry struct {
	Messages   []types.Message
	HasMore    bool
	OldestDate int64
	WrittenAt  time.Time
}

type messageSlot struct {
	entry MessageEntry
	seq   uint64
	stale bool
}

// MessageCache keeps message windows for a bounded number of conversations.
// When full, the entry written longest ago is evicted. Entries older than the
// TTL are still returned, flagged as not fresh.
type MessageCache struct {
	mu       sync.Mutex
	slots    map[int64]*messageSlot
	seq      uint64
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewMessageCache creates a cache. Non-positive arguments select defaults.
func NewMessageCache(capacity int, ttl time.Duration) *MessageCache {
	if capacity <= 0 {
		capacity = DefaultMessageEntries
	}
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	return &MessageCache{
		slots:    make(map[int64]*messageSlot),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the entry for chatID, whether it is still fresh, and whether
// it exists at all.
func (c *MessageCache) Get(chatID int64) (entry MessageEntry, fresh, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[chatID]
	if !ok {
		return MessageEntry{}, false, false
	}
	fresh = !s.stale && c.now().Sub(s.entry.WrittenAt) < c.ttl
	return s.entry, fresh, true
}

// Put stores entry for chatID, stamping WrittenAt and OldestDate.
func (c *MessageCache) Put(chatID int64, entry MessageEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.slots[chatID]; !exists && len(c.slots) >= c.capacity {
		c.evictOldestLocked()
	}
	entry.WrittenAt = c.now()
	if len(entry.Messages) > 0 {
		entry.OldestDate = entry.Messages[0].Date
	}
	c.seq++
	c.slots[chatID] = &messageSlot{entry: entry, seq: c.seq}
}

func (c *MessageCache) evictOldestLocked() {
	var (
		victim int64
		oldest uint64
		found  bool
	)
	for id, s := range c.slots {
		if !found || s.seq < oldest {
			victim, oldest, found = id, s.seq, true
		}
	}
	if found {
		delete(c.slots, victim)
	}
}

// Invalidate marks chatID stale so the next Get reports it as not fresh.
func (c *MessageCache) Invalidate(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[chatID]; ok {
		s.stale = true
	}
}

// InvalidateAll marks every entry stale.
func (c *MessageCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		s.stale = true
	}
}

// Remove drops chatID.
func (c *MessageCache) Remove(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, chatID)
}

// Len returns the number of cached conversations.
func (c *MessageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Reset empties the cache.
func (c *MessageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[int64]*messageSlot)
	c.seq = 0
}
