package readcache

import (
	"context"
	"sync"
)

// Tokens hands out per-key request tokens. Only the most recently issued
// token for a key is current; completions holding an older one are dropped.
type Tokens[K comparable] struct {
	mu     sync.Mutex
	next   uint64
	latest map[K]uint64
}

// NewTokens creates an empty token set.
func NewTokens[K comparable]() *Tokens[K] {
	return &Tokens[K]{latest: make(map[K]uint64)}
}

// Begin issues a new token for key, superseding earlier ones.
func (t *Tokens[K]) Begin(key K) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.latest[key] = t.next
	return t.next
}

// IsLatest reports whether tok is the current token for key.
func (t *Tokens[K]) IsLatest(key K, tok uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[key] == tok
}

// Navigator runs at most one date navigation at a time. Starting a new one
// cancels the previous.
type Navigator struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Start cancels any in-flight navigation and returns the context and
// sequence number for the new one.
func (n *Navigator) Start(parent context.Context) (context.Context, uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	n.seq++
	n.cancel = cancel
	return ctx, n.seq
}

// Current reports whether seq is still the latest navigation.
func (n *Navigator) Current(seq uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seq == seq
}

// Finish releases the context for seq if it is still current.
func (n *Navigator) Finish(seq uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seq == seq && n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

// Stop cancels the in-flight navigation, if any.
func (n *Navigator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	n.seq++
}
