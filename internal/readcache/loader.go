package readcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/imv/internal/types"
)

// ErrSuperseded is returned when a newer load for the same conversation
// started before this one completed.
var ErrSuperseded = errors.New("load superseded by a newer request")

// Page is one fetched slice of a conversation, oldest message first.
type Page struct {
	Messages []types.Message
	HasMore  bool
}

// FetchFunc fetches up to limit messages of chatID older than before, or the
// newest page when before is nil.
type FetchFunc func(ctx context.Context, chatID int64, limit int, before *int64) (Page, error)

// MessageLoader serves conversation windows from a MessageCache and falls back
// to FetchFunc. Stale entries are returned immediately and refreshed in the
// background.
type MessageLoader struct {
	cache  *MessageCache
	tokens *Tokens[int64]
	fetch  FetchFunc
	limit  int
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewMessageLoader creates a loader. limit is the page size requested from fetch.
func NewMessageLoader(cache *MessageCache, fetch FetchFunc, limit int, logger *zap.Logger) *MessageLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 50
	}
	return &MessageLoader{
		cache:  cache,
		tokens: NewTokens[int64](),
		fetch:  fetch,
		limit:  limit,
		logger: logger,
	}
}

// Load returns the window for chatID. On a stale hit onRefresh is called from
// a background goroutine with the refreshed entry, unless another load for
// the same conversation has started in the meantime.
func (l *MessageLoader) Load(ctx context.Context, chatID int64, onRefresh func(MessageEntry)) (MessageEntry, error) {
	entry, fresh, ok := l.cache.Get(chatID)
	if ok && fresh {
		return entry, nil
	}
	tok := l.tokens.Begin(chatID)
	if ok {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			refreshed, err := l.fetchNewest(ctx, chatID, tok)
			if err != nil {
				if !errors.Is(err, ErrSuperseded) {
					l.logger.Debug("background refresh failed", zap.Int64("chat_id", chatID), zap.Error(err))
				}
				return
			}
			if onRefresh != nil {
				onRefresh(refreshed)
			}
		}()
		return entry, nil
	}
	return l.fetchNewest(ctx, chatID, tok)
}

func (l *MessageLoader) fetchNewest(ctx context.Context, chatID int64, tok uint64) (MessageEntry, error) {
	page, err := l.fetch(ctx, chatID, l.limit, nil)
	if err != nil {
		return MessageEntry{}, fmt.Errorf("fetch messages for chat %d: %w", chatID, err)
	}
	if !l.tokens.IsLatest(chatID, tok) {
		return MessageEntry{}, ErrSuperseded
	}
	l.cache.Put(chatID, MessageEntry{Messages: page.Messages, HasMore: page.HasMore})
	entry, _, _ := l.cache.Get(chatID)
	return entry, nil
}

// LoadOlder prepends the page preceding the cached window of chatID. With
// nothing cached it behaves like a foreground Load.
func (l *MessageLoader) LoadOlder(ctx context.Context, chatID int64) (MessageEntry, error) {
	entry, _, ok := l.cache.Get(chatID)
	tok := l.tokens.Begin(chatID)
	if !ok {
		return l.fetchNewest(ctx, chatID, tok)
	}
	if !entry.HasMore || len(entry.Messages) == 0 {
		return entry, nil
	}
	before := entry.OldestDate
	page, err := l.fetch(ctx, chatID, l.limit, &before)
	if err != nil {
		return MessageEntry{}, fmt.Errorf("fetch older messages for chat %d: %w", chatID, err)
	}
	if !l.tokens.IsLatest(chatID, tok) {
		return MessageEntry{}, ErrSuperseded
	}
	merged := make([]types.Message, 0, len(page.Messages)+len(entry.Messages))
	merged = append(merged, page.Messages...)
	merged = append(merged, entry.Messages...)
	l.cache.Put(chatID, MessageEntry{Messages: merged, HasMore: page.HasMore})
	updated, _, _ := l.cache.Get(chatID)
	return updated, nil
}

// Wait blocks until background refreshes have finished.
func (l *MessageLoader) Wait() {
	l.wg.Wait()
}
