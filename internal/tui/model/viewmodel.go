package model

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/imv/internal/config"
	"github.com/matheus3301/imv/internal/readcache"
	"github.com/matheus3301/imv/internal/rpc"
	"github.com/matheus3301/imv/internal/timeline"
	"github.com/matheus3301/imv/internal/types"
)

// Daemon is the subset of rpc.Client the view model needs.
type Daemon interface {
	GetStatus(ctx context.Context) (*rpc.GetStatusResponse, error)
	ListConversations(ctx context.Context, req *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error)
	ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error)
	ListMessagesAroundDate(ctx context.Context, req *rpc.ListMessagesAroundDateRequest) (*rpc.ListMessagesAroundDateResponse, error)
	GetDateIndex(ctx context.Context, req *rpc.GetDateIndexRequest) (*rpc.GetDateIndexResponse, error)
	ListMedia(ctx context.Context, req *rpc.ListMediaRequest) (*rpc.ListMediaResponse, error)
}

// ConversationPageSize is how many conversations the list loads.
const ConversationPageSize = 500

// Thread is the message window shown for the active conversation.
type Thread struct {
	ChatID   int64
	Messages []types.Message
	HasMore  bool
	// Target is the index of the message a date jump landed on, or -1.
	Target int
}

// ViewModel caches daemon responses and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	daemon Daemon
	logger *zap.Logger

	status        *rpc.GetStatusResponse
	conversations []types.Conversation
	total         int
	thread        Thread
	ticks         []timeline.Tick
	media         []types.MediaItem
	mediaHasMore  bool

	messages *readcache.MessageCache
	loader   *readcache.MessageLoader
	dates    *readcache.DateIndexCache
	nav      readcache.Navigator

	refreshCh chan struct{}
}

// NewViewModel creates a view model backed by d, sized by the cache config.
func NewViewModel(d Daemon, cc config.Cache, logger *zap.Logger) (*ViewModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dates, err := readcache.NewDateIndexCache(cc.DateIndexEntries)
	if err != nil {
		return nil, err
	}
	vm := &ViewModel{
		daemon:    d,
		logger:    logger,
		messages:  readcache.NewMessageCache(cc.MessageEntries, cc.MessageTTL.Duration),
		dates:     dates,
		thread:    Thread{Target: -1},
		refreshCh: make(chan struct{}, 1),
	}
	vm.loader = readcache.NewMessageLoader(vm.messages, vm.fetchMessages, 0, logger)
	return vm, nil
}

func (vm *ViewModel) fetchMessages(ctx context.Context, chatID int64, limit int, before *int64) (readcache.Page, error) {
	resp, err := vm.daemon.ListMessages(ctx, &rpc.ListMessagesRequest{ChatID: chatID, Limit: limit, BeforeDate: before})
	if err != nil {
		return readcache.Page{}, err
	}
	return readcache.Page{Messages: resp.Messages, HasMore: resp.HasMore}, nil
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.daemon.ListConversations(ctx, &rpc.ListConversationsRequest{Limit: ConversationPageSize})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.total = resp.Total
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// OpenConversation makes chatID the active thread. A stale cached window is
// shown at once and replaced when the background refresh lands.
func (vm *ViewModel) OpenConversation(ctx context.Context, chatID int64) error {
	vm.nav.Stop()
	vm.mu.Lock()
	vm.thread = Thread{ChatID: chatID, Target: -1}
	vm.ticks = nil
	vm.media = nil
	vm.mu.Unlock()

	entry, err := vm.loader.Load(ctx, chatID, func(e readcache.MessageEntry) {
		vm.setWindow(chatID, e)
	})
	if err != nil {
		return err
	}
	vm.setWindow(chatID, entry)
	return nil
}

func (vm *ViewModel) setWindow(chatID int64, e readcache.MessageEntry) {
	vm.mu.Lock()
	// A date jump owns the window until the conversation is reopened.
	if vm.thread.ChatID != chatID || vm.thread.Target >= 0 {
		vm.mu.Unlock()
		return
	}
	vm.thread = Thread{ChatID: chatID, Messages: e.Messages, HasMore: e.HasMore, Target: -1}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// LoadOlder prepends the previous page to the active thread. It reports
// whether anything was added.
func (vm *ViewModel) LoadOlder(ctx context.Context) (bool, error) {
	vm.mu.RLock()
	chatID, before := vm.thread.ChatID, len(vm.thread.Messages)
	jumped := vm.thread.Target >= 0
	vm.mu.RUnlock()
	if chatID == 0 {
		return false, nil
	}
	if jumped {
		// A date jump replaced the cached window; page from what is shown.
		return vm.loadOlderFromThread(ctx, chatID)
	}
	entry, err := vm.loader.LoadOlder(ctx, chatID)
	if err != nil {
		return false, err
	}
	vm.setWindow(chatID, entry)
	return len(entry.Messages) > before, nil
}

func (vm *ViewModel) loadOlderFromThread(ctx context.Context, chatID int64) (bool, error) {
	vm.mu.RLock()
	t := vm.thread
	vm.mu.RUnlock()
	if !t.HasMore || len(t.Messages) == 0 {
		return false, nil
	}
	oldest := t.Messages[0].Date
	page, err := vm.fetchMessages(ctx, chatID, 0, &oldest)
	if err != nil {
		return false, err
	}
	vm.mu.Lock()
	if vm.thread.ChatID != chatID {
		vm.mu.Unlock()
		return false, nil
	}
	merged := append(append([]types.Message{}, page.Messages...), vm.thread.Messages...)
	target := vm.thread.Target
	if target >= 0 {
		target += len(page.Messages)
	}
	vm.thread = Thread{ChatID: chatID, Messages: merged, HasMore: page.HasMore, Target: target}
	vm.mu.Unlock()
	vm.signalRefresh()
	return len(page.Messages) > 0, nil
}

// JumpToDate replaces the active thread with the messages around target.
// A newer jump cancels this one; the superseded call returns
// readcache.ErrSuperseded.
func (vm *ViewModel) JumpToDate(ctx context.Context, target int64) error {
	vm.mu.RLock()
	chatID := vm.thread.ChatID
	vm.mu.RUnlock()
	if chatID == 0 {
		return nil
	}

	navCtx, seq := vm.nav.Start(ctx)
	defer vm.nav.Finish(seq)

	resp, err := vm.daemon.ListMessagesAroundDate(navCtx, &rpc.ListMessagesAroundDateRequest{ChatID: chatID, TargetDate: target})
	if !vm.nav.Current(seq) {
		return readcache.ErrSuperseded
	}
	if err != nil {
		return err
	}

	vm.mu.Lock()
	if vm.thread.ChatID != chatID {
		vm.mu.Unlock()
		return readcache.ErrSuperseded
	}
	// The window ends wherever the context ran out; older history may exist
	// before it.
	vm.thread = Thread{ChatID: chatID, Messages: resp.Messages, HasMore: len(resp.Messages) > 0, Target: resp.TargetIndex}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadTimeline returns the month ticks of the active conversation, from the
// date index cache when present.
func (vm *ViewModel) LoadTimeline(ctx context.Context, source types.DateIndexSource) ([]timeline.Tick, error) {
	vm.mu.RLock()
	chatID := vm.thread.ChatID
	vm.mu.RUnlock()
	if chatID == 0 {
		return nil, nil
	}

	key := readcache.DateIndexKey{Source: source, ChatID: chatID}
	entries, ok := vm.dates.Get(key)
	if !ok {
		resp, err := vm.daemon.GetDateIndex(ctx, &rpc.GetDateIndexRequest{ChatID: chatID, Source: source})
		if err != nil {
			return nil, err
		}
		entries = resp.Entries
		vm.dates.Put(key, entries)
	}

	ticks := timeline.Build(entries)
	vm.mu.Lock()
	if vm.thread.ChatID == chatID {
		vm.ticks = ticks
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return ticks, nil
}

// LoadMedia fetches the next page of media for the active conversation.
// With more false it starts from the newest item.
func (vm *ViewModel) LoadMedia(ctx context.Context, more bool) error {
	vm.mu.RLock()
	chatID := vm.thread.ChatID
	var before *int64
	if more && len(vm.media) > 0 {
		d := vm.media[0].Date
		before = &d
	}
	vm.mu.RUnlock()
	if chatID == 0 {
		return nil
	}

	resp, err := vm.daemon.ListMedia(ctx, &rpc.ListMediaRequest{ChatID: chatID, BeforeDate: before})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.thread.ChatID == chatID {
		if before != nil {
			vm.media = append(append([]types.MediaItem{}, resp.Items...), vm.media...)
		} else {
			vm.media = resp.Items
		}
		vm.mediaHasMore = resp.HasMore
	}
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// HandleChange reacts to a daemon change event. Store changes invalidate the
// read caches and refresh the conversation list and open thread in the
// background.
func (vm *ViewModel) HandleChange(ctx context.Context, evt *rpc.ChangeEvent) {
	switch evt.Kind {
	case rpc.KindStoreChanged:
		vm.messages.InvalidateAll()
		vm.dates.Reset()
		reqID := uuid.NewString()
		vm.logger.Debug("store changed, refreshing",
			zap.String("event_id", evt.ID), zap.String("request_id", reqID))
		if err := vm.LoadConversations(ctx); err != nil {
			vm.logger.Warn("refresh conversations failed", zap.String("request_id", reqID), zap.Error(err))
		}
		vm.mu.RLock()
		chatID, jumped := vm.thread.ChatID, vm.thread.Target >= 0
		vm.mu.RUnlock()
		if chatID != 0 && !jumped {
			if _, err := vm.loader.Load(ctx, chatID, func(e readcache.MessageEntry) { vm.setWindow(chatID, e) }); err != nil {
				vm.logger.Warn("refresh thread failed", zap.String("request_id", reqID), zap.Error(err))
			}
		}
		_ = vm.LoadStatus(ctx)
	case rpc.KindStoreUnavailable, rpc.KindStatusChanged:
		_ = vm.LoadStatus(ctx)
	}
}

// Close cancels any date jump in flight and waits for background refreshes.
func (vm *ViewModel) Close() {
	vm.nav.Stop()
	vm.loader.Wait()
}

// Status returns the last fetched daemon status.
func (vm *ViewModel) Status() *rpc.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Conversations returns the conversation list and the total count.
func (vm *ViewModel) Conversations() ([]types.Conversation, int) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations, vm.total
}

// Conversation returns the listed conversation with id.
func (vm *ViewModel) Conversation(id int64) (types.Conversation, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return types.Conversation{}, false
}

// Thread returns the active message window.
func (vm *ViewModel) Thread() Thread {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

// Ticks returns the timeline of the active conversation.
func (vm *ViewModel) Ticks() []timeline.Tick {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.ticks
}

// Media returns the loaded media items, oldest first.
func (vm *ViewModel) Media() ([]types.MediaItem, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.media, vm.mediaHasMore
}
