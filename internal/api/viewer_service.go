// Package api implements the imv.v1.Viewer service over the message store,
// the thumbnail cache and the event bus.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/imv/internal/bus"
	"github.com/matheus3301/imv/internal/rpc"
	"github.com/matheus3301/imv/internal/status"
	"github.com/matheus3301/imv/internal/store"
	"github.com/matheus3301/imv/internal/thumbcache"
	"github.com/matheus3301/imv/internal/types"
)

// Store is the subset of *store.DB the service reads from.
type Store interface {
	Path() string
	ListConversations(ctx context.Context, limit, offset int) (*store.ConversationPage, error)
	GetConversation(ctx context.Context, id int64) (*types.Conversation, error)
	ListMessages(ctx context.Context, chatID int64, limit int, beforeDate *int64) (*store.MessagePage, error)
	ListMessagesAroundDate(ctx context.Context, chatID, targetDate int64, contextCount int) (*store.AroundPage, error)
	ListHandles(ctx context.Context, query string, limit int) ([]types.Handle, error)
	ListConversationsForFilter(ctx context.Context, query string, limit int) ([]types.ConversationSummary, error)
	GetDateIndex(ctx context.Context, chatID int64, source types.DateIndexSource) ([]types.DateIndexEntry, error)
	ListMedia(ctx context.Context, chatID int64, limit int, beforeDate *int64) (*store.MediaPage, error)
	Stats(ctx context.Context) (*store.Stats, error)
}

// ViewerService implements rpc.ViewerServer.
type ViewerService struct {
	profile   string
	startedAt time.Time
	db        Store
	thumbs    *thumbcache.Cache
	bus       *bus.Bus
	machine   *status.Machine
	logger    *zap.Logger
}

var _ rpc.ViewerServer = (*ViewerService)(nil)

// NewViewerService creates the service. thumbs, b and machine may be nil in tests.
func NewViewerService(profile string, db Store, thumbs *thumbcache.Cache, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *ViewerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewerService{
		profile:   profile,
		startedAt: time.Now(),
		db:        db,
		thumbs:    thumbs,
		bus:       b,
		machine:   machine,
		logger:    logger,
	}
}

func invalid(format string, args ...any) error {
	return rpc.ToStatus(fmt.Errorf("%w: "+format, append([]any{rpc.ErrInvalidArgument}, args...)...))
}

func (s *ViewerService) ListConversations(ctx context.Context, req *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error) {
	if req.Offset < 0 {
		return nil, invalid("offset %d", req.Offset)
	}
	page, err := s.db.ListConversations(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListConversationsResponse{Conversations: page.Conversations, Total: page.Total}, nil
}

func (s *ViewerService) GetConversation(ctx context.Context, req *rpc.GetConversationRequest) (*rpc.GetConversationResponse, error) {
	c, err := s.db.GetConversation(ctx, req.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.GetConversationResponse{Conversation: c}, nil
}

func (s *ViewerService) ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	page, err := s.db.ListMessages(ctx, req.ChatID, req.Limit, req.BeforeDate)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListMessagesResponse{Messages: page.Messages, HasMore: page.HasMore}, nil
}

func (s *ViewerService) ListMessagesAroundDate(ctx context.Context, req *rpc.ListMessagesAroundDateRequest) (*rpc.ListMessagesAroundDateResponse, error) {
	page, err := s.db.ListMessagesAroundDate(ctx, req.ChatID, req.TargetDate, req.ContextCount)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListMessagesAroundDateResponse{Messages: page.Messages, TargetIndex: page.TargetIndex}, nil
}

func (s *ViewerService) ListHandles(ctx context.Context, req *rpc.ListHandlesRequest) (*rpc.ListHandlesResponse, error) {
	handles, err := s.db.ListHandles(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListHandlesResponse{Handles: handles}, nil
}

func (s *ViewerService) ListFilterConversations(ctx context.Context, req *rpc.ListFilterConversationsRequest) (*rpc.ListFilterConversationsResponse, error) {
	convs, err := s.db.ListConversationsForFilter(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListFilterConversationsResponse{Conversations: convs}, nil
}

func thumbnailKey(key, sourcePath string, size int) (string, error) {
	switch {
	case key != "":
		return key, nil
	case sourcePath != "" && size > 0:
		return thumbcache.Key(sourcePath, size), nil
	default:
		return "", fmt.Errorf("%w: thumbnail needs a key or a source path and size", rpc.ErrInvalidArgument)
	}
}

func (s *ViewerService) GetThumbnail(ctx context.Context, req *rpc.GetThumbnailRequest) (*rpc.GetThumbnailResponse, error) {
	key, err := thumbnailKey(req.Key, req.SourcePath, req.Size)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	if s.thumbs == nil {
		return &rpc.GetThumbnailResponse{Key: key}, nil
	}
	data, ok := s.thumbs.Get(ctx, key)
	return &rpc.GetThumbnailResponse{Key: key, Hit: ok, Data: data}, nil
}

func (s *ViewerService) PutThumbnail(ctx context.Context, req *rpc.PutThumbnailRequest) (*rpc.PutThumbnailResponse, error) {
	key, err := thumbnailKey(req.Key, req.SourcePath, req.Size)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	if len(req.Data) == 0 {
		return nil, invalid("empty thumbnail for %q", key)
	}
	if s.thumbs == nil {
		return nil, rpc.ToStatus(fmt.Errorf("thumbnail cache not configured"))
	}
	if err := s.thumbs.Put(ctx, key, req.Data); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.PutThumbnailResponse{Key: key}, nil
}

func (s *ViewerService) GetDateIndex(ctx context.Context, req *rpc.GetDateIndexRequest) (*rpc.GetDateIndexResponse, error) {
	if !req.Source.Valid() {
		return nil, invalid("unknown date index source %q", req.Source)
	}
	entries, err := s.db.GetDateIndex(ctx, req.ChatID, req.Source)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.GetDateIndexResponse{Entries: entries}, nil
}

func (s *ViewerService) ListMedia(ctx context.Context, req *rpc.ListMediaRequest) (*rpc.ListMediaResponse, error) {
	page, err := s.db.ListMedia(ctx, req.ChatID, req.Limit, req.BeforeDate)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return &rpc.ListMediaResponse{Items: page.Items, HasMore: page.HasMore}, nil
}

func (s *ViewerService) GetStatus(ctx context.Context, _ *rpc.GetStatusRequest) (*rpc.GetStatusResponse, error) {
	resp := &rpc.GetStatusResponse{
		Profile:  s.profile,
		State:    string(status.Ready),
		ChatDB:   s.db.Path(),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.machine != nil {
		snap := s.machine.Snapshot()
		resp.State = string(snap.State)
		resp.StateSinceMs = snap.Since.UnixMilli()
		resp.Reason = snap.Reason
	}
	if s.thumbs != nil {
		resp.ThumbnailEntries = s.thumbs.Len()
	}

	stats, err := s.db.Stats(ctx)
	if err != nil {
		s.logger.Debug("status without counts", zap.Error(err))
		return resp, nil
	}
	resp.Conversations = stats.Conversations
	resp.Messages = stats.Messages
	resp.Handles = stats.Handles
	resp.Attachments = stats.Attachments
	return resp, nil
}

func (s *ViewerService) WatchChanges(req *rpc.WatchChangesRequest, stream rpc.WatchChangesServer) error {
	if s.bus == nil {
		return rpc.ToStatus(fmt.Errorf("event bus not configured"))
	}
	ch, unsub := s.bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if err := stream.Send(&rpc.ChangeEvent{
				ID:               uuid.New().String(),
				Kind:             evt.Kind,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Detail:           detail(evt.Payload),
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func detail(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case status.StatusChange:
		if p.Reason != "" {
			return string(p.To) + ": " + p.Reason
		}
		return string(p.To)
	case string:
		return p
	case fmt.Stringer:
		return p.String()
	default:
		return fmt.Sprint(p)
	}
}
