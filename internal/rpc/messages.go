package rpc

import (
	"github.com/matheus3301/imv/internal/bus"
	"github.com/matheus3301/imv/internal/types"
)

type ListConversationsRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ListConversationsResponse struct {
	Conversations []types.Conversation `json:"conversations"`
	Total         int                  `json:"total"`
}

type GetConversationRequest struct {
	ID int64 `json:"id"`
}

// GetConversationResponse carries a nil Conversation when the id is unknown.
type GetConversationResponse struct {
	Conversation *types.Conversation `json:"conversation"`
}

type ListMessagesRequest struct {
	ChatID     int64  `json:"chatId"`
	Limit      int    `json:"limit"`
	BeforeDate *int64 `json:"beforeDate,omitempty"`
}

type ListMessagesResponse struct {
	Messages []types.Message `json:"messages"`
	HasMore  bool            `json:"hasMore"`
}

type ListMessagesAroundDateRequest struct {
	ChatID       int64 `json:"chatId"`
	TargetDate   int64 `json:"targetDate"`
	ContextCount int   `json:"contextCount"`
}

type ListMessagesAroundDateResponse struct {
	Messages    []types.Message `json:"messages"`
	TargetIndex int             `json:"targetIndex"`
}

type ListHandlesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type ListHandlesResponse struct {
	Handles []types.Handle `json:"handles"`
}

type ListFilterConversationsRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type ListFilterConversationsResponse struct {
	Conversations []types.ConversationSummary `json:"conversations"`
}

// GetThumbnailRequest addresses a thumbnail either by Key or by the
// SourcePath and Size it was generated from.
type GetThumbnailRequest struct {
	Key        string `json:"key,omitempty"`
	SourcePath string `json:"sourcePath,omitempty"`
	Size       int    `json:"size,omitempty"`
}

type GetThumbnailResponse struct {
	Key  string `json:"key"`
	Hit  bool   `json:"hit"`
	Data []byte `json:"data,omitempty"`
}

type PutThumbnailRequest struct {
	Key        string `json:"key,omitempty"`
	SourcePath string `json:"sourcePath,omitempty"`
	Size       int    `json:"size,omitempty"`
	Data       []byte `json:"data"`
}

type PutThumbnailResponse struct {
	Key string `json:"key"`
}

type GetDateIndexRequest struct {
	ChatID int64                 `json:"chatId"`
	Source types.DateIndexSource `json:"source"`
}

type GetDateIndexResponse struct {
	Entries []types.DateIndexEntry `json:"entries"`
}

type ListMediaRequest struct {
	ChatID     int64  `json:"chatId"`
	Limit      int    `json:"limit"`
	BeforeDate *int64 `json:"beforeDate,omitempty"`
}

type ListMediaResponse struct {
	Items   []types.MediaItem `json:"items"`
	HasMore bool              `json:"hasMore"`
}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Profile          string `json:"profile"`
	State            string `json:"state"`
	StateSinceMs     int64  `json:"stateSinceMs"`
	Reason           string `json:"reason,omitempty"`
	ChatDB           string `json:"chatDb"`
	UptimeMs         int64  `json:"uptimeMs"`
	Conversations    int64  `json:"conversations"`
	Messages         int64  `json:"messages"`
	Handles          int64  `json:"handles"`
	Attachments      int64  `json:"attachments"`
	ThumbnailEntries int    `json:"thumbnailEntries"`
}

type WatchChangesRequest struct {
	// Prefix filters event kinds; empty receives everything.
	Prefix string `json:"prefix,omitempty"`
}

// Change event kinds.
const (
	KindStoreChanged     = bus.KindStoreChanged
	KindStoreUnavailable = bus.KindStoreUnavailable
	KindStatusChanged    = bus.KindStatusChanged
)

// ChangeEvent is streamed by WatchChanges.
type ChangeEvent struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	OccurredAtUnixMs int64  `json:"occurredAtUnixMs"`
	Detail           string `json:"detail,omitempty"`
}
