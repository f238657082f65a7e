package store

import "github.com/matheus3301/imv/internal/types"

// Default page sizes.
const (
	DefaultConversationLimit = 50
	DefaultMessageLimit      = 50
	DefaultContextCount      = 50
	DefaultAutocompleteLimit = 200
	DefaultMediaLimit        = 60
)

// ConversationPage is one page of conversations plus the total count.
type ConversationPage struct {
	Conversations []types.Conversation `json:"conversations"`
	Total         int                  `json:"total"`
}

// MessagePage is a chronological page of messages. HasMore reports whether
// older messages exist.
type MessagePage struct {
	Messages []types.Message `json:"messages"`
	HasMore  bool            `json:"hasMore"`
}

// AroundPage is a chronological window around a target date.
// TargetIndex is -1 when Messages is empty.
type AroundPage struct {
	Messages    []types.Message `json:"messages"`
	TargetIndex int             `json:"targetIndex"`
}

// MediaPage is a chronological page of image and video attachments.
type MediaPage struct {
	Items   []types.MediaItem `json:"items"`
	HasMore bool              `json:"hasMore"`
}
