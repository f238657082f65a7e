// Package types holds the view records returned by the store and carried
// over the wire to clients. Timestamps are Unix milliseconds.
package types

// GroupStyle is the chat.style value used for group conversations.
const GroupStyle = 43

// Handle is a remote participant address (phone number or email).
type Handle struct {
	ID         int64  `json:"id"`
	Identifier string `json:"identifier"`
	Service    string `json:"service"`
}

// Conversation is a chat thread with its participants and last activity.
type Conversation struct {
	ID              int64    `json:"id"`
	GUID            string   `json:"guid"`
	ChatIdentifier  string   `json:"chatIdentifier"`
	DisplayName     *string  `json:"displayName"`
	Style           int      `json:"style"`
	IsGroup         bool     `json:"isGroup"`
	Service         string   `json:"service"`
	LastMessageDate int64    `json:"lastMessageDate"`
	LastMessageText *string  `json:"lastMessageText"`
	Participants    []Handle `json:"participants"`
}

// Title returns the best label for the conversation.
func (c *Conversation) Title() string {
	if c.DisplayName != nil && *c.DisplayName != "" {
		return *c.DisplayName
	}
	if len(c.Participants) == 1 {
		return c.Participants[0].Identifier
	}
	if c.ChatIdentifier != "" {
		return c.ChatIdentifier
	}
	return c.GUID
}

// ConversationSummary is the short form used by autocomplete filters.
type ConversationSummary struct {
	ID             int64   `json:"id"`
	GUID           string  `json:"guid"`
	ChatIdentifier string  `json:"chatIdentifier"`
	DisplayName    *string `json:"displayName"`
	IsGroup        bool    `json:"isGroup"`
}

// Message is a displayable message with its active reactions and attachments.
type Message struct {
	ID          int64        `json:"id"`
	GUID        string       `json:"guid"`
	Text        *string      `json:"text"`
	Sender      *Handle      `json:"sender"`
	Date        int64        `json:"date"`
	IsFromMe    bool         `json:"isFromMe"`
	Service     string       `json:"service"`
	Reactions   []Reaction   `json:"reactions"`
	Attachments []Attachment `json:"attachments"`
}

// Reaction is a tapback that is still in effect on a message.
type Reaction struct {
	ID       int64  `json:"id"`
	GUID     string `json:"guid"`
	Type     int    `json:"type"`
	Emoji    string `json:"emoji"`
	IsFromMe bool   `json:"isFromMe"`
	Date     int64  `json:"date"`
	Reactor  string `json:"reactor"`
}

// AttachmentType is the display category of an attachment.
type AttachmentType string

const (
	AttachmentImage     AttachmentType = "image"
	AttachmentVideo     AttachmentType = "video"
	AttachmentAudio     AttachmentType = "audio"
	AttachmentVoiceMemo AttachmentType = "voice-memo"
	AttachmentSticker   AttachmentType = "sticker"
	AttachmentDocument  AttachmentType = "document"
	AttachmentOther     AttachmentType = "other"
)

// IsMedia reports whether the type belongs in a media gallery.
func (t AttachmentType) IsMedia() bool {
	return t == AttachmentImage || t == AttachmentVideo
}

// Attachment is a file linked to a message.
type Attachment struct {
	ID             int64          `json:"id"`
	GUID           string         `json:"guid"`
	MessageID      int64          `json:"messageId"`
	Filename       *string        `json:"filename"`
	MimeType       *string        `json:"mimeType"`
	UTI            *string        `json:"uti"`
	TransferName   *string        `json:"transferName"`
	TotalBytes     int64          `json:"totalBytes"`
	IsSticker      bool           `json:"isSticker"`
	IsAudioMessage bool           `json:"isAudioMessage"`
	LocalPath      *string        `json:"localPath"`
	Type           AttachmentType `json:"type"`
}

// Name returns the user-facing file name.
func (a *Attachment) Name() string {
	if a.TransferName != nil && *a.TransferName != "" {
		return *a.TransferName
	}
	if a.Filename != nil {
		return *a.Filename
	}
	return a.GUID
}

// MediaItem is an image or video attachment with its message context.
type MediaItem struct {
	Attachment  Attachment `json:"attachment"`
	MessageGUID string     `json:"messageGuid"`
	Date        int64      `json:"date"`
	IsFromMe    bool       `json:"isFromMe"`
}

// DateIndexSource selects what a date index counts.
type DateIndexSource string

const (
	SourceMessages DateIndexSource = "messages"
	SourceMedia    DateIndexSource = "media"
)

// Valid reports whether s is a known source.
func (s DateIndexSource) Valid() bool {
	return s == SourceMessages || s == SourceMedia
}

// DateIndexEntry is one month bucket of a conversation's history.
type DateIndexEntry struct {
	MonthKey  string `json:"monthKey"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	FirstDate int64  `json:"firstDate"`
	Count     int    `json:"count"`
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *p or "" for nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
