// Package attachment maps chat.db attachment metadata to display categories.
package attachment

import (
	"strings"

	"github.com/matheus3301/imv/internal/types"
)

var documentPrefixes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"application/rtf",
	"application/vnd.apple.pages",
	"application/vnd.apple.numbers",
	"application/vnd.apple.keynote",
	"application/x-iwork",
	"text/plain",
	"text/csv",
	"text/rtf",
}

// Older rows often have a UTI but no MIME type.
var utiTypes = map[string]types.AttachmentType{
	"public.image":               types.AttachmentImage,
	"public.jpeg":                types.AttachmentImage,
	"public.png":                 types.AttachmentImage,
	"public.heic":                types.AttachmentImage,
	"com.compuserve.gif":         types.AttachmentImage,
	"public.movie":               types.AttachmentVideo,
	"public.mpeg-4":              types.AttachmentVideo,
	"com.apple.quicktime-movie":  types.AttachmentVideo,
	"public.audio":               types.AttachmentAudio,
	"public.mp3":                 types.AttachmentAudio,
	"public.mpeg-4-audio":        types.AttachmentAudio,
	"com.apple.coreaudio-format": types.AttachmentAudio,
	"com.adobe.pdf":              types.AttachmentDocument,
	"public.plain-text":          types.AttachmentDocument,
}

// Classify returns the category for an attachment. Flags win over MIME type:
// a sticker is a sticker even when it is a PNG, and a voice memo is a voice
// memo even when it is plain audio.
func Classify(mimeType, uti string, isSticker, isAudioMessage bool) types.AttachmentType {
	if isSticker {
		return types.AttachmentSticker
	}
	if isAudioMessage {
		return types.AttachmentVoiceMemo
	}

	mt := normalizeMIME(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return types.AttachmentImage
	case strings.HasPrefix(mt, "video/"):
		return types.AttachmentVideo
	case strings.HasPrefix(mt, "audio/"):
		return types.AttachmentAudio
	}
	for _, p := range documentPrefixes {
		if strings.HasPrefix(mt, p) {
			return types.AttachmentDocument
		}
	}

	if mt == "" {
		if t, ok := utiTypes[strings.ToLower(strings.TrimSpace(uti))]; ok {
			return t
		}
	}
	return types.AttachmentOther
}

func normalizeMIME(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
