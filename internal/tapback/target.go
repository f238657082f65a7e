package tapback

import (
	"strconv"
	"strings"
)

// ParseTarget splits an associated_message_guid into its part index and the
// GUID of the message it points at. Accepted forms are "p:<n>/<guid>",
// "bp:<guid>" and a bare GUID.
func ParseTarget(raw string) (part int, guid string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ""
	}
	if prefix, rest, ok := strings.Cut(raw, "/"); ok {
		if n, err := strconv.Atoi(strings.TrimPrefix(prefix, "p:")); err == nil {
			part = n
		}
		return part, rest
	}
	if strings.HasPrefix(raw, "bp:") {
		return 0, raw[len("bp:"):]
	}
	return 0, raw
}

// FormatTarget is the inverse of ParseTarget for the "p:<n>/<guid>" form.
func FormatTarget(part int, guid string) string {
	return "p:" + strconv.Itoa(part) + "/" + guid
}
