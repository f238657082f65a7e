package store

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var nsStringMarker = []byte("NSString")

// decodeAttributedBody pulls the plain text out of a typedstream
// attributedBody blob. The text follows the first NSString class marker,
// five bytes of type info and a length prefix (one byte, or 0x81 followed by
// a little-endian uint16).
func decodeAttributedBody(data []byte) string {
	idx := bytes.Index(data, nsStringMarker)
	if idx < 0 {
		return ""
	}
	start := idx + len(nsStringMarker) + 5
	if start >= len(data) {
		return ""
	}

	var length, textStart int
	if data[start] == 0x81 {
		if start+3 > len(data) {
			return ""
		}
		length = int(data[start+1]) | int(data[start+2])<<8
		textStart = start + 3
	} else {
		length = int(data[start])
		textStart = start + 1
	}
	if textStart+length > len(data) {
		return ""
	}
	text := data[textStart : textStart+length]
	if !utf8.Valid(text) {
		return ""
	}
	return strings.TrimSpace(string(text))
}
