package views

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// sanitizeForTerminal removes codepoints that tcell/tview render badly or
// that carry no text in chat.db bodies:
//
//   - skin tone modifiers (U+1F3FB..U+1F3FF) and Zero Width Joiners (U+200D),
//     which split emoji sequences into multiple cells
//   - variation selectors (U+FE00..U+FE0F, U+E0100..U+E01EF)
//   - the object replacement character (U+FFFC) Messages puts where an
//     attachment sits in the text
//   - control characters other than newline and tab
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// singleLine sanitizes s and folds whitespace runs, newlines included, into
// single spaces.
func singleLine(s string) string {
	return strings.Join(strings.Fields(sanitizeForTerminal(s)), " ")
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	case r == 0xFFFC, r == utf8.RuneError:
		return true
	case r == '\n' || r == '\t':
		return false
	default:
		return unicode.IsControl(r)
	}
}
