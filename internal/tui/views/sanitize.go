package views

import (
	"strings"
	"unicode/utf8"
)

// sanitizeForTerminal removes code points that tcell renders badly or that
// let a remote sender rearrange what is displayed:
// - skin tone modifiers, ZWJ and variation selectors that build multi-code
//   point emoji with unpredictable cell widths
// - bidirectional overrides and isolates
// - C0/C1 control characters other than newline and tab
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
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069:
		return true
	case r == '\n' || r == '\t':
		return false
	case r < 0x20, r >= 0x7F && r < 0xA0:
		return true
	default:
		return false
	}
}

// oneLine prepares untrusted text for a single table cell.
func oneLine(s string) string {
	s = sanitizeForTerminal(s)
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimRight(s, "\n")
	return strings.ReplaceAll(s, "\n", " ↵ ")
}

// safe escapes untrusted text for a tview cell.
func safe(s string) string {
	return escape(oneLine(s))
}
