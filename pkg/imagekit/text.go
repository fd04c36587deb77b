package imagekit

import (
	"strings"
	"unicode/utf8"
)

const trailingCutset = ".,!?;: "

// PrepareText strips trailing punctuation, then the decorative final
// symbol (usually an emoji) captions end with, and trims what remains.
// Joiners left dangling by a multi-codepoint emoji are dropped too.
func PrepareText(text string) string {
	text = strings.TrimRight(text, trailingCutset)
	if text == "" {
		return ""
	}
	_, size := utf8.DecodeLastRuneInString(text)
	text = strings.TrimRight(text[:len(text)-size], emojiJoiners)
	return strings.TrimSpace(text)
}

// emojiJoiners are invisible code points that only make sense inside an
// emoji sequence: zero-width joiner and the variation selectors.
const emojiJoiners = "\u200d\ufe0e\ufe0f"

// WrapText greedily packs whole words into lines no wider than maxWidth as
// reported by measure. A word wider than maxWidth gets a line of its own.
func WrapText(text string, maxWidth int, measure func(string) int) []string {
	var (
		lines   []string
		current []string
	)
	for _, word := range strings.Fields(text) {
		candidate := strings.Join(append(current, word), " ")
		if measure(candidate) <= maxWidth {
			current = append(current, word)
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
		} else {
			lines = append(lines, word)
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}
