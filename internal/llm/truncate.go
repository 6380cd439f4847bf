package llm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateForEmbedding bounds text to the provider's input-token budget.
// It cuts at a sentence boundary when one falls inside the budget, then at a
// word boundary, and never mid-word. Returns text unchanged when it already
// fits.
func TruncateForEmbedding(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if EstimateTokens(text) <= maxTokens {
		return text
	}

	// Budget in bytes under the 4-chars-per-token heuristic.
	cut := maxTokens * 4
	if cut > len(text) {
		cut = len(text)
	}

	// Back off to a rune boundary so we never split a multi-byte character.
	for cut < len(text) && cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	head := text[:cut]

	// Prefer the last sentence terminator inside the budget, but only when it
	// keeps a reasonable share of the text — a terminator in the first few
	// characters is not a useful boundary.
	if idx := lastSentenceEnd(head); idx > len(head)/2 {
		return strings.TrimRightFunc(head[:idx], unicode.IsSpace)
	}

	// Fall back to the last whitespace so the cut is never mid-word.
	if idx := strings.LastIndexFunc(head, unicode.IsSpace); idx > 0 {
		return strings.TrimRightFunc(head[:idx], unicode.IsSpace)
	}

	return head
}

// EstimateTokens estimates the number of tokens in the given text using the
// ~4 characters per token heuristic, which is a reasonable approximation for
// GPT-style tokenizers on English text.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// lastSentenceEnd returns the index just past the last sentence terminator
// ('.', '!', '?', or a newline acting as a paragraph break) in s, or -1.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return -1
}
