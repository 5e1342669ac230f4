package memory

import (
	"strings"
	"unicode"
)

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true, '…': true,
}

// SplitSentences splits text into sentences, paragraph by paragraph.
func SplitSentences(text string) []string {
	var sentences []string

	for _, para := range splitParagraphs(text) {
		var current strings.Builder
		runes := []rune(para)

		for i, r := range runes {
			current.WriteRune(r)
			if !sentenceEnders[r] {
				continue
			}
			// an ender only closes a sentence before whitespace, the end, or CJK
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) || isCJK(runes[i+1]) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}

		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}

	return sentences
}

// FirstSentence returns the opening sentence of text, or "" for blank text.
func FirstSentence(text string) string {
	s := SplitSentences(text)
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Questions returns the question sentences of text in order of appearance.
func Questions(text string) []string {
	var out []string
	for _, s := range SplitSentences(text) {
		s = strings.TrimLeft(s, "-*#> ")
		if strings.HasSuffix(s, "?") || strings.HasSuffix(s, "？") {
			out = append(out, s)
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\n", " "))
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
