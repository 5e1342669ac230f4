package conv

import (
	"regexp"
	"strings"

	"github.com/inbucket/html2text"
)

var htmlTag = regexp.MustCompile(`(?i)</?(p|div|br|span|b|i|em|strong|ul|ol|li|h[1-6]|blockquote|pre|code|a|table|tr|td|html|body)\b[^>]*>`)

// LooksLikeHTML reports whether s carries markup that should not be shown raw.
func LooksLikeHTML(s string) bool {
	return htmlTag.MatchString(s)
}

// NormalizeText turns model output into plain text. HTML is sanitized and
// flattened; everything else only has its whitespace trimmed.
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if !LooksLikeHTML(s) {
		return s
	}

	safe := webPolicy.Sanitize(s)
	text, err := html2text.FromString(safe, html2text.Options{
		OmitLinks:    true,
		PrettyTables: false,
	})
	if err != nil {
		return strings.TrimSpace(tgPolicy.Sanitize(s))
	}
	return strings.TrimSpace(text)
}
