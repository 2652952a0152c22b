// Package snippet cuts bounded excerpts from conversation content.
package snippet

import "unicode/utf8"

const (
	DefaultLength = 200
	Ellipsis      = "..."
)

// Excerpt returns content unchanged when it has at most maxRunes code points,
// otherwise its first maxRunes code points followed by Ellipsis. A maxRunes
// of zero or less uses DefaultLength.
func Excerpt(content string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultLength
	}
	if utf8.RuneCountInString(content) <= maxRunes {
		return content
	}
	n := 0
	for i := range content {
		if n == maxRunes {
			return content[:i] + Ellipsis
		}
		n++
	}
	return content
}
