package privacy

import (
	"regexp"
	"strings"
)

var privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

// StripPrivateTags removes every <private>...</private> block and trims the
// remainder. Memory rows never store the tagged text.
func StripPrivateTags(content string) string {
	return strings.TrimSpace(privateTagRegex.ReplaceAllString(content, ""))
}

// HasOnlyPrivateContent reports whether nothing but whitespace is left once
// private blocks are removed.
func HasOnlyPrivateContent(content string) bool {
	return StripPrivateTags(content) == ""
}
