package engine

import (
	"regexp"
	"strings"
)

var leadingJSONFence = regexp.MustCompile("(?i)^```json\\s*")

// StripFences removes a leading ```json marker (with the whitespace after it)
// and every remaining ``` marker, then trims the result. Applying it twice
// gives the same result as applying it once.
func StripFences(text string) string {
	if text == "" {
		return ""
	}
	s := strings.TrimSpace(text)
	s = leadingJSONFence.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
