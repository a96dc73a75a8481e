// internal/app/system/htmlsanitize/htmlsanitize.go
//
// Package htmlsanitize strips unsafe markup from user-supplied text before
// it is stored. Endorsement descriptions and organization contact info
// accept limited rich text; free-text audit tags are plain text only. The
// database never holds markup that could script a client.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// ugc allows basic formatting (emphasis, lists, links, tables) per
	// bluemonday's user-generated-content policy.
	ugc = bluemonday.UGCPolicy()

	// strict removes all markup.
	strict = bluemonday.StrictPolicy()
)

// Sanitize keeps basic formatting and strips scripts, event handlers,
// frames, and unsafe URL protocols.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(ugc.Sanitize(s))
}

// StripTags removes all markup and returns the remaining text content
// with HTML entities decoded back to plain characters.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no markup at all.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}
