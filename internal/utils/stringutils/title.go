package stringutils

import (
	"regexp"
	"strings"
	"unicode"
)

// Pre-compiled regex patterns for better performance
var (
	urlPattern          = regexp.MustCompile(`(?i)(https?://|ftp://|www\.)[^\s]+`)
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]+\)`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
	multiSpacePattern   = regexp.MustCompile(`\s+`)
)

// SanitizeTitleContent removes URLs, markup, and special characters so feed item
// titles can be used as record names.
func SanitizeTitleContent(content string) string {
	content = htmlTagPattern.ReplaceAllString(content, " ")
	content = markdownLinkPattern.ReplaceAllString(content, "$1")
	content = urlPattern.ReplaceAllString(content, "")

	// Keep unicode letters/numbers plus the punctuation that commonly appears in
	// model names ([pro], v1.5, FLUX.1, Qwen-72B).
	var result strings.Builder
	for _, r := range content {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) ||
			r == '.' || r == ',' || r == '!' || r == '?' || r == '-' || r == '\'' ||
			r == '[' || r == ']' || r == '(' || r == ')' || r == '_' || r == '/' || r == '+' {
			result.WriteRune(r)
		}
	}
	content = result.String()

	content = multiSpacePattern.ReplaceAllString(content, " ")
	content = strings.TrimSpace(content)
	content = strings.TrimRight(content, " .,!?-'")

	return content
}

// TruncateTitle truncates a title to a maximum length, breaking at word boundaries
func TruncateTitle(title string, maxLen int) string {
	if len(title) <= maxLen {
		return title
	}

	ellipsis := "..."
	contentLimit := maxLen - len(ellipsis)
	if contentLimit < 0 {
		contentLimit = 0
	}

	truncated := title[:contentLimit]
	minLen := contentLimit / 2

	// Prefer to cut on a word boundary when possible
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > minLen {
		truncated = strings.TrimRight(truncated[:lastSpace], " ")
	}

	return truncated + ellipsis
}

// GenerateTitle creates a clean, truncated title from content
func GenerateTitle(content string, maxLen int) string {
	sanitized := SanitizeTitleContent(content)
	if sanitized == "" {
		return ""
	}
	return TruncateTitle(sanitized, maxLen)
}
