package utils

import (
	"strings"

	"github.com/k3a/html2text"
	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all markup
	StrictPolicy *bluemonday.Policy
	// UGCPolicy for rich email bodies
	UGCPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	UGCPolicy = bluemonday.UGCPolicy()

	// Allow additional safe elements for email content
	UGCPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	UGCPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	UGCPolicy.AllowElements("ul", "ol", "li")
	UGCPolicy.AllowElements("blockquote")
	UGCPolicy.AllowElements("a", "img")
	UGCPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	UGCPolicy.AllowAttrs("href").OnElements("a")
	UGCPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	UGCPolicy.AllowAttrs("class", "id").Globally()
	UGCPolicy.AllowAttrs("style").OnElements("span", "div", "p")

	UGCPolicy.RequireParseableURLs(true)
	UGCPolicy.AllowURLSchemes("http", "https", "mailto")
}

// SanitizeHTML sanitizes HTML content using the UGC policy
func SanitizeHTML(html string) string {
	return UGCPolicy.Sanitize(html)
}

// StripHTML removes all HTML tags from content
func StripHTML(html string) string {
	return StrictPolicy.Sanitize(html)
}

// HTMLToText renders an HTML body as plain text, keeping paragraph breaks
// but collapsing runs of more than two blank lines.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	lines := strings.Split(html2text.HTML2Text(html), "\n")
	result := make([]string, 0, len(lines))
	blankCount := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blankCount++
			if blankCount <= 2 {
				result = append(result, "")
			}
			continue
		}
		blankCount = 0
		result = append(result, line)
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}

// ReplySubject prefixes subject with "Re: " unless it already carries a
// reply prefix.
func ReplySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	lower := strings.ToLower(subject)
	for _, prefix := range []string{"re:", "aw:"} {
		if strings.HasPrefix(lower, prefix) {
			return subject
		}
	}
	if subject == "" {
		return "Re:"
	}
	return "Re: " + subject
}
