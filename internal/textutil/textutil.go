// Package textutil normalizes text at the system boundaries: submitted
// content may carry HTML markup that must not count toward token math,
// and model output tends to arrive with stray newlines or wrapping
// quotes.
package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var tagRe = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)

// StripMarkup returns the visible text of s when it contains HTML
// markup, and s unchanged otherwise. Plain text with a stray '<'
// (e.g. "a < b") is left alone. Script, style and similar non-content
// subtrees are dropped.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") || !tagRe.MatchString(s) {
		return s
	}
	node, err := html.Parse(strings.NewReader(s))
	if err != nil || node == nil {
		return s
	}
	var b strings.Builder
	collectText(&b, node)
	out := CollapseWhitespace(b.String())
	if out == "" {
		return s
	}
	return out
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "head", "iframe":
			return
		case "br", "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString(" ")
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

// CollapseWhitespace trims s and squeezes internal whitespace runs,
// newlines included, into single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanCompletion normalizes one generated version: whitespace runs
// collapse to single spaces and a fully quote-wrapped answer loses its
// wrapping quotes. Models habitually return `"text"` when asked for
// prose.
func CleanCompletion(s string) string {
	out := CollapseWhitespace(s)
	for len(out) >= 2 {
		first, last := out[0], out[len(out)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			inner := strings.TrimSpace(out[1 : len(out)-1])
			// Only unwrap when the quotes enclose the whole text,
			// not when they close mid-string.
			if strings.Contains(inner, string(first)) {
				break
			}
			out = inner
			continue
		}
		break
	}
	return out
}
