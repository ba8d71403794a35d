package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// textOf collects the trimmed, non-empty text nodes under sel and joins them
// with sep. Script and style bodies are skipped.
func textOf(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, n := range sel.Nodes {
		parts = appendText(parts, n)
	}
	return strings.Join(parts, sep)
}

func appendText(parts []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			parts = append(parts, t)
		}
		return parts
	case html.CommentNode:
		return parts
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return parts
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendText(parts, c)
	}
	return parts
}

// optionalText returns the compact text of the first match, or nil when the
// selector matches nothing.
func optionalText(sel *goquery.Selection, selector, sep string) *string {
	match := sel.Find(selector).First()
	if match.Length() == 0 {
		return nil
	}
	text := textOf(match, sep)
	return &text
}

// optionalAttr returns the trimmed attribute of the first match, or nil.
func optionalAttr(sel *goquery.Selection, selector, attr string) *string {
	v, ok := sel.Find(selector).First().Attr(attr)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

func texts(sel *goquery.Selection, sep string) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := textOf(s, sep); t != "" {
			out = append(out, t)
		}
	})
	return out
}
