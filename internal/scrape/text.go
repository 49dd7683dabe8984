package scrape

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

const truncationMarker = "..."

// skippedElements never contribute visible text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// ExtractText parses an HTML document and returns the collapsed text of its
// body, ignoring scripts, styles and comments.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}

	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[strings.ToLower(n.Data)] {
				return
			}
		case html.TextNode:
			builder.WriteString(n.Data)
			builder.WriteString(" ")
		case html.CommentNode:
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return CollapseWhitespace(builder.String()), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// CollapseWhitespace trims s and replaces every whitespace run with a single
// space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at limit characters. A cut string ends with "..." and the
// marker counts toward the limit.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= len(truncationMarker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(truncationMarker)]) + truncationMarker
}
