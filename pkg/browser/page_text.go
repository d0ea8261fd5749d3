package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PageText extracts the human-readable text of an HTML fragment such as a
// flash banner. Scripts, styles and other non-rendered elements are dropped,
// block elements become line breaks and runs of whitespace collapse to one
// space. The result is cut to at most maxLength bytes without splitting a
// character.
func PageText(rawHTML string, maxLength int) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(rawHTML), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var builder strings.Builder
	for _, n := range nodes {
		collectText(n, &builder)
	}

	lines := strings.Split(builder.String(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	text := strings.Join(kept, "\n")

	return truncate(text, maxLength), nil
}

// truncate cuts s to at most maxLength bytes on a rune boundary.
func truncate(s string, maxLength int) string {
	if maxLength <= 0 || len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// collectText walks n depth-first, writing text nodes and a newline around
// block-level elements.
func collectText(n *html.Node, builder *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		builder.WriteString(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if isSkippedElement(tag) {
			return
		}
		if tag == "br" {
			builder.WriteString("\n")
			return
		}
		if isBlockElement(tag) {
			builder.WriteString("\n")
			defer builder.WriteString("\n")
		} else if tag == "td" || tag == "th" {
			defer builder.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, builder)
	}
}

// isSkippedElement returns true for elements whose content is never rendered
func isSkippedElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "iframe", "svg", "head":
		return true
	}
	return false
}

// isBlockElement returns true for elements that start a new line of text
func isBlockElement(tagName string) bool {
	switch tagName {
	case "div", "p", "section", "article", "header", "footer", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "table", "tr", "form", "blockquote", "pre":
		return true
	}
	return false
}
