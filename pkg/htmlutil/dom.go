// Package htmlutil provides HTML parsing helpers for the page scrapers.
package htmlutil

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Parse parses an HTML document.
func Parse(body []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

// Matcher reports whether a node is wanted.
type Matcher func(*html.Node) bool

// FindAll returns every node under n (including n) that m accepts, in
// document order.
func FindAll(n *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if m(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Find returns the first node under n that m accepts, or nil.
func Find(n *html.Node, m Matcher) *html.Node {
	if n == nil {
		return nil
	}
	if m(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, m); found != nil {
			return found
		}
	}
	return nil
}

// Tag matches elements by tag name.
func Tag(name string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

// Class matches elements carrying a class. An empty tag matches any element.
func Class(tag, class string) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && (tag == "" || n.Data == tag) && HasClass(n, class)
	}
}

// AttrEquals matches elements whose attribute key has exactly val.
func AttrEquals(tag, key, val string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || (tag != "" && n.Data != tag) {
			return false
		}
		v, ok := Attr(n, key)
		return ok && v == val
	}
}

// HasClass reports whether n has class among its classes.
func HasClass(n *html.Node, class string) bool {
	v, ok := Attr(n, "class")
	return ok && slices.Contains(strings.Fields(v), class)
}

// Attr returns the value of an attribute.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// Text returns the text content of n with whitespace collapsed. Script and
// style contents are skipped.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// ClassPrefix matches elements with a class starting with prefix. Sites that
// generate hashed class names keep a stable prefix such as "review__".
func ClassPrefix(tag, prefix string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || (tag != "" && n.Data != tag) {
			return false
		}
		v, _ := Attr(n, "class")
		for _, c := range strings.Fields(v) {
			if strings.HasPrefix(c, prefix) {
				return true
			}
		}
		return false
	}
}
