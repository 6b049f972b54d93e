package htmlutil

import (
	"html"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
)

// StripTags removes HTML tags and returns plain text.
func StripTags(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}
	content := tagPattern.ReplaceAllString(htmlContent, " ")
	content = html.UnescapeString(content)
	content = multiSpacePattern.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// Title returns the document <title>, falling back to og:title.
func Title(doc *nethtml.Node) string {
	if t := Text(Find(doc, Tag("title"))); t != "" {
		return t
	}
	return Meta(doc, "og:title")
}

// Description returns the meta description, falling back to og:description.
func Description(doc *nethtml.Node) string {
	if d := Meta(doc, "description"); d != "" {
		return d
	}
	return Meta(doc, "og:description")
}

// H1 returns the text of the first <h1>.
func H1(doc *nethtml.Node) string {
	return Text(Find(doc, Tag("h1")))
}

// Meta returns the content of the first <meta> whose name or property is key.
func Meta(doc *nethtml.Node, key string) string {
	n := Find(doc, func(n *nethtml.Node) bool {
		if n.Type != nethtml.ElementNode || n.Data != "meta" {
			return false
		}
		name, _ := Attr(n, "name")
		prop, _ := Attr(n, "property")
		return strings.EqualFold(name, key) || strings.EqualFold(prop, key)
	})
	v, _ := Attr(n, "content")
	return strings.TrimSpace(v)
}

// IsBlocked detects captcha and bot-check interstitials that come back with
// a 200 status.
func IsBlocked(text string) bool {
	lower := strings.ToLower(text)
	patterns := []string{
		"unusual traffic from your computer",
		"please verify you are a human",
		"are you a robot",
		"captcha",
		"access denied",
		"enable javascript and cookies to continue",
		"hcaptcha",
		"px-captcha",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
