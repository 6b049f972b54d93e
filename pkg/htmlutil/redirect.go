package htmlutil

import (
	"net/url"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
)

// RedirectURL returns the target of a meta refresh or JavaScript redirect,
// resolved against base. It returns "" if the page does not redirect.
func RedirectURL(doc *nethtml.Node, body, base string) string {
	target := metaRefresh(doc)
	if target == "" {
		target = jsRedirect(body)
	}
	if target == "" {
		return ""
	}
	return Resolve(base, target)
}

// metaRefresh handles <meta http-equiv="refresh" content="0; url=...">.
func metaRefresh(doc *nethtml.Node) string {
	n := Find(doc, func(n *nethtml.Node) bool {
		if n.Type != nethtml.ElementNode || n.Data != "meta" {
			return false
		}
		v, _ := Attr(n, "http-equiv")
		return strings.EqualFold(v, "refresh")
	})
	content, _ := Attr(n, "content")
	if m := refreshPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanRedirectURL(m[1])
	}
	return ""
}

var refreshPattern = regexp.MustCompile(`(?i)^\s*\d+\s*;\s*url\s*=\s*["']?([^"'\s]+)`)

var jsRedirectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)(?:^|[^\w.])location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)document\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)(?:window\.)?location\.(?:replace|assign)\s*\(\s*["']([^"']+)["']\s*\)`),
}

func jsRedirect(body string) string {
	for _, p := range jsRedirectPatterns {
		if m := p.FindStringSubmatch(body); len(m) > 1 {
			u := cleanRedirectURL(m[1])
			if u != "" && !strings.HasPrefix(u, "#") && u != "." && u != "./" {
				return u
			}
		}
	}
	return ""
}

func cleanRedirectURL(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, `"'>`)
}

// Resolve makes ref absolute against base. Unparseable input yields ref.
func Resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
