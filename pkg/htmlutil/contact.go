package htmlutil

import (
	"net/url"
	"regexp"
	"strings"

	nethtml "golang.org/x/net/html"
)

// socialHosts maps hostnames to the network name used as a field key.
var socialHosts = map[string]string{
	"facebook.com":  "facebook",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"linkedin.com":  "linkedin",
	"instagram.com": "instagram",
	"youtube.com":   "youtube",
	"tiktok.com":    "tiktok",
}

// sharePaths are link paths that point at share dialogs, not an account.
var sharePaths = []string{"/sharer", "/share", "/intent/", "/dialog/", "/home?status"}

// SocialLinks returns the first link per social network found in anchors,
// keyed by network name.
func SocialLinks(doc *nethtml.Node) map[string]string {
	out := make(map[string]string)
	for _, a := range FindAll(doc, Tag("a")) {
		href, ok := Attr(a, "href")
		if !ok {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.Host == "" || strings.Trim(u.Path, "/") == "" {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		host = strings.TrimPrefix(host, "m.")
		network, ok := socialHosts[host]
		if !ok || out[network] != "" || isShareLink(u.Path) {
			continue
		}
		u.RawQuery = ""
		u.Fragment = ""
		out[network] = u.String()
	}
	return out
}

func isShareLink(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range sharePaths {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// AboutLink returns the absolute URL of the first same-site link whose text
// or href mentions "about".
func AboutLink(doc *nethtml.Node, base string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	for _, a := range FindAll(doc, Tag("a")) {
		href, ok := Attr(a, "href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		text := strings.ToLower(Text(a))
		if !strings.Contains(text, "about") && !strings.Contains(strings.ToLower(href), "about") {
			continue
		}
		abs := Resolve(base, href)
		u, err := url.Parse(abs)
		if err != nil || !strings.EqualFold(u.Host, b.Host) || abs == base {
			continue
		}
		return abs
	}
	return ""
}

// PhoneNumbers extracts US-style phone numbers, deduplicated by digits.
// Supports (555) 123-4567, 555-123-4567, +1 555.123.4567.
func PhoneNumbers(text string) []string {
	var phones []string
	seen := make(map[string]bool)
	for _, phone := range phonePattern.FindAllString(text, -1) {
		phone = strings.TrimPrefix(phone, "tel:")
		digits := digitsOnly(phone)
		if len(digits) < 10 || len(digits) > 11 || seen[digits] {
			continue
		}
		seen[digits] = true
		phones = append(phones, strings.TrimSpace(phone))
	}
	return phones
}

// phonePattern requires a separator so bare digit runs (ids, timestamps) are ignored.
var phonePattern = regexp.MustCompile(
	`(?:tel:)?(?:\+?1[-.\s]?)?\([0-9]{3}\)[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}` +
		`|(?:tel:)?(?:\+?1[-.\s]?)?[0-9]{3}[-.\s][0-9]{3}[-.\s]?[0-9]{4}`,
)

func digitsOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
