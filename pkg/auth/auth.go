// Package auth provides API credentials and browser cookies for the
// organization signal fetchers.
package auth

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// Services the fetchers authenticate against.
const (
	Google = "google"
	Yelp   = "yelp"
	USNews = "usnews"
)

// KeyAPI is the credential map key holding an API key.
const KeyAPI = "api_key"

// Source represents a source of credentials or cookies.
type Source interface {
	// Credentials returns name/value pairs for the service, or nil if unavailable.
	Credentials(ctx context.Context, service string) (map[string]string, error)
}

// ChainSources returns credentials from the first source that provides them.
func ChainSources(ctx context.Context, service string, sources ...Source) (map[string]string, error) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		creds, err := src.Credentials(ctx, service)
		if err != nil {
			return nil, err
		}
		if len(creds) > 0 {
			return creds, nil
		}
	}
	return nil, nil //nolint:nilnil // no source had credentials, but this is not an error
}

// APIKey returns the first API key any source holds for service, or "".
func APIKey(ctx context.Context, service string, sources ...Source) string {
	for _, src := range sources {
		if src == nil {
			continue
		}
		creds, err := src.Credentials(ctx, service)
		if err != nil {
			continue
		}
		if k := creds[KeyAPI]; k != "" {
			return k
		}
	}
	return ""
}

// NewCookieJar creates an http.CookieJar populated with the given cookies for a domain.
func NewCookieJar(domain string, cookies map[string]string) (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse("https://" + domain)
	if err != nil {
		return nil, err
	}

	var httpCookies []*http.Cookie
	for name, value := range cookies {
		if value != "" && name != KeyAPI {
			httpCookies = append(httpCookies, &http.Cookie{
				Name:   name,
				Value:  value,
				Domain: "." + domain,
				Path:   "/",
			})
		}
	}

	jar.SetCookies(u, httpCookies)
	return jar, nil
}
