package auth

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // Import all browser cookie stores
	"github.com/browserutils/kooky/browser/firefox"
)

// serviceDomains maps service names to their cookie domains.
var serviceDomains = map[string]string{
	Google: "google.com",
	Yelp:   "yelp.com",
	USNews: "usnews.com",
}

// serviceEssentialCookies lists the cookies worth sending per service.
// Services not listed get every cookie for the domain.
var serviceEssentialCookies = map[string][]string{
	Google: {"NID", "SOCS", "CONSENT", "AEC"},
}

// firefoxProfileGlobs are Firefox-family cookie stores that kooky does not
// find on its own.
var firefoxProfileGlobs = []string{
	filepath.Join("Library", "Application Support", "zen", "Profiles", "*", "cookies.sqlite"),
	filepath.Join("Library", "Application Support", "Firefox", "Profiles", "*", "cookies.sqlite"),
	filepath.Join(".mozilla", "firefox", "*", "cookies.sqlite"),
	filepath.Join(".zen", "*", "cookies.sqlite"),
}

// BrowserSource reads cookies from local browser cookie stores so scrapers
// look like the user's own browser session.
type BrowserSource struct {
	logger *slog.Logger
}

// NewBrowserSource creates a new browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger}
}

// Credentials returns cookies for the given service from browser stores.
func (s *BrowserSource) Credentials(ctx context.Context, service string) (map[string]string, error) {
	domain, ok := serviceDomains[service]
	if !ok {
		return nil, nil //nolint:nilnil // no cookies for unknown service is not an error
	}

	s.logger.DebugContext(ctx, "reading browser cookies", "service", service, "domain", domain)

	if cookies := s.tryFirefoxProfiles(ctx, domain, service); len(cookies) > 0 {
		return cookies, nil
	}

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil {
		s.logger.DebugContext(ctx, "failed to read browser cookies", "service", service, "error", err)
		return nil, nil //nolint:nilnil // failed browser read is not a fatal error
	}
	if len(kookies) == 0 {
		return nil, nil //nolint:nilnil // no browser cookies is not an error
	}
	return s.filterEssentialCookies(ctx, kookies, service), nil
}

func (s *BrowserSource) tryFirefoxProfiles(ctx context.Context, domain, service string) map[string]string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}

	for _, g := range firefoxProfileGlobs {
		matches, err := filepath.Glob(filepath.Join(home, g))
		if err != nil {
			continue
		}
		for _, f := range matches {
			kookies, err := firefox.ReadCookies(ctx, f, kooky.Valid, kooky.DomainHasSuffix(domain))
			if err != nil {
				s.logger.DebugContext(ctx, "failed to read Firefox-family cookies",
					"profile", filepath.Base(filepath.Dir(f)), "service", service, "error", err)
				continue
			}
			if len(kookies) > 0 {
				s.logger.DebugContext(ctx, "found Firefox-family cookies",
					"profile", filepath.Base(filepath.Dir(f)), "service", service, "count", len(kookies))
				return s.filterEssentialCookies(ctx, kookies, service)
			}
		}
	}
	return nil
}

// filterEssentialCookies keeps only the cookies a service needs.
func (s *BrowserSource) filterEssentialCookies(ctx context.Context, kookies []*kooky.Cookie, service string) map[string]string {
	cookies := make(map[string]string)
	essential, ok := serviceEssentialCookies[service]
	if !ok {
		for _, c := range kookies {
			cookies[c.Name] = c.Value
		}
		return cookies
	}

	want := make(map[string]bool, len(essential))
	for _, name := range essential {
		want[name] = true
	}
	for _, c := range kookies {
		if want[c.Name] {
			cookies[c.Name] = c.Value
		}
	}
	s.logger.DebugContext(ctx, "browser cookies filtered", "service", service, "kept", len(cookies), "of", len(kookies))
	return cookies
}

// Domain returns the cookie domain for a service, or "".
func Domain(service string) string {
	return serviceDomains[service]
}
