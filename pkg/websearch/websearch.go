// Package websearch collects top web search hits for an organization name
// and derives a city/state hint from their snippets.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/auth"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/htmlutil"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
	"golang.org/x/net/html"
)

// DefaultLimit is the number of hits kept.
const DefaultLimit = 3

const searchURL = "https://www.google.com/search"

// Client handles search-page requests.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	limit      int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache   httpcache.Cacher
	logger  *slog.Logger
	cookies map[string]string
	limit   int
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithCookies sets google.com cookies sent with the search request.
func WithCookies(cookies map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithLimit sets how many hits are kept.
func WithLimit(n int) Option {
	return func(c *config) { c.limit = n }
}

// New creates a search client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default(), limit: DefaultLimit}
	for _, opt := range opts {
		opt(cfg)
	}
	hc := httpcache.NewClient()
	if len(cfg.cookies) > 0 {
		jar, err := auth.NewCookieJar(auth.Domain(auth.Google), cfg.cookies)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	return &Client{httpClient: hc, cache: cfg.cache, logger: cfg.logger, limit: cfg.limit}, nil
}

// Strategies returns the acquisition strategies in priority order.
func (c *Client) Strategies() []signal.Strategy {
	return []signal.Strategy{{Name: "search-page", Fetch: c.fetchPage}}
}

// Fetch runs the strategies as a fallback chain.
func (c *Client) Fetch(ctx context.Context, id signal.Identity) []signal.Item {
	return signal.Acquire(ctx, c.logger, signal.WebSearch, c.Strategies(), id)
}

func (c *Client) fetchPage(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	q := strings.TrimSpace(id.Label())
	if q == "" {
		return nil, fmt.Errorf("empty query: %w", signal.ErrSkipped)
	}
	req, err := httpcache.NewRequest(ctx, searchURL+"?"+url.Values{"q": {q}, "hl": {"en"}}.Encode())
	if err != nil {
		return nil, err
	}
	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		return nil, err
	}
	items, err := parseResults(body, c.limit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && htmlutil.IsBlocked(string(body)) {
		return nil, signal.ErrBlocked
	}
	return items, nil
}

// parseResults reads organic result blocks: a title in <h3>, the first link,
// and the snippet text.
func parseResults(body []byte, limit int) ([]signal.Item, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, err
	}
	var items []signal.Item
	for _, g := range htmlutil.FindAll(doc, htmlutil.Class("div", "tF2Cxc")) {
		if len(items) >= limit {
			break
		}
		it := signal.Item{Type: signal.TypeHit, Title: htmlutil.Text(htmlutil.Find(g, htmlutil.Tag("h3")))}
		if a := htmlutil.Find(g, htmlutil.Tag("a")); a != nil {
			it.URL, _ = htmlutil.Attr(a, "href")
		}
		it.Content = snippet(g)
		if it.Title == "" && it.URL == "" {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func snippet(g *html.Node) string {
	if n := htmlutil.Find(g, htmlutil.Class("span", "aCOpRe")); n != nil {
		return htmlutil.Text(n)
	}
	return htmlutil.Text(htmlutil.Find(g, htmlutil.Class("div", "VwiC3b")))
}

// locationPattern matches "City Name, ST".
var locationPattern = regexp.MustCompile(`\b([A-Za-z][A-Za-z ]*),\s([A-Z]{2})\b`)

// LocationHint returns the city and state from the first hit whose snippet
// mentions "City, ST".
func LocationHint(hits []signal.Item) (city, state string) {
	for _, h := range hits {
		if m := locationPattern.FindStringSubmatch(h.Content); m != nil {
			if city := cityWords(m[1]); city != "" {
				return city, m[2]
			}
		}
	}
	return "", ""
}

// cityWords keeps the trailing capitalized words (at most three), since the
// pattern also swallows the sentence text before the city name.
func cityWords(s string) string {
	f := strings.Fields(s)
	i := len(f)
	for i > 0 && len(f)-i < 3 && unicode.IsUpper([]rune(f[i-1])[0]) {
		i--
	}
	return strings.Join(f[i:], " ")
}
