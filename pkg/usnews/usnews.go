// Package usnews fetches hospital ranking labels and ranked specialties from
// the ranking site's search page.
package usnews

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/auth"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/htmlutil"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

// NotRanked is the rank label reported when the site lists no ranking.
const NotRanked = "N/A"

const searchURL = "https://health.usnews.com/best-hospitals/search"

// Client handles ranking-site requests.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache   httpcache.Cacher
	logger  *slog.Logger
	cookies map[string]string
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithCookies sets usnews.com cookies; the site often rejects cookieless clients.
func WithCookies(cookies map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// New creates a ranking-site client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	hc := httpcache.NewClient()
	if len(cfg.cookies) > 0 {
		jar, err := auth.NewCookieJar(auth.Domain(auth.USNews), cfg.cookies)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	return &Client{httpClient: hc, cache: cfg.cache, logger: cfg.logger}, nil
}

// Strategies returns the acquisition strategies in priority order.
func (c *Client) Strategies() []signal.Strategy {
	return []signal.Strategy{
		{Name: "search-with-city", Fetch: c.searchWithCity},
		{Name: "search-name-only", Fetch: c.searchNameOnly},
	}
}

// Fetch runs the strategies as a fallback chain.
func (c *Client) Fetch(ctx context.Context, id signal.Identity) []signal.Item {
	return signal.Acquire(ctx, c.logger, signal.RankingSite, c.Strategies(), id)
}

func (c *Client) searchWithCity(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	if strings.TrimSpace(id.City) == "" {
		return nil, fmt.Errorf("no city: %w", signal.ErrSkipped)
	}
	return c.search(ctx, strings.TrimSpace(id.Label())+" "+strings.TrimSpace(id.City))
}

func (c *Client) searchNameOnly(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	return c.search(ctx, strings.TrimSpace(id.Label()))
}

func (c *Client) search(ctx context.Context, query string) ([]signal.Item, error) {
	if query == "" {
		return nil, fmt.Errorf("no hospital name: %w", signal.ErrSkipped)
	}
	u := searchURL + "?hospital_name=" + url.QueryEscape(query)
	req, err := httpcache.NewRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		return nil, err
	}
	items, err := parse(body, u)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && htmlutil.IsBlocked(string(body)) {
		return nil, signal.ErrBlocked
	}
	return items, nil
}

// parse reads the first search result's badge text as the rank label, plus
// every listed specialty.
func parse(body []byte, pageURL string) ([]signal.Item, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, err
	}
	var items []signal.Item
	if result := htmlutil.Find(doc, htmlutil.AttrEquals("div", "data-test-id", "search-result")); result != nil {
		rank := htmlutil.Text(htmlutil.Find(result, htmlutil.Tag("span")))
		if rank == "" {
			rank = NotRanked
		}
		name := htmlutil.Text(htmlutil.Find(result, htmlutil.Tag("h3")))
		items = append(items, signal.Item{Type: signal.TypeRanking, Title: rank, Content: name, URL: pageURL})
	}
	for _, n := range htmlutil.FindAll(doc, htmlutil.AttrEquals("", "data-test-id", "specialty")) {
		if s := htmlutil.Text(n); s != "" {
			items = append(items, signal.Item{Type: signal.TypeSpecialty, Title: s, Category: s, URL: pageURL})
		}
	}
	return items, nil
}

// Rank returns the rank label, or NotRanked when none was found.
func Rank(items []signal.Item) string {
	for _, it := range items {
		if it.Type == signal.TypeRanking && it.Title != "" {
			return it.Title
		}
	}
	return NotRanked
}

// Specialties returns the ranked specialty names.
func Specialties(items []signal.Item) []string {
	var out []string
	for _, it := range items {
		if it.Type == signal.TypeSpecialty {
			out = append(out, it.Title)
		}
	}
	return out
}
