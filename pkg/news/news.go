// Package news fetches recent headlines about an organization from a news
// search RSS feed.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/htmlutil"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

// DefaultLimit caps headlines per organization.
const DefaultLimit = 5

const feedURL = "https://news.google.com/rss/search"

// Client handles news feed requests.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	limit      int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache  httpcache.Cacher
	logger *slog.Logger
	limit  int
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithLimit caps the number of headlines.
func WithLimit(n int) Option {
	return func(c *config) { c.limit = n }
}

// New creates a news client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default(), limit: DefaultLimit}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{httpClient: httpcache.NewClient(), cache: cfg.cache, logger: cfg.logger, limit: cfg.limit}, nil
}

// Strategies returns the acquisition strategies in priority order.
func (c *Client) Strategies() []signal.Strategy {
	return []signal.Strategy{
		{Name: "name-with-location", Fetch: c.withLocation},
		{Name: "name-only", Fetch: c.nameOnly},
	}
}

// Fetch runs the strategies as a fallback chain.
func (c *Client) Fetch(ctx context.Context, id signal.Identity) []signal.Item {
	return signal.Acquire(ctx, c.logger, signal.News, c.Strategies(), id)
}

func (c *Client) withLocation(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	if id.City == "" {
		return nil, fmt.Errorf("no city: %w", signal.ErrSkipped)
	}
	return c.search(ctx, fmt.Sprintf("%q %s", id.Label(), id.City))
}

func (c *Client) nameOnly(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	return c.search(ctx, id.Label())
}

type rss struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
	Source      string `xml:"source"`
}

func (c *Client) search(ctx context.Context, query string) ([]signal.Item, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", signal.ErrSkipped)
	}
	params := url.Values{"q": {query}, "hl": {"en-US"}, "gl": {"US"}, "ceid": {"US:en"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9")

	body, err := httpcache.FetchURLWithValidator(ctx, c.cache, c.httpClient, req, c.logger, func(b []byte) bool {
		return xml.Unmarshal(b, new(rss)) == nil
	})
	if err != nil {
		return nil, err
	}
	return parseFeed(body, c.limit)
}

// parseFeed converts the first limit feed entries into news items. Publish
// dates are normalized to RFC 3339 when they parse.
func parseFeed(body []byte, limit int) ([]signal.Item, error) {
	var feed rss
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: %w", signal.ErrUnparseable, err)
	}
	var items []signal.Item
	for _, e := range feed.Channel.Items {
		if len(items) >= limit {
			break
		}
		if e.Title == "" {
			continue
		}
		items = append(items, signal.Item{
			Type:      signal.TypeNews,
			Title:     strings.TrimSpace(e.Title),
			Author:    strings.TrimSpace(e.Source),
			Content:   htmlutil.StripTags(e.Description),
			URL:       strings.TrimSpace(e.Link),
			Published: pubDate(e.PubDate),
		})
	}
	return items, nil
}

func pubDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}
