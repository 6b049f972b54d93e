// Package website scrapes an organization's own site for its About
// details: page title, meta description, headline, social profiles and
// phone numbers.
package website

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/htmlutil"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
	"golang.org/x/net/html"
)

// Client handles website requests.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache  httpcache.Cacher
	logger *slog.Logger
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a website client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{httpClient: httpcache.NewClient(), cache: cfg.cache, logger: cfg.logger}, nil
}

// Strategies returns the acquisition strategies in priority order.
func (c *Client) Strategies() []signal.Strategy {
	return []signal.Strategy{
		{Name: "homepage", Fetch: c.homepage},
		{Name: "about-page", Fetch: c.aboutPage},
	}
}

// Fetch runs the strategies as a fallback chain.
func (c *Client) Fetch(ctx context.Context, id signal.Identity) []signal.Item {
	return signal.Acquire(ctx, c.logger, signal.Website, c.Strategies(), id)
}

func (c *Client) homepage(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	doc, pageURL, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return about(doc, pageURL), nil
}

func (c *Client) aboutPage(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	doc, pageURL, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	link := htmlutil.AboutLink(doc, pageURL)
	if link == "" {
		return nil, nil
	}
	doc, err = c.fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	return about(doc, link), nil
}

// load fetches the homepage, following one meta-refresh or script redirect.
func (c *Client) load(ctx context.Context, id signal.Identity) (*html.Node, string, error) {
	site := strings.TrimSpace(id.Website)
	if site == "" {
		return nil, "", fmt.Errorf("no website: %w", signal.ErrSkipped)
	}
	if !strings.Contains(site, "://") {
		site = "https://" + site
	}
	body, err := c.get(ctx, site)
	if err != nil {
		return nil, "", err
	}
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, "", err
	}
	if next := htmlutil.RedirectURL(doc, string(body), site); next != "" && next != site {
		c.logger.DebugContext(ctx, "following page redirect", "from", site, "to", next)
		if d, err := c.fetch(ctx, next); err == nil {
			return d, next, nil
		}
	}
	return doc, site, nil
}

func (c *Client) fetch(ctx context.Context, u string) (*html.Node, error) {
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return htmlutil.Parse(body)
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := httpcache.NewRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	return httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
}

// about builds the About item. A page with no title, description or
// headline yields nothing.
func about(doc *html.Node, pageURL string) []signal.Item {
	title := htmlutil.Title(doc)
	desc := htmlutil.Description(doc)
	h1 := htmlutil.H1(doc)
	if title == "" && desc == "" && h1 == "" {
		return nil
	}

	fields := map[string]string{}
	if h1 != "" {
		fields["h1"] = h1
	}
	for network, link := range htmlutil.SocialLinks(doc) {
		fields["social_"+network] = link
	}
	if phones := htmlutil.PhoneNumbers(htmlutil.Text(htmlutil.Find(doc, htmlutil.Tag("body")))); len(phones) > 0 {
		fields["phones"] = strings.Join(phones, "; ")
	}
	if len(fields) == 0 {
		fields = nil
	}

	return []signal.Item{{
		Type:    signal.TypeAbout,
		Title:   title,
		Content: desc,
		URL:     pageURL,
		Fields:  fields,
	}}
}

// SocialNetworks returns the networks with a profile link on the About item,
// sorted.
func SocialNetworks(items []signal.Item) []string {
	var out []string
	for _, it := range items {
		for k := range it.Fields {
			if name, ok := strings.CutPrefix(k, "social_"); ok {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}
