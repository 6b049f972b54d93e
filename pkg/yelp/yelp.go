// Package yelp fetches review-site business data and reviews.
//
// Strategies run in order: the Fusion API (needs a key), a search-page scrape,
// a direct scrape of the business page, and a headless browser render of that
// page for reviews that only load with JavaScript. The business page is the
// one the caller supplied, or else the first organic search result.
package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/auth"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/normalize"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/registry"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

// Defaults.
const (
	DefaultLocation    = "United States"
	DefaultReviewLimit = 5
	DefaultPageLimit   = 20
	searchLimit        = 10
)

var (
	apiBase       = "https://api.yelp.com/v3"
	siteBase      = "https://www.yelp.com"
	searchPageURL = siteBase + "/search"
)

// Renderer returns the fully rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (string, error)
}

// Client handles review-site requests.
type Client struct {
	httpClient  *http.Client
	cache       httpcache.Cacher
	logger      *slog.Logger
	renderer    Renderer
	apiKey      string
	location    string
	reviewLimit int
	pageLimit   int
	threshold   float64
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache       httpcache.Cacher
	logger      *slog.Logger
	renderer    Renderer
	cookies     map[string]string
	apiKey      string
	location    string
	reviewLimit int
	pageLimit   int
	threshold   float64
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithAPIKey sets the Fusion API key. Without one the API strategy is skipped.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithCookies sets yelp.com cookies for the scrape strategies.
func WithCookies(cookies map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithDefaultLocation sets the search location used when the identity has none.
func WithDefaultLocation(loc string) Option {
	return func(c *config) { c.location = loc }
}

// WithRenderer enables the headless browser strategy.
func WithRenderer(r Renderer) Option {
	return func(c *config) { c.renderer = r }
}

// WithThreshold sets the minimum name similarity for picking a business.
func WithThreshold(t float64) Option {
	return func(c *config) { c.threshold = t }
}

// WithReviewLimit caps reviews taken from the API.
func WithReviewLimit(n int) Option {
	return func(c *config) { c.reviewLimit = n }
}

// New creates a review-site client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{
		logger:      slog.Default(),
		location:    DefaultLocation,
		reviewLimit: DefaultReviewLimit,
		pageLimit:   DefaultPageLimit,
		threshold:   registry.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	hc := httpcache.NewClient()
	if len(cfg.cookies) > 0 {
		jar, err := auth.NewCookieJar(auth.Domain(auth.Yelp), cfg.cookies)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc.Jar = jar
	}

	return &Client{
		httpClient:  hc,
		cache:       cfg.cache,
		logger:      cfg.logger,
		renderer:    cfg.renderer,
		apiKey:      cfg.apiKey,
		location:    cfg.location,
		reviewLimit: cfg.reviewLimit,
		pageLimit:   cfg.pageLimit,
		threshold:   cfg.threshold,
	}, nil
}

// Strategies returns the acquisition strategies in priority order.
func (c *Client) Strategies() []signal.Strategy {
	return []signal.Strategy{
		{Name: "api", Fetch: c.fetchAPI},
		{Name: "search-page", Fetch: c.fetchSearchPage},
		{Name: "business-page", Fetch: c.fetchBusinessPage},
		{Name: "browser", Fetch: c.fetchBrowser, Timeout: browserTimeout},
	}
}

// Fetch runs the strategies as a fallback chain.
func (c *Client) Fetch(ctx context.Context, id signal.Identity) []signal.Item {
	return signal.Acquire(ctx, c.logger, signal.ReviewsSite, c.Strategies(), id)
}

func (c *Client) searchLocation(id signal.Identity) string {
	switch {
	case id.Location != "":
		return id.Location
	case id.Place() != "":
		return id.Place()
	default:
		return c.location
	}
}

type business struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Phone       string   `json:"display_phone"`
	Rating      *float64 `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Categories  []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
}

type apiReview struct {
	ID     string  `json:"id"`
	URL    string  `json:"url"`
	Text   string  `json:"text"`
	Rating float64 `json:"rating"`
	Time   string  `json:"time_created"`
	User   struct {
		Name string `json:"name"`
	} `json:"user"`
}

func (c *Client) fetchAPI(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no review-site API key: %w", signal.ErrSkipped)
	}

	params := url.Values{
		"term":     {id.Label()},
		"location": {c.searchLocation(id)},
		"limit":    {strconv.Itoa(searchLimit)},
	}
	var search struct {
		Businesses []business `json:"businesses"`
	}
	if err := c.getJSON(ctx, apiBase+"/businesses/search?"+params.Encode(), &search); err != nil {
		return nil, fmt.Errorf("business search: %w", err)
	}

	best, score := c.pickBusiness(id.Label(), search.Businesses)
	if best == nil {
		c.logger.DebugContext(ctx, "no review-site business above threshold",
			"name", id.Label(), "candidates", len(search.Businesses), "best_score", score)
		return nil, nil
	}

	var reviews struct {
		Reviews []apiReview `json:"reviews"`
	}
	rp := url.Values{"limit": {strconv.Itoa(c.reviewLimit)}, "sort_by": {"yelp_sort"}}
	if err := c.getJSON(ctx, apiBase+"/businesses/"+url.PathEscape(best.ID)+"/reviews?"+rp.Encode(), &reviews); err != nil {
		// The business profile alone is still useful.
		c.logger.WarnContext(ctx, "review-site reviews failed", "business", best.ID, "error", err)
	}

	items := []signal.Item{businessItem(best)}
	for _, r := range reviews.Reviews {
		if len(items)-1 >= c.reviewLimit {
			break
		}
		rating := r.Rating
		items = append(items, signal.Item{
			Type:      signal.TypeReview,
			Title:     best.Name,
			Author:    r.User.Name,
			Content:   r.Text,
			URL:       r.URL,
			Rating:    &rating,
			Published: r.Time,
		})
	}
	return items, nil
}

// pickBusiness returns the candidate whose normalized name is most similar
// to name, provided it reaches the threshold. Ties keep the earlier result.
func (c *Client) pickBusiness(name string, candidates []business) (*business, float64) {
	want := normalize.Name(name)
	var best *business
	bestScore := 0.0
	for i := range candidates {
		s := registry.Similarity(want, normalize.Name(candidates[i].Name))
		if s > bestScore {
			best, bestScore = &candidates[i], s
		}
	}
	if best == nil || bestScore < c.threshold {
		return nil, bestScore
	}
	return best, bestScore
}

func businessItem(b *business) signal.Item {
	cats := make([]string, 0, len(b.Categories))
	for _, cat := range b.Categories {
		cats = append(cats, cat.Title)
	}
	fields := map[string]string{"business_id": b.ID}
	if b.Phone != "" {
		fields["phone"] = b.Phone
	}
	if b.ReviewCount > 0 {
		fields["review_count"] = strconv.Itoa(b.ReviewCount)
	}
	return signal.Item{
		Type:     signal.TypePlace,
		Title:    b.Name,
		Content:  strings.Join(b.Location.DisplayAddress, ", "),
		URL:      stripQuery(b.URL),
		Category: strings.Join(cats, ", "),
		Rating:   b.Rating,
		Fields:   fields,
	}
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", signal.ErrUnparseable, err)
	}
	return nil
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}
