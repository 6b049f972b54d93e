// Package places fetches an organization's map-service business profile and
// reviews.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/auth"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/htmlutil"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

// DefaultReviewLimit caps reviews per profile.
const DefaultReviewLimit = 25

const (
	textSearchURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"
	detailsURL    = "https://maps.googleapis.com/maps/api/place/details/json"
	searchPageURL = "https://www.google.com/search"

	detailFields = "name,reviews,formatted_address,rating,user_ratings_total,formatted_phone_number," +
		"international_phone_number,website,opening_hours,geometry,types,place_id,url"

	// minSnippetLen drops navigation labels and other short spans.
	minSnippetLen = 20
)

// Client handles map-service requests.
type Client struct {
	httpClient  *http.Client
	cache       httpcache.Cacher
	logger      *slog.Logger
	apiKey      string
	reviewLimit int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache       httpcache.Cacher
	logger      *slog.Logger
	cookies     map[string]string
	apiKey      string
	reviewLimit int
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithAPIKey sets the Places API key. Without one the API strategy is skipped.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithCookies sets google.com cookies for the search-page strategy.
func WithCookies(cookies map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithReviewLimit caps the number of reviews returned.
func WithReviewLimit(n int) Option {
	return func(c *config) { c.reviewLimit = n }
}

// New creates a map-service client.
func New(_ context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default(), reviewLimit: DefaultReviewLimit}
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

	return &Client{
		httpClient:  hc,
		cache:       cfg.cache,
		logger:      cfg.logger,
		apiKey:      cfg.apiKey,
		reviewLimit: cfg.reviewLimit,
	}, nil
}

// Strategies returns the acquisition strategies in priority order.
func (c *Client) Strategies() []signal.Strategy {
	return []signal.Strategy{
		{Name: "places-api", Fetch: c.fetchAPI},
		{Name: "search-snippets", Fetch: c.fetchSnippets},
	}
}

// Fetch runs the strategies as a fallback chain.
func (c *Client) Fetch(ctx context.Context, id signal.Identity) []signal.Item {
	return signal.Acquire(ctx, c.logger, signal.MapsProfile, c.Strategies(), id)
}

type apiResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Results      []place `json:"results"`
	Result       *place  `json:"result"`
}

type place struct {
	PlaceID                  string   `json:"place_id"`
	Name                     string   `json:"name"`
	FormattedAddress         string   `json:"formatted_address"`
	FormattedPhoneNumber     string   `json:"formatted_phone_number"`
	InternationalPhoneNumber string   `json:"international_phone_number"`
	Website                  string   `json:"website"`
	URL                      string   `json:"url"`
	Rating                   *float64 `json:"rating"`
	UserRatingsTotal         int      `json:"user_ratings_total"`
	Types                    []string `json:"types"`
	OpeningHours             *struct {
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
	Geometry *struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Reviews []review `json:"reviews"`
}

type review struct {
	AuthorName string  `json:"author_name"`
	AuthorURL  string  `json:"author_url"`
	Rating     float64 `json:"rating"`
	Text       string  `json:"text"`
	Time       int64   `json:"time"`
}

func (c *Client) fetchAPI(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no Places API key: %w", signal.ErrSkipped)
	}

	query := id.Label()
	if loc := id.Place(); loc != "" {
		query += " " + loc
	}
	search, err := c.call(ctx, textSearchURL, url.Values{"query": {query}})
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	if len(search.Results) == 0 || search.Results[0].PlaceID == "" {
		return nil, nil
	}

	top := search.Results[0]
	c.logger.DebugContext(ctx, "place candidate", "name", top.Name, "place_id", top.PlaceID, "candidates", len(search.Results))

	details, err := c.call(ctx, detailsURL, url.Values{"place_id": {top.PlaceID}, "fields": {detailFields}})
	if err != nil {
		return nil, fmt.Errorf("details: %w", err)
	}
	p := top
	if details.Result != nil {
		p = *details.Result
	}
	return c.placeItems(&p), nil
}

func (c *Client) call(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	// Error statuses come back as 200 responses; don't cache them.
	body, err := httpcache.FetchURLWithValidator(ctx, c.cache, c.httpClient, req, c.logger, func(b []byte) bool {
		var r apiResponse
		return json.Unmarshal(b, &r) == nil && (r.Status == "OK" || r.Status == "ZERO_RESULTS")
	})
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", signal.ErrUnparseable, err)
	}
	switch resp.Status {
	case "OK", "ZERO_RESULTS":
		return &resp, nil
	case "OVER_QUERY_LIMIT":
		return nil, signal.ErrRateLimited
	case "REQUEST_DENIED":
		return nil, fmt.Errorf("%w: %s", signal.ErrAuthRequired, resp.ErrorMessage)
	default:
		return nil, fmt.Errorf("places API status %s: %s", resp.Status, resp.ErrorMessage)
	}
}

func (c *Client) placeItems(p *place) []signal.Item {
	fields := map[string]string{
		"place_id":            p.PlaceID,
		"phone":               p.FormattedPhoneNumber,
		"international_phone": p.InternationalPhoneNumber,
		"maps_url":            p.URL,
	}
	if p.UserRatingsTotal > 0 {
		fields["user_ratings_total"] = strconv.Itoa(p.UserRatingsTotal)
	}
	if p.OpeningHours != nil && len(p.OpeningHours.WeekdayText) > 0 {
		fields["opening_hours"] = strings.Join(p.OpeningHours.WeekdayText, "; ")
	}
	if p.Geometry != nil {
		fields["lat"] = strconv.FormatFloat(p.Geometry.Location.Lat, 'f', 6, 64)
		fields["lng"] = strconv.FormatFloat(p.Geometry.Location.Lng, 'f', 6, 64)
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}

	items := []signal.Item{{
		Type:     signal.TypePlace,
		Title:    p.Name,
		Content:  p.FormattedAddress,
		URL:      p.Website,
		Category: strings.Join(p.Types, ", "),
		Rating:   p.Rating,
		Fields:   fields,
	}}

	for _, r := range p.Reviews {
		if len(items)-1 >= c.reviewLimit {
			break
		}
		rating := r.Rating
		it := signal.Item{
			Type:    signal.TypeReview,
			Title:   p.Name,
			Author:  r.AuthorName,
			Content: r.Text,
			URL:     r.AuthorURL,
			Rating:  &rating,
		}
		if r.Time > 0 {
			it.Published = time.Unix(r.Time, 0).UTC().Format(time.RFC3339)
		}
		items = append(items, it)
	}
	return items
}

func (c *Client) fetchSnippets(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	u := searchPageURL + "?" + url.Values{"q": {id.Label() + " reviews"}, "hl": {"en"}}.Encode()
	req, err := httpcache.NewRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		return nil, err
	}

	snippets, err := parseSnippets(body, c.reviewLimit)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 && htmlutil.IsBlocked(string(body)) {
		return nil, signal.ErrBlocked
	}

	items := make([]signal.Item, 0, len(snippets))
	for _, s := range snippets {
		items = append(items, signal.Item{Type: signal.TypeSnippet, Title: id.Label(), Content: s, URL: u})
	}
	return items, nil
}

// parseSnippets collects distinct span texts long enough to be review prose.
func parseSnippets(body []byte, limit int) ([]string, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := make(map[string]bool)
	for _, n := range htmlutil.FindAll(doc, htmlutil.Tag("span")) {
		if len(out) >= limit {
			break
		}
		text := htmlutil.Text(n)
		if len(text) <= minSnippetLen || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out, nil
}

// Live returns the live rating carried by the place item, if any.
func Live(items []signal.Item) *float64 {
	for _, it := range items {
		if it.Type == signal.TypePlace && it.Rating != nil {
			return it.Rating
		}
	}
	return nil
}

// Website returns the organization website from the place item, if any.
func Website(items []signal.Item) string {
	for _, it := range items {
		if it.Type == signal.TypePlace && it.URL != "" {
			return it.URL
		}
	}
	return ""
}
