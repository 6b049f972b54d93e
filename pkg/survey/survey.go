// Package survey fetches patient experience (HCAHPS) survey rows for a
// registry-identified facility from the CMS open data APIs.
package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

// DefaultLimit caps survey rows per facility.
const DefaultLimit = 500

var (
	providerDataURL = "https://data.cms.gov/provider-data/api/1/datastore/query/dgck-syfz/0"
	dataAPIURL      = "https://data.cms.gov/data-api/v1/dataset/77hc-e3se/data"
)

// Client handles survey API requests.
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

// WithLimit caps the number of rows.
func WithLimit(n int) Option {
	return func(c *config) { c.limit = n }
}

// New creates a survey client.
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
		{Name: "provider-data", Fetch: c.providerData},
		{Name: "data-api", Fetch: c.dataAPI},
	}
}

// Fetch runs the strategies as a fallback chain.
func (c *Client) Fetch(ctx context.Context, id signal.Identity) []signal.Item {
	return signal.Acquire(ctx, c.logger, signal.PatientSurvey, c.Strategies(), id)
}

func (c *Client) providerData(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	if id.ID == "" {
		return nil, fmt.Errorf("no registry id: %w", signal.ErrSkipped)
	}
	params := url.Values{
		"conditions[0][property]": {"facility_id"},
		"conditions[0][value]":    {id.ID},
		"conditions[0][operator]": {"="},
		"limit":                   {strconv.Itoa(c.limit)},
	}
	var resp struct {
		Results []map[string]any `json:"results"`
	}
	if err := c.getJSON(ctx, providerDataURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return rowsToItems(resp.Results, c.limit), nil
}

func (c *Client) dataAPI(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	if id.ID == "" {
		return nil, fmt.Errorf("no registry id: %w", signal.ErrSkipped)
	}
	filter, err := json.Marshal(map[string][]string{"provider_id": {id.ID}})
	if err != nil {
		return nil, err
	}
	params := url.Values{"filter": {string(filter)}, "size": {strconv.Itoa(c.limit)}}
	var rows []map[string]any
	if err := c.getJSON(ctx, dataAPIURL+"?"+params.Encode(), &rows); err != nil {
		return nil, err
	}
	return rowsToItems(rows, c.limit), nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "application/json")

	body, err := httpcache.FetchURLWithValidator(ctx, c.cache, c.httpClient, req, c.logger, json.Valid)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", signal.ErrUnparseable, err)
	}
	return nil
}

// rowsToItems keeps every non-empty column as a field. The question text
// becomes the title and the star rating, when numeric, the rating.
func rowsToItems(rows []map[string]any, limit int) []signal.Item {
	var items []signal.Item
	for _, row := range rows {
		if len(items) >= limit {
			break
		}
		fields := make(map[string]string, len(row))
		for k, v := range row {
			if s := stringify(v); s != "" {
				fields[strings.ToLower(k)] = s
			}
		}
		if len(fields) == 0 {
			continue
		}
		it := signal.Item{
			Type:     signal.TypeSurvey,
			Title:    first(fields, "hcahps_question", "measure_name", "hcahps_measure_id"),
			Content:  first(fields, "hcahps_answer_description", "answer_description"),
			Category: first(fields, "hcahps_measure_id", "measure_id"),
			Fields:   fields,
		}
		if v, err := strconv.ParseFloat(first(fields, "patient_survey_star_rating", "star_rating"), 64); err == nil {
			it.Rating = &v
		}
		items = append(items, it)
	}
	return items
}

func first(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" && !strings.EqualFold(v, "Not Applicable") {
			return v
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Columns returns the union of field names across items, sorted, for
// tabular export.
func Columns(items []signal.Item) []string {
	seen := map[string]bool{}
	var cols []string
	for _, it := range items {
		for k := range it.Fields {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
