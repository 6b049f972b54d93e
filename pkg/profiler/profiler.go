// Package profiler runs the profile pipeline for one organization: name
// normalization, registry matching, parallel signal fetching, score
// reconciliation and report assembly.
package profiler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/normalize"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/places"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/registry"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/report"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/score"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/usnews"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/websearch"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/yelp"
)

// Fetcher acquires one source's items. Implementations never fail; an empty
// result means the source produced nothing.
type Fetcher interface {
	Fetch(ctx context.Context, id signal.Identity) []signal.Item
}

// Request is one profile lookup.
type Request struct {
	Name  string
	City  string
	State string

	// ReviewSiteURL is a known review-site business page.
	ReviewSiteURL string
	// Location overrides the review-site search location.
	Location string
}

// Profiler runs profile requests against a shared registry.
type Profiler struct {
	registry atomic.Pointer[registry.Registry]
	fetchers map[string]Fetcher
	logger   *slog.Logger
	matcher  registry.Matcher
}

// Option configures a Profiler.
type Option func(*config)

type config struct {
	cache           httpcache.Cacher
	logger          *slog.Logger
	renderer        yelp.Renderer
	fetchers        map[string]Fetcher
	cookies         map[string]map[string]string
	googleKey       string
	yelpKey         string
	defaultLocation string
	threshold       float64
	browserCookies  bool
}

// WithHTTPCache sets the HTTP cache shared by all sources.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithBrowserCookies enables reading cookies from browser stores for the
// scrape strategies.
func WithBrowserCookies() Option {
	return func(c *config) { c.browserCookies = true }
}

// WithCookies sets explicit cookies per service (auth.Google, auth.Yelp, ...).
func WithCookies(cookies map[string]map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithGoogleAPIKey sets the map-service API key, overriding GOOGLE_API_KEY.
func WithGoogleAPIKey(key string) Option {
	return func(c *config) { c.googleKey = key }
}

// WithYelpAPIKey sets the review-site API key, overriding YELP_API_KEY.
func WithYelpAPIKey(key string) Option {
	return func(c *config) { c.yelpKey = key }
}

// WithDefaultLocation sets the review-site search location used when the
// organization's location is unknown.
func WithDefaultLocation(loc string) Option {
	return func(c *config) { c.defaultLocation = loc }
}

// WithThreshold sets the name-match similarity threshold.
func WithThreshold(t float64) Option {
	return func(c *config) { c.threshold = t }
}

// WithRenderer enables the headless browser strategy for the review site.
func WithRenderer(r yelp.Renderer) Option {
	return func(c *config) { c.renderer = r }
}

// WithFetcher replaces the fetcher for one source.
func WithFetcher(source string, f Fetcher) Option {
	return func(c *config) {
		if c.fetchers == nil {
			c.fetchers = make(map[string]Fetcher)
		}
		c.fetchers[source] = f
	}
}

// New creates a Profiler over reg. Sources not replaced with WithFetcher get
// their default client.
func New(ctx context.Context, reg *registry.Registry, opts ...Option) (*Profiler, error) {
	cfg := &config{logger: slog.Default(), threshold: registry.DefaultThreshold}
	for _, opt := range opts {
		opt(cfg)
	}

	fetchers, err := defaultFetchers(ctx, cfg)
	if err != nil {
		return nil, err
	}
	for source, f := range cfg.fetchers {
		fetchers[source] = f
	}

	p := &Profiler{
		fetchers: fetchers,
		logger:   cfg.logger,
		matcher:  registry.Matcher{Threshold: cfg.threshold},
	}
	p.SetRegistry(reg)
	return p, nil
}

// SetRegistry swaps in a newly loaded registry. In-flight requests keep the
// one they started with.
func (p *Profiler) SetRegistry(reg *registry.Registry) {
	if reg == nil {
		reg = registry.Empty()
	}
	p.registry.Store(reg)
}

// Registry returns the current registry.
func (p *Profiler) Registry() *registry.Registry {
	return p.registry.Load()
}

// Run profiles one organization. It always returns a report; sources that
// fail contribute nothing.
func (p *Profiler) Run(ctx context.Context, req Request) *report.Report {
	reqID := uuid.NewString()
	logger := p.logger.With("request_id", reqID)
	start := time.Now()
	reg := p.Registry()

	rep := &report.Report{
		RequestID:  reqID,
		Query:      registry.Query{Name: strings.TrimSpace(req.Name), City: strings.TrimSpace(req.City), State: strings.TrimSpace(req.State)},
		Normalized: normalize.Name(req.Name),
		Columns:    reg.Columns(),
		Signals:    signal.Bundle{},
	}
	logger.InfoContext(ctx, "profiling organization", "name", rep.Query.Name, "normalized", rep.Normalized)

	hits := p.fetch(ctx, signal.WebSearch, signal.Identity{Query: rep.Query.Name})
	rep.Signals.Add(signal.WebSearch, hits)
	city, state := websearch.LocationHint(hits)
	rep.Hint = report.Location{City: city, State: state}

	match := p.match(ctx, logger, reg, rep.Query, rep.Hint)
	rep.Match = report.MatchFrom(match)

	id := signal.Identity{
		Query:         rep.Query.Name,
		City:          rep.Query.City,
		State:         rep.Query.State,
		ReviewSiteURL: strings.TrimSpace(req.ReviewSiteURL),
		Location:      strings.TrimSpace(req.Location),
	}
	if id.City == "" && id.State == "" {
		id.City, id.State = city, state
	}
	if match.Matched && match.Record != nil {
		rec := match.Record
		rep.Facility = rec
		rep.Scores.Registry = rec.Score()
		id.Name, id.ID = rec.Name, rec.ID
		if rec.City != "" || rec.State != "" {
			id.City, id.State = rec.City, rec.State
		}
	}

	p.fanOut(ctx, id, rep.Signals)

	rep.Scores.Live = places.Live(rep.Signals[signal.MapsProfile])
	rep.Scores.Composite = score.Reconcile(rep.Scores.Registry, rep.Scores.Live)
	rep.Ranking = usnews.Rank(rep.Signals[signal.RankingSite])
	rep.GeneratedAt = time.Now().UTC()

	logger.InfoContext(ctx, "profile complete",
		"matched", match.Matched, "code", match.Code, "items", rep.Signals.Count(),
		"composite", fmtScore(rep.Scores.Composite), "duration", time.Since(start).Round(time.Millisecond))
	return rep
}

// match resolves the query. A web-search location hint narrows the lookup
// only when the user gave no location. The hint is dropped again when it
// filters out every candidate or nothing matches, and a hinted substring
// fallback loses to a scored match found without the hint.
func (p *Profiler) match(ctx context.Context, logger *slog.Logger, reg *registry.Registry, q registry.Query, hint report.Location) *registry.MatchResult {
	if q.City != "" || q.State != "" || (hint.City == "" && hint.State == "") {
		return p.matcher.Match(reg, q)
	}
	hinted := q
	hinted.City, hinted.State = hint.City, hint.State
	m := p.matcher.Match(reg, hinted)
	switch m.Code {
	case registry.NoLocation, registry.NoMatch:
		logger.DebugContext(ctx, "location hint did not match, retrying without it",
			"city", hint.City, "state", hint.State, "code", m.Code)
		return p.matcher.Match(reg, q)
	case registry.Substring:
		if plain := p.matcher.Match(reg, q); plain.Code == registry.Scored {
			logger.DebugContext(ctx, "scored match outside hinted location",
				"city", hint.City, "state", hint.State, "score", plain.Score)
			return plain
		}
	}
	return m
}

// fanOut runs every source concurrently. The website fetch waits for the
// map profile, which is where the website URL comes from.
func (p *Profiler) fanOut(ctx context.Context, id signal.Identity, bundle signal.Bundle) {
	sources := []string{signal.ReviewsSite, signal.RankingSite, signal.News, signal.PatientSurvey}
	results := make([][]signal.Item, len(sources))
	var mapsItems, siteItems []signal.Item

	var g errgroup.Group
	g.Go(func() error {
		mapsItems = p.fetch(ctx, signal.MapsProfile, id)
		siteID := id
		if siteID.Website == "" {
			siteID.Website = places.Website(mapsItems)
		}
		siteItems = p.fetch(ctx, signal.Website, siteID)
		return nil
	})
	for i, source := range sources {
		g.Go(func() error {
			results[i] = p.fetch(ctx, source, id)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors

	bundle.Add(signal.MapsProfile, mapsItems)
	bundle.Add(signal.Website, siteItems)
	for i, source := range sources {
		bundle.Add(source, results[i])
	}
}

func (p *Profiler) fetch(ctx context.Context, source string, id signal.Identity) []signal.Item {
	f, ok := p.fetchers[source]
	if !ok || f == nil {
		return nil
	}
	return f.Fetch(ctx, id)
}

func fmtScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
