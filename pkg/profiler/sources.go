package profiler

import (
	"context"
	"fmt"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/auth"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/news"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/places"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/survey"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/usnews"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/website"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/websearch"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/yelp"
)

// defaultFetchers builds a client for every source that has not been
// replaced with WithFetcher.
func defaultFetchers(ctx context.Context, cfg *config) (map[string]Fetcher, error) {
	out := make(map[string]Fetcher)
	need := func(source string) bool {
		_, replaced := cfg.fetchers[source]
		return !replaced
	}

	googleCookies := cookiesFor(ctx, cfg, auth.Google)

	if need(signal.WebSearch) {
		c, err := websearch.New(ctx,
			websearch.WithHTTPCache(cfg.cache), websearch.WithLogger(cfg.logger), websearch.WithCookies(googleCookies))
		if err != nil {
			return nil, fmt.Errorf("web search client: %w", err)
		}
		out[signal.WebSearch] = c
	}

	if need(signal.MapsProfile) {
		key := auth.APIKey(ctx, auth.Google, auth.NewAPIKeySource(auth.Google, cfg.googleKey), auth.EnvSource{})
		if key == "" {
			cfg.logger.WarnContext(ctx, "no map-service API key; using search snippets only")
		}
		c, err := places.New(ctx,
			places.WithHTTPCache(cfg.cache), places.WithLogger(cfg.logger),
			places.WithAPIKey(key), places.WithCookies(googleCookies))
		if err != nil {
			return nil, fmt.Errorf("places client: %w", err)
		}
		out[signal.MapsProfile] = c
	}

	if need(signal.ReviewsSite) {
		key := auth.APIKey(ctx, auth.Yelp, auth.NewAPIKeySource(auth.Yelp, cfg.yelpKey), auth.EnvSource{})
		opts := []yelp.Option{
			yelp.WithHTTPCache(cfg.cache), yelp.WithLogger(cfg.logger),
			yelp.WithAPIKey(key), yelp.WithCookies(cookiesFor(ctx, cfg, auth.Yelp)),
			yelp.WithThreshold(cfg.threshold),
		}
		if cfg.defaultLocation != "" {
			opts = append(opts, yelp.WithDefaultLocation(cfg.defaultLocation))
		}
		if cfg.renderer != nil {
			opts = append(opts, yelp.WithRenderer(cfg.renderer))
		}
		c, err := yelp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("review-site client: %w", err)
		}
		out[signal.ReviewsSite] = c
	}

	if need(signal.RankingSite) {
		c, err := usnews.New(ctx,
			usnews.WithHTTPCache(cfg.cache), usnews.WithLogger(cfg.logger),
			usnews.WithCookies(cookiesFor(ctx, cfg, auth.USNews)))
		if err != nil {
			return nil, fmt.Errorf("ranking client: %w", err)
		}
		out[signal.RankingSite] = c
	}

	if need(signal.News) {
		c, err := news.New(ctx, news.WithHTTPCache(cfg.cache), news.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("news client: %w", err)
		}
		out[signal.News] = c
	}

	if need(signal.Website) {
		c, err := website.New(ctx, website.WithHTTPCache(cfg.cache), website.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("website client: %w", err)
		}
		out[signal.Website] = c
	}

	if need(signal.PatientSurvey) {
		c, err := survey.New(ctx, survey.WithHTTPCache(cfg.cache), survey.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("survey client: %w", err)
		}
		out[signal.PatientSurvey] = c
	}

	return out, nil
}

// cookiesFor returns explicit cookies for service, falling back to the
// user's browser stores when enabled.
func cookiesFor(ctx context.Context, cfg *config, service string) map[string]string {
	sources := []auth.Source{auth.NewStaticSource(cfg.cookies)}
	if cfg.browserCookies {
		sources = append(sources, auth.NewBrowserSource(cfg.logger))
	}
	cookies, err := auth.ChainSources(ctx, service, sources...)
	if err != nil {
		cfg.logger.WarnContext(ctx, "cookie lookup failed", "service", service, "error", err)
		return nil
	}
	if len(cookies) > 0 {
		cfg.logger.DebugContext(ctx, "using cookies", "service", service, "count", len(cookies))
	}
	return cookies
}
