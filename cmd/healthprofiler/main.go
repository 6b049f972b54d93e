// Command healthprofiler builds a profile of a healthcare organization: its
// registry record and quality score, live ratings and reviews, ranking,
// news coverage, website details and patient survey results.
//
// Usage:
//
//	healthprofiler "UCSF Medical Center"
//	healthprofiler -city Sacramento -state CA "Mercy General Hospital"
//	healthprofiler -xlsx out/ "Kaiser Permanente Oakland"  # also writes a workbook
//
// Credentials are read from GOOGLE_API_KEY and YELP_API_KEY (or a .env file).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/auth"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/profiler"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/registry"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/yelp"
)

const defaultYelpLocation = "San Francisco, CA"

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	verbose := flag.Bool("v", false, "verbose logging (same as -debug)")
	noBrowser := flag.Bool("no-browser", false, "disable browser cookies and the headless browser strategy")
	noCache := flag.Bool("no-cache", false, "disable HTTP caching (enabled by default with 7-day TTL)")
	cacheTTL := flag.Duration("cache-ttl", 7*24*time.Hour, "cache time-to-live")
	city := flag.String("city", "", "city to narrow the registry match")
	state := flag.String("state", "", "two-letter state to narrow the registry match")
	yelpURL := flag.String("yelp-url", "", "known review-site business page URL")
	xlsxDir := flag.String("xlsx", "", "also write the workbook into this directory")
	threshold := flag.Float64("threshold", registry.DefaultThreshold, "name similarity threshold (0-1)")
	googleKey := flag.String("google-key", "", "map-service API key (overrides GOOGLE_API_KEY)")
	yelpKey := flag.String("yelp-key", "", "review-site API key (overrides YELP_API_KEY)")
	rps := flag.Float64("rate", httpcache.DefaultRate, "requests per second allowed per upstream host (0 disables limiting)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: healthprofiler [options] <organization name>")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nEnvironment:")
		fmt.Fprintf(os.Stderr, "  %s\n", strings.Join(auth.EnvVarsForService(auth.Google), ", "))
		fmt.Fprintf(os.Stderr, "  %s\n", strings.Join(auth.EnvVarsForService(auth.Yelp), ", "))
		fmt.Fprintln(os.Stderr, "  REGISTRY_CSV_URL, REGISTRY_BACKUP_PATH, DEFAULT_YELP_LOCATION")
		os.Exit(1)
	}
	name := strings.Join(flag.Args(), " ")

	logLevel := slog.LevelInfo
	if *debug || *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to read .env", "error", err)
	}

	var httpCache *httpcache.Cache
	if *noCache {
		httpCache = httpcache.NewNull()
	} else {
		var err error
		httpCache, err = httpcache.New(*cacheTTL)
		if err != nil {
			logger.Warn("failed to initialize cache, continuing without cache", "error", err)
			httpCache = httpcache.NewNull()
		} else {
			logger.Debug("HTTP cache initialized", "ttl", cacheTTL.String())
		}
	}
	defer func() {
		if err := httpCache.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}()

	httpcache.SetRate(*rps, int(max(*rps, 1)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loaderOpts := []registry.Option{registry.WithHTTPCache(httpCache), registry.WithLogger(logger)}
	if u, ok := os.LookupEnv("REGISTRY_CSV_URL"); ok {
		loaderOpts = append(loaderOpts, registry.WithURL(u))
	}
	if p := os.Getenv("REGISTRY_BACKUP_PATH"); p != "" {
		loaderOpts = append(loaderOpts, registry.WithBackupPath(p))
	}
	reg := registry.NewLoader(loaderOpts...).Load(ctx)

	location := os.Getenv("DEFAULT_YELP_LOCATION")
	if location == "" {
		location = defaultYelpLocation
	}

	opts := []profiler.Option{
		profiler.WithLogger(logger),
		profiler.WithHTTPCache(httpCache),
		profiler.WithThreshold(*threshold),
		profiler.WithDefaultLocation(location),
		profiler.WithGoogleAPIKey(*googleKey),
		profiler.WithYelpAPIKey(*yelpKey),
	}
	if !*noBrowser {
		opts = append(opts, profiler.WithBrowserCookies())
		cookies, err := auth.ChainSources(ctx, auth.Yelp, auth.NewBrowserSource(logger))
		if err != nil {
			logger.Debug("no review-site cookies for browser", "error", err)
		}
		opts = append(opts, profiler.WithRenderer(yelp.NewChromeRenderer(logger, cookies)))
	}

	p, err := profiler.New(ctx, reg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
	}

	rep := p.Run(ctx, profiler.Request{Name: name, City: *city, State: *state, ReviewSiteURL: *yelpURL})

	if err := rep.WriteJSON(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
		os.Exit(1)
	}
	if *xlsxDir != "" {
		path, err := rep.SaveXLSX(*xlsxDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Workbook error: %v\n", err)
			os.Exit(1)
		}
		logger.Info("workbook written", "path", path)
	}

	stats := httpcache.CacheStats()
	logger.Debug("cache stats", "hits", stats.Hits, "misses", stats.Misses)
}
