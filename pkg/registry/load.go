package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
)

// DefaultURL is the CMS Hospital General Information download.
const DefaultURL = "https://data.cms.gov/provider-data/sites/default/files/resources/" +
	"893c372430d9d71a1c52737d01239d47_1753409109/Hospital_General_Information.csv"

// Loader fetches the registry from a remote CSV, falling back to a local copy.
type Loader struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	url        string
	backupPath string
}

// Option configures a Loader.
type Option func(*config)

type config struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	url        string
	backupPath string
}

// WithURL sets the remote CSV location. An empty URL disables the remote step.
func WithURL(u string) Option {
	return func(c *config) { c.url = u }
}

// WithBackupPath sets the local CSV used when the remote copy is unavailable.
func WithBackupPath(p string) Option {
	return func(c *config) { c.backupPath = p }
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithHTTPClient sets the HTTP client used for the remote download.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	cfg := &config{logger: slog.Default(), url: DefaultURL}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = httpcache.NewClient()
	}
	return &Loader{
		httpClient: cfg.httpClient,
		cache:      cfg.cache,
		logger:     cfg.logger,
		url:        cfg.url,
		backupPath: cfg.backupPath,
	}
}

// Load returns a freshly loaded Registry. It tries the remote CSV, then the
// backup file. If both fail it logs a warning and returns an empty Registry,
// which the Matcher reports as "no data loaded."
//
// Each call reloads; callers hold on to the result for the session.
func (l *Loader) Load(ctx context.Context) *Registry {
	reg, err := l.load(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "registry unavailable, continuing with empty registry", "error", err)
		return Empty()
	}
	l.logger.InfoContext(ctx, "registry loaded", "source", reg.source, "rows", reg.Len(), "columns", len(reg.columns))
	return reg
}

func (l *Loader) load(ctx context.Context) (*Registry, error) {
	var errs []error

	if l.url != "" {
		reg, err := l.remote(ctx)
		if err == nil {
			reg.source = "remote"
			return reg, nil
		}
		l.logger.DebugContext(ctx, "remote registry failed", "error", err)
		errs = append(errs, fmt.Errorf("remote: %w", err))
	}

	if l.backupPath != "" {
		reg, err := backup(l.backupPath)
		if err == nil {
			reg.source = "backup"
			return reg, nil
		}
		l.logger.DebugContext(ctx, "backup registry failed", "path", l.backupPath, "error", err)
		errs = append(errs, fmt.Errorf("backup: %w", err))
	}

	return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, errors.Join(errs...))
}

func (l *Loader) remote(ctx context.Context) (*Registry, error) {
	req, err := httpcache.NewRequest(ctx, l.url)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv,*/*;q=0.8")
	// Only bodies that decode are cached.
	body, err := httpcache.FetchURLWithValidator(ctx, l.cache, l.httpClient, req, l.logger, func(b []byte) bool {
		_, err := Decode(b)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

func backup(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
