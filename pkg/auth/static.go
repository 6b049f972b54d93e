package auth

import (
	"context"
	"maps"
)

// StaticSource provides the same credentials for every service it is
// configured for. It backs command-line overrides and tests.
type StaticSource struct {
	creds map[string]map[string]string
}

// NewStaticSource creates a source from per-service credential maps.
func NewStaticSource(creds map[string]map[string]string) *StaticSource {
	return &StaticSource{creds: creds}
}

// NewAPIKeySource creates a source holding a single API key for service.
// An empty key yields a source that never answers.
func NewAPIKeySource(service, key string) *StaticSource {
	if key == "" {
		return &StaticSource{}
	}
	return &StaticSource{creds: map[string]map[string]string{service: {KeyAPI: key}}}
}

// Credentials returns a copy of the configured credentials.
func (s *StaticSource) Credentials(_ context.Context, service string) (map[string]string, error) {
	c := s.creds[service]
	if len(c) == 0 {
		return nil, nil //nolint:nilnil // empty static source is not an error
	}
	return maps.Clone(c), nil
}
