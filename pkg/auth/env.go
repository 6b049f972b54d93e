package auth

import (
	"context"
	"os"
	"slices"
)

// serviceEnvVars maps service names to env var name -> credential name.
var serviceEnvVars = map[string]map[string]string{
	Google: {
		"GOOGLE_API_KEY": KeyAPI,
	},
	Yelp: {
		"YELP_API_KEY": KeyAPI,
	},
}

// EnvSource reads credentials from environment variables.
type EnvSource struct{}

// Credentials returns credentials for the service from environment variables.
func (EnvSource) Credentials(_ context.Context, service string) (map[string]string, error) {
	envMap, ok := serviceEnvVars[service]
	if !ok {
		return nil, nil //nolint:nilnil // no credentials for unknown service is not an error
	}

	creds := make(map[string]string)
	for envVar, name := range envMap {
		if value := os.Getenv(envVar); value != "" {
			creds[name] = value
		}
	}

	if len(creds) == 0 {
		return nil, nil //nolint:nilnil // no env vars set is not an error
	}
	return creds, nil
}

// EnvVarsForService returns the environment variable names for a service,
// sorted. This is useful for generating help messages.
func EnvVarsForService(service string) []string {
	envMap, ok := serviceEnvVars[service]
	if !ok {
		return nil
	}

	vars := make([]string, 0, len(envMap))
	for envVar := range envMap {
		vars = append(vars, envVar)
	}
	slices.Sort(vars)
	return vars
}
