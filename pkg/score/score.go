// Package score blends the registry-derived quality score with a live rating.
package score

import "math"

// Weights applied when both scores are present.
const (
	RegistryWeight = 0.5
	LiveWeight     = 0.5
)

// Reconcile combines a registry score and a live score, each on the 0–5
// scale. With both present it returns their weighted mean; with one it
// returns that one; with neither it returns nil. Results are rounded to two
// decimals.
func Reconcile(registry, live *float64) *float64 {
	switch {
	case registry != nil && live != nil:
		return Round2(LiveWeight**live + RegistryWeight**registry)
	case registry != nil:
		return Round2(*registry)
	case live != nil:
		return Round2(*live)
	default:
		return nil
	}
}

// Round2 rounds v to two decimal places.
func Round2(v float64) *float64 {
	r := math.Round(v*100) / 100
	return &r
}
