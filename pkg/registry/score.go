package registry

import (
	"math"
	"strings"
)

// comparisonPoints maps national-comparison labels onto the 0–5 rating
// scale, checked in order.
var comparisonPoints = []struct {
	word string
	pts  float64
}{
	{"below", 5},
	{"same", 3},
	{"above", 1},
}

// comparison reads labels like "Below the national average" or "Same as
// the national average".
func comparison(f Field) (float64, bool) {
	if !f.Present {
		return 0, false
	}
	s := strings.ToLower(strings.TrimSpace(f.Raw))
	for _, c := range comparisonPoints {
		if strings.Contains(s, c.word) {
			return c.pts, true
		}
	}
	return 0, false
}

// Score averages the indicators that parse. Missing and non-numeric
// indicators are skipped, not counted as zero. Score returns nil when no
// indicator parses. The result is rounded to two decimals.
func (r *Record) Score() *float64 {
	if r == nil {
		return nil
	}
	var sum float64
	var n int
	for _, f := range []Field{r.OverallRating, r.PatientExperienceRating} {
		if v, ok := f.Float(); ok {
			sum += v
			n++
		}
	}
	for _, f := range []Field{r.MortalityComparison, r.SafetyComparison, r.ReadmissionComparison, r.PatientExperienceComparison} {
		if v, ok := comparison(f); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum/float64(n)*100) / 100
	return &avg
}
