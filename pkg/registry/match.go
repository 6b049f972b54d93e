package registry

import (
	"fmt"
	"strings"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/normalize"
)

// DefaultThreshold is the minimum Similarity for a scored match. The same
// cutoff is used anywhere a candidate business is pre-selected by name.
const DefaultThreshold = 0.90

// MatchCode classifies a MatchResult.
type MatchCode string

// Match outcomes.
const (
	Scored       MatchCode = "scored"         // similarity cleared the threshold
	Substring    MatchCode = "substring"      // accepted by literal substring fallback
	NoData       MatchCode = "no-data"        // registry is empty
	NoLocation   MatchCode = "no-location"    // city/state filter left nothing
	NoNameColumn MatchCode = "no-name-column" // registry has no name-like column
	NoMatch      MatchCode = "no-match"
)

// Query is a user's free-text lookup.
type Query struct {
	Name  string
	City  string `json:",omitempty"`
	State string `json:",omitempty"`
}

// MatchResult is the outcome of resolving a Query.
type MatchResult struct {
	Record  *Record   `json:",omitempty"`
	Column  string    `json:",omitempty"` // name column the match was made on
	Message string
	Code    MatchCode
	Score   float64 `json:",omitempty"`
	Matched bool
}

// Matcher resolves names against a Registry.
type Matcher struct {
	// Threshold is the minimum similarity accepted; zero means DefaultThreshold.
	Threshold float64
}

// Match resolves q using DefaultThreshold.
func Match(reg *Registry, q Query) *MatchResult {
	return Matcher{}.Match(reg, q)
}

// Match resolves q against reg. It never fails: every outcome, including
// empty data, is reported through the MatchResult code and message.
func (m Matcher) Match(reg *Registry, q Query) *MatchResult {
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	if reg.Len() == 0 {
		return &MatchResult{Code: NoData, Message: "no data loaded."}
	}

	candidates := filterLocation(reg.Records(), q.City, q.State)
	if len(candidates) == 0 {
		return &MatchResult{
			Code:    NoLocation,
			Message: fmt.Sprintf("no facilities found for that location (%s)", locationLabel(q.City, q.State)),
		}
	}

	col := reg.NameColumn()
	if col == "" {
		return &MatchResult{Code: NoNameColumn, Message: "registry has no name column"}
	}

	want := normalize.Name(q.Name)
	var best *Record
	bestScore := 0.0
	if want != "" {
		for _, rec := range candidates {
			s := Similarity(want, normalize.Name(rec.Column(col)))
			// Strict > keeps the first record on ties.
			if s > bestScore {
				best, bestScore = rec, s
			}
		}
	}
	if best != nil && bestScore >= threshold {
		return &MatchResult{
			Matched: true,
			Record:  best,
			Column:  col,
			Code:    Scored,
			Score:   bestScore,
			Message: fmt.Sprintf("matched %q (score %.2f)", best.Column(col), bestScore),
		}
	}

	if needle := strings.ToLower(strings.TrimSpace(q.Name)); needle != "" {
		for _, rec := range candidates {
			name := rec.Column(col)
			if strings.Contains(strings.ToLower(name), needle) {
				return &MatchResult{
					Matched: true,
					Record:  rec,
					Column:  col,
					Code:    Substring,
					Message: fmt.Sprintf("substring fallback: %q (not a scored match)", name),
				}
			}
		}
	}

	return &MatchResult{Code: NoMatch, Message: "no match found"}
}

func filterLocation(recs []*Record, city, state string) []*Record {
	city, state = strings.TrimSpace(city), strings.TrimSpace(state)
	if city == "" && state == "" {
		return recs
	}
	var out []*Record
	for _, r := range recs {
		if state != "" && !strings.EqualFold(strings.TrimSpace(r.State), state) {
			continue
		}
		if city != "" && !strings.EqualFold(strings.TrimSpace(r.City), city) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func locationLabel(city, state string) string {
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	default:
		return state
	}
}
