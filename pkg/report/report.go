// Package report assembles a profile report from the registry match, the
// fetched signals and the reconciled score, and exports it as JSON or as a
// multi-sheet workbook.
package report

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/normalize"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/registry"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/usnews"
)

// Report is the assembled profile of one organization.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Report struct {
	RequestID   string           `json:"request_id"`
	Query       registry.Query   `json:"query"`
	Normalized  string           `json:"normalized"`
	Match       Match            `json:"match"`
	Facility    *registry.Record `json:"facility,omitempty"`
	Hint        Location         `json:"location_hint,omitzero"`
	Scores      Scores           `json:"scores"`
	Ranking     string           `json:"ranking"`
	Signals     signal.Bundle    `json:"signals"`
	GeneratedAt time.Time        `json:"generated_at"`

	// Columns is the registry header order, used for the facility sheet.
	Columns []string `json:"-"`
}

// Match summarizes the registry lookup.
type Match struct {
	Code    registry.MatchCode `json:"code"`
	Message string             `json:"message"`
	Column  string             `json:"column,omitempty"`
	Score   float64            `json:"score,omitempty"`
	Matched bool               `json:"matched"`
}

// Location is a city/state pair.
type Location struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// Scores holds the registry-derived, live and reconciled scores. Nil means
// the score could not be computed.
type Scores struct {
	Registry  *float64 `json:"registry"`
	Live      *float64 `json:"live"`
	Composite *float64 `json:"composite"`
}

// MatchFrom converts a registry match result.
func MatchFrom(m *registry.MatchResult) Match {
	if m == nil {
		return Match{Code: registry.NoData, Message: "no data loaded."}
	}
	return Match{Code: m.Code, Message: m.Message, Column: m.Column, Score: m.Score, Matched: m.Matched}
}

// Items returns the items for one source.
func (r *Report) Items(source string) []signal.Item {
	if r == nil {
		return nil
	}
	return r.Signals[source]
}

// RankLabel returns the ranking label, "N/A" when none was found.
func (r *Report) RankLabel() string {
	if r.Ranking != "" {
		return r.Ranking
	}
	return usnews.Rank(r.Items(signal.RankingSite))
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// FileName returns the workbook file name for an organization:
// "<normalized name>_profile.xlsx".
func FileName(org string) string {
	base := strings.ReplaceAll(normalize.Name(org), " ", "_")
	if base == "" {
		base = "organization"
	}
	return base + "_profile.xlsx"
}

// WorstFirst returns reviews ordered by ascending rating. Unrated items keep
// their order and go last.
func WorstFirst(items []signal.Item) []signal.Item {
	out := make([]signal.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Rating, out[j].Rating
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return out
}

func ofType(items []signal.Item, types ...signal.ItemType) []signal.Item {
	var out []signal.Item
	for _, it := range items {
		for _, t := range types {
			if it.Type == t {
				out = append(out, it)
				break
			}
		}
	}
	return out
}
