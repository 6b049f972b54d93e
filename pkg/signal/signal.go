// Package signal defines the common types for organization signal fetchers
// and the fallback chain that runs their strategies.
package signal

import (
	"errors"
)

// Common errors returned by source packages.
var (
	ErrSkipped      = errors.New("strategy prerequisites missing")
	ErrNoResults    = errors.New("no results")
	ErrRateLimited  = errors.New("rate limited")
	ErrBlocked      = errors.New("blocked by anti-bot page")
	ErrUnparseable  = errors.New("unexpected response shape")
	ErrAuthRequired = errors.New("authentication required")
)

// Source identifiers used as Bundle keys.
const (
	MapsProfile   = "maps-profile"
	ReviewsSite   = "reviews-site"
	RankingSite   = "ranking-site"
	News          = "news"
	Website       = "website"
	PatientSurvey = "patient-survey"
	WebSearch     = "web-search"
)

// ItemType indicates what kind of signal an Item carries.
type ItemType string

// Item type constants.
const (
	TypeReview    ItemType = "review"
	TypeSnippet   ItemType = "snippet"
	TypePlace     ItemType = "place"
	TypeRanking   ItemType = "ranking"
	TypeSpecialty ItemType = "specialty"
	TypeNews      ItemType = "news"
	TypeAbout     ItemType = "about"
	TypeSurvey    ItemType = "survey"
	TypeHit       ItemType = "hit"
)

// Item is one structured signal about an organization: a review, a news
// headline, a ranking label and so on.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Item struct {
	Source    string            `json:"source"`              // Bundle key the item belongs to
	Strategy  string            `json:"strategy,omitempty"`  // strategy that produced it
	Type      ItemType          `json:"type"`                // kind of signal
	Title     string            `json:"title,omitempty"`     // headline, business name, rank label
	Author    string            `json:"author,omitempty"`    // reviewer or publisher
	Content   string            `json:"content,omitempty"`   // body text
	URL       string            `json:"url,omitempty"`       // link to the original
	Category  string            `json:"category,omitempty"`  // specialty, place type, survey measure
	Rating    *float64          `json:"rating,omitempty"`    // 0–5 where the source rates
	Published string            `json:"published,omitempty"` // source timestamp, as given
	Fields    map[string]string `json:"fields,omitempty"`    // source-specific extras
}

// Bundle holds each source's items, keyed by source identifier. A missing
// or empty entry means the source produced nothing.
type Bundle map[string][]Item

// Add stores items under source. Empty results are not recorded.
func (b Bundle) Add(source string, items []Item) {
	if len(items) == 0 {
		return
	}
	b[source] = items
}

// Count returns the total number of items.
func (b Bundle) Count() int {
	n := 0
	for _, items := range b {
		n += len(items)
	}
	return n
}

// Identity is what fetchers know about the organization being profiled.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Identity struct {
	Query string // text the user typed
	Name  string // canonical name, registry name when matched
	City  string
	State string
	ID    string // registry certification number

	Website       string // organization website, once known
	ReviewSiteURL string // user-supplied review-site business page
	Location      string // location hint for review-site search
}

// Label returns the best available display name.
func (id Identity) Label() string {
	if id.Name != "" {
		return id.Name
	}
	return id.Query
}

// Place renders "City, ST" from whatever parts are present.
func (id Identity) Place() string {
	switch {
	case id.City != "" && id.State != "":
		return id.City + ", " + id.State
	case id.City != "":
		return id.City
	default:
		return id.State
	}
}
