package yelp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/htmlutil"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/httpcache"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
	"golang.org/x/net/html"
)

func (c *Client) fetchSearchPage(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	link, err := c.searchLink(ctx, id)
	if err != nil || link == "" {
		return nil, err
	}
	c.logger.DebugContext(ctx, "review-site search hit", "url", link)
	return c.scrapePage(ctx, link)
}

// searchLink returns the first business page on the site's search results,
// or "" when there is none.
func (c *Client) searchLink(ctx context.Context, id signal.Identity) (string, error) {
	params := url.Values{"find_desc": {id.Label()}, "find_loc": {c.searchLocation(id)}}
	body, err := c.get(ctx, searchPageURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return "", err
	}
	link := firstBusinessLink(doc)
	if link == "" && htmlutil.IsBlocked(string(body)) {
		return "", signal.ErrBlocked
	}
	return link, nil
}

// businessURL returns the known business page, or the one found through the
// search page. The search response is cached, so repeating the lookup after
// the search-page strategy costs no request.
func (c *Client) businessURL(ctx context.Context, id signal.Identity) (string, error) {
	if id.ReviewSiteURL != "" {
		return id.ReviewSiteURL, nil
	}
	link, err := c.searchLink(ctx, id)
	if err != nil {
		return "", err
	}
	if link == "" {
		return "", fmt.Errorf("no business page found: %w", signal.ErrSkipped)
	}
	return link, nil
}

func (c *Client) fetchBusinessPage(ctx context.Context, id signal.Identity) ([]signal.Item, error) {
	pageURL, err := c.businessURL(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.scrapePage(ctx, pageURL)
}

func (c *Client) scrapePage(ctx context.Context, pageURL string) ([]signal.Item, error) {
	body, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	items, err := parseBusinessPage(body, pageURL, c.pageLimit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && htmlutil.IsBlocked(string(body)) {
		return nil, signal.ErrBlocked
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := httpcache.NewRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	return httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
}

// firstBusinessLink returns the first organic /biz/ link on a search page.
// Sponsored results go through /adredir and are ignored.
func firstBusinessLink(doc *html.Node) string {
	a := htmlutil.Find(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "a" {
			return false
		}
		href, _ := htmlutil.Attr(n, "href")
		return strings.HasPrefix(href, "/biz/")
	})
	if a == nil {
		return ""
	}
	href, _ := htmlutil.Attr(a, "href")
	return siteBase + stripQuery(href)
}

// ldBusiness is the subset of a schema.org LocalBusiness block we read.
type ldBusiness struct {
	Type            any        `json:"@type"`
	Name            string     `json:"name"`
	Telephone       string     `json:"telephone"`
	Address         ldAddress  `json:"address"`
	AggregateRating *ldRating  `json:"aggregateRating"`
	Review          []ldReview `json:"review"`
}

type ldAddress struct {
	Street   string `json:"streetAddress"`
	Locality string `json:"addressLocality"`
	Region   string `json:"addressRegion"`
	Postal   string `json:"postalCode"`
}

func (a ldAddress) String() string {
	var parts []string
	for _, p := range []string{a.Street, a.Locality, strings.TrimSpace(a.Region + " " + a.Postal)} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type ldRating struct {
	RatingValue json.Number `json:"ratingValue"`
	ReviewCount json.Number `json:"reviewCount"`
}

type ldReview struct {
	Author        ldAuthor  `json:"author"`
	ReviewRating  *ldRating `json:"reviewRating"`
	Description   string    `json:"description"`
	ReviewBody    string    `json:"reviewBody"`
	DatePublished string    `json:"datePublished"`
}

// ldAuthor accepts either a plain name or a Person object.
type ldAuthor string

func (a *ldAuthor) UnmarshalJSON(b []byte) error {
	var s string
	if json.Unmarshal(b, &s) == nil {
		*a = ldAuthor(s)
		return nil
	}
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = ldAuthor(p.Name)
	return nil
}

// parseBusinessPage reads the business profile and reviews from structured
// data, falling back to the rendered review markup.
func parseBusinessPage(body []byte, pageURL string, limit int) ([]signal.Item, error) {
	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, err
	}
	pageURL = stripQuery(pageURL)

	var items []signal.Item
	biz := findLDBusiness(doc)
	if biz != nil {
		it := signal.Item{
			Type:    signal.TypePlace,
			Title:   biz.Name,
			Content: biz.Address.String(),
			URL:     pageURL,
		}
		if biz.Telephone != "" {
			it.Fields = map[string]string{"phone": biz.Telephone}
		}
		if r := biz.AggregateRating; r != nil {
			it.Rating = number(r.RatingValue)
			if n := r.ReviewCount.String(); n != "" {
				if it.Fields == nil {
					it.Fields = map[string]string{}
				}
				it.Fields["review_count"] = n
			}
		}
		items = append(items, it)
		for _, r := range biz.Review {
			if len(items)-1 >= limit {
				break
			}
			text := r.ReviewBody
			if text == "" {
				text = r.Description
			}
			rev := signal.Item{
				Type:      signal.TypeReview,
				Title:     biz.Name,
				Author:    string(r.Author),
				Content:   strings.TrimSpace(text),
				URL:       pageURL,
				Published: r.DatePublished,
			}
			if r.ReviewRating != nil {
				rev.Rating = number(r.ReviewRating.RatingValue)
			}
			items = append(items, rev)
		}
	}

	if len(items) <= 1 {
		title := htmlutil.H1(doc)
		if biz != nil {
			title = biz.Name
		}
		items = append(items, domReviews(doc, title, pageURL, limit)...)
	}
	return items, nil
}

func findLDBusiness(doc *html.Node) *ldBusiness {
	for _, s := range htmlutil.FindAll(doc, htmlutil.AttrEquals("script", "type", "application/ld+json")) {
		if s.FirstChild == nil {
			continue
		}
		raw := []byte(s.FirstChild.Data)
		var blocks []ldBusiness
		if err := json.Unmarshal(raw, &blocks); err != nil {
			var one ldBusiness
			if json.Unmarshal(raw, &one) != nil {
				continue
			}
			blocks = []ldBusiness{one}
		}
		for i := range blocks {
			if blocks[i].Name != "" && (blocks[i].AggregateRating != nil || len(blocks[i].Review) > 0) {
				return &blocks[i]
			}
		}
	}
	return nil
}

// domReviews reads review blocks from the page markup. Class names carry a
// build hash, so only their stable prefixes are matched.
func domReviews(doc *html.Node, title, pageURL string, limit int) []signal.Item {
	var items []signal.Item
	for _, block := range htmlutil.FindAll(doc, htmlutil.ClassPrefix("div", "review__")) {
		if len(items) >= limit {
			break
		}
		text := htmlutil.Text(htmlutil.Find(block, htmlutil.ClassPrefix("span", "raw__")))
		if text == "" {
			continue
		}
		author := htmlutil.Text(htmlutil.Find(block, htmlutil.Class("span", "fs-block")))
		if author == "" {
			author = "Anonymous"
		}
		items = append(items, signal.Item{
			Type:    signal.TypeReview,
			Title:   title,
			Author:  author,
			Content: text,
			URL:     pageURL,
			Rating:  starRating(block),
		})
	}
	return items
}

// starRating parses aria-labels like "4 star rating".
func starRating(block *html.Node) *float64 {
	n := htmlutil.Find(block, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		label, ok := htmlutil.Attr(n, "aria-label")
		return ok && strings.Contains(label, "star rating")
	})
	label, _ := htmlutil.Attr(n, "aria-label")
	f := strings.Fields(label)
	if len(f) == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return nil
	}
	return &v
}

func number(n json.Number) *float64 {
	v, err := n.Float64()
	if err != nil {
		return nil
	}
	return &v
}
