package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

type mockTransport struct {
	mockURL string
}

func (t *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.mockURL[7:] // Strip "http://"
	return http.DefaultTransport.RoundTrip(req)
}

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Search</title>
<item><title>UCSF opens new hospital wing</title><link>https://news.example/a</link>
 <pubDate>Tue, 01 Oct 2024 07:00:00 GMT</pubDate>
 <description>&lt;a href="https://news.example/a"&gt;UCSF opens new hospital wing&lt;/a&gt;</description>
 <source url="https://sfchronicle.com">San Francisco Chronicle</source></item>
<item><title>Nurses rally at Parnassus campus</title><link>https://news.example/b</link><pubDate>not a date</pubDate></item>
<item><title></title><link>https://news.example/empty</link></item>
<item><title>Third</title><link>https://news.example/c</link></item>
</channel></rss>`

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != `"UCSF Medical Center" San Francisco` {
			t.Errorf("q = %s", q)
		}
		_, _ = w.Write([]byte(feed)) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c, err := New(context.Background(), WithLimit(2))
	if err != nil {
		t.Fatal(err)
	}
	c.httpClient.Transport = &mockTransport{mockURL: server.URL}

	items := c.Fetch(context.Background(), signal.Identity{Name: "UCSF Medical Center", City: "San Francisco"})
	want := []signal.Item{
		{
			Source: signal.News, Strategy: "name-with-location", Type: signal.TypeNews,
			Title: "UCSF opens new hospital wing", Author: "San Francisco Chronicle",
			Content: "UCSF opens new hospital wing", URL: "https://news.example/a",
			Published: "2024-10-01T07:00:00Z",
		},
		{
			Source: signal.News, Strategy: "name-with-location", Type: signal.TypeNews,
			Title: "Nurses rally at Parnassus campus", URL: "https://news.example/b", Published: "not a date",
		},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFeedLimitSkipsUntitled(t *testing.T) {
	items, err := parseFeed([]byte(feed), DefaultLimit)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 || items[2].Title != "Third" {
		t.Errorf("parseFeed() = %+v", items)
	}
}

func TestParseFeedMalformed(t *testing.T) {
	_, err := parseFeed([]byte("<rss><channel><item>"), DefaultLimit)
	if !errors.Is(err, signal.ErrUnparseable) {
		t.Errorf("error = %v, want ErrUnparseable", err)
	}
}

func TestFetchNameOnlyWithoutCity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "Mercy General" {
			t.Errorf("q = %q", q)
		}
		_, _ = w.Write([]byte(feed)) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c, err := New(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	c.httpClient.Transport = &mockTransport{mockURL: server.URL}

	items := c.Fetch(context.Background(), signal.Identity{Query: "Mercy General"})
	if len(items) != 3 || items[0].Strategy != "name-only" {
		t.Fatalf("items = %+v", items)
	}
}
