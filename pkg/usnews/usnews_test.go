package usnews

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(context.Background())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.httpClient.Transport = &mockTransport{mockURL: server.URL}
	return c
}

const rankedPage = `<html><body>
<div data-test-id="search-result">
  <span>#3 in California</span>
  <h3>UCSF Health-UCSF Medical Center</h3>
</div>
<ul>
  <li data-test-id="specialty">Cancer</li>
  <li data-test-id="specialty">Neurology &amp; Neurosurgery</li>
  <li data-test-id="specialty"> </li>
</ul>
</body></html>`

func TestFetchWithCity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/best-hospitals/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.RawQuery; got != "hospital_name=UCSF+Medical+Center+San+Francisco" {
			t.Errorf("query = %s", got)
		}
		_, _ = w.Write([]byte(rankedPage)) //nolint:errcheck // test helper
	})

	items := c.Fetch(context.Background(), signal.Identity{Name: "UCSF Medical Center", City: "San Francisco"})
	if got := Rank(items); got != "#3 in California" {
		t.Errorf("Rank() = %q", got)
	}
	if diff := cmp.Diff([]string{"Cancer", "Neurology & Neurosurgery"}, Specialties(items)); diff != "" {
		t.Errorf("Specialties() mismatch (-want +got):\n%s", diff)
	}
	if items[0].Strategy != "search-with-city" || items[0].Source != signal.RankingSite {
		t.Errorf("provenance = %q/%q", items[0].Source, items[0].Strategy)
	}
	if items[0].Content != "UCSF Health-UCSF Medical Center" {
		t.Errorf("ranked name = %q", items[0].Content)
	}
}

func TestFetchFallsBackToNameOnly(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("hospital_name")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()
		if q == "Mercy General" {
			_, _ = w.Write([]byte(`<div data-test-id="search-result"><span></span></div>`)) //nolint:errcheck // test helper
			return
		}
		_, _ = w.Write([]byte(`<html><body>No hospitals match.</body></html>`)) //nolint:errcheck // test helper
	})

	items := c.Fetch(context.Background(), signal.Identity{Name: "Mercy General", City: "Nowhere"})

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"Mercy General Nowhere", "Mercy General"}, queries); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
	if len(items) != 1 || items[0].Strategy != "search-name-only" {
		t.Fatalf("items = %+v", items)
	}
	if Rank(items) != NotRanked {
		t.Errorf("Rank() = %q, want %q for an empty badge", Rank(items), NotRanked)
	}
}

func TestRankNotFound(t *testing.T) {
	if got := Rank(nil); got != NotRanked {
		t.Errorf("Rank(nil) = %q, want %q", got, NotRanked)
	}
	if got := Specialties(nil); got != nil {
		t.Errorf("Specialties(nil) = %v, want nil", got)
	}
}

func TestSearchWithoutCitySkipped(t *testing.T) {
	c, err := New(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.searchWithCity(context.Background(), signal.Identity{Name: "Mercy"}); !errors.Is(err, signal.ErrSkipped) {
		t.Errorf("searchWithCity() error = %v, want ErrSkipped", err)
	}
	if _, err := c.searchNameOnly(context.Background(), signal.Identity{}); !errors.Is(err, signal.ErrSkipped) {
		t.Errorf("searchNameOnly() error = %v, want ErrSkipped", err)
	}
}
