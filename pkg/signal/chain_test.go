package signal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func items(titles ...string) []Item {
	out := make([]Item, 0, len(titles))
	for _, t := range titles {
		out = append(out, Item{Type: TypeNews, Title: t})
	}
	return out
}

func TestAcquireFirstNonEmptyWins(t *testing.T) {
	var calls []string
	strategies := []Strategy{
		{Name: "a", Fetch: func(context.Context, Identity) ([]Item, error) {
			calls = append(calls, "a")
			return nil, nil
		}},
		{Name: "b", Fetch: func(context.Context, Identity) ([]Item, error) {
			calls = append(calls, "b")
			return items("from b"), nil
		}},
		{Name: "c", Fetch: func(context.Context, Identity) ([]Item, error) {
			calls = append(calls, "c")
			return items("from c"), nil
		}},
	}

	got := Acquire(context.Background(), nil, News, strategies, Identity{Query: "UCSF"})

	want := []Item{{Source: News, Strategy: "b", Type: TypeNews, Title: "from b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Acquire() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b"}, calls); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestAcquireSequential(t *testing.T) {
	var running, overlap atomic.Int32
	slow := func(result []Item) func(context.Context, Identity) ([]Item, error) {
		return func(context.Context, Identity) ([]Item, error) {
			if running.Add(1) > 1 {
				overlap.Add(1)
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return result, nil
		}
	}

	var aDone atomic.Bool
	strategies := []Strategy{
		{Name: "a", Fetch: func(ctx context.Context, id Identity) ([]Item, error) {
			defer aDone.Store(true)
			return slow(nil)(ctx, id)
		}},
		{Name: "b", Fetch: func(ctx context.Context, id Identity) ([]Item, error) {
			if !aDone.Load() {
				return nil, errors.New("b started before a finished")
			}
			return slow(items("x"))(ctx, id)
		}},
	}

	got := Acquire(context.Background(), nil, News, strategies, Identity{})
	if len(got) != 1 || got[0].Title != "x" {
		t.Errorf("Acquire() = %+v, want b's item", got)
	}
	if overlap.Load() != 0 {
		t.Error("strategies overlapped")
	}
}

func TestAcquireIsolatesFailures(t *testing.T) {
	tests := []struct {
		name  string
		first func(context.Context, Identity) ([]Item, error)
	}{
		{"error", func(context.Context, Identity) ([]Item, error) {
			return nil, errors.New("connection refused")
		}},
		{"panic", func(context.Context, Identity) ([]Item, error) {
			panic("selector changed")
		}},
		{"skipped", func(context.Context, Identity) ([]Item, error) {
			return nil, fmt.Errorf("no API key: %w", ErrSkipped)
		}},
		{"error with partial items", func(context.Context, Identity) ([]Item, error) {
			return items("partial"), errors.New("truncated")
		}},
		{"nil fetch", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategies := []Strategy{
				{Name: "broken", Fetch: tt.first},
				{Name: "good", Fetch: func(context.Context, Identity) ([]Item, error) {
					return items("X"), nil
				}},
			}
			got := Acquire(context.Background(), nil, ReviewsSite, strategies, Identity{})
			if len(got) != 1 || got[0].Title != "X" || got[0].Strategy != "good" {
				t.Errorf("Acquire() = %+v, want the good strategy's item", got)
			}
		})
	}
}

func TestAcquireAllEmpty(t *testing.T) {
	strategies := []Strategy{
		{Name: "a", Fetch: func(context.Context, Identity) ([]Item, error) { return nil, nil }},
		{Name: "b", Fetch: func(context.Context, Identity) ([]Item, error) { return []Item{}, nil }},
		{Name: "c", Fetch: func(context.Context, Identity) ([]Item, error) { return nil, errors.New("boom") }},
	}
	if got := Acquire(context.Background(), nil, RankingSite, strategies, Identity{}); len(got) != 0 {
		t.Errorf("Acquire() = %+v, want empty", got)
	}
	if got := Acquire(context.Background(), nil, RankingSite, nil, Identity{}); len(got) != 0 {
		t.Errorf("Acquire(no strategies) = %+v, want empty", got)
	}
}

func TestAcquireTimeout(t *testing.T) {
	strategies := []Strategy{
		{Name: "hangs", Timeout: 10 * time.Millisecond, Fetch: func(ctx context.Context, _ Identity) ([]Item, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
		{Name: "fast", Fetch: func(context.Context, Identity) ([]Item, error) {
			return items("fast"), nil
		}},
	}
	got := Acquire(context.Background(), nil, News, strategies, Identity{})
	if len(got) != 1 || got[0].Strategy != "fast" {
		t.Errorf("Acquire() = %+v, want fast strategy result", got)
	}
}

func TestAcquireCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var called bool
	strategies := []Strategy{
		{Name: "a", Fetch: func(context.Context, Identity) ([]Item, error) {
			called = true
			return items("a"), nil
		}},
	}
	if got := Acquire(ctx, nil, News, strategies, Identity{}); len(got) != 0 {
		t.Errorf("Acquire() = %+v, want empty on canceled context", got)
	}
	if called {
		t.Error("strategy ran after cancellation")
	}
}

func TestIdentity(t *testing.T) {
	id := Identity{Query: "ucsf", City: "San Francisco", State: "CA"}
	if id.Label() != "ucsf" {
		t.Errorf("Label() = %q, want query", id.Label())
	}
	id.Name = "UCSF Medical Center"
	if id.Label() != "UCSF Medical Center" {
		t.Errorf("Label() = %q, want name", id.Label())
	}
	if id.Place() != "San Francisco, CA" {
		t.Errorf("Place() = %q", id.Place())
	}
}

func TestBundleCount(t *testing.T) {
	b := Bundle{News: items("a", "b"), ReviewsSite: nil, RankingSite: items("c")}
	if b.Count() != 3 {
		t.Errorf("Count() = %d, want 3", b.Count())
	}
}
