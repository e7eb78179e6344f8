package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSearchMapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "mining safety" {
			t.Errorf("query = %q, want %q", got, "mining safety")
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("api key header = %q, want test-key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "ok",
			"articles": [
				{
					"source": {"name": "Example Wire"},
					"title": "Headline",
					"description": "Details",
					"url": "https://example.com/a",
					"publishedAt": "2026-03-10T08:00:00Z"
				}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})

	articles, err := c.Search(context.Background(), "mining safety")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("articles = %d, want 1", len(articles))
	}

	a := articles[0]
	if a.Title != "Headline" || a.Source != "Example Wire" || a.URL != "https://example.com/a" {
		t.Errorf("unexpected article: %+v", a)
	}
	if want := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC); !a.PublishedAt.Equal(want) {
		t.Errorf("published at = %v, want %v", a.PublishedAt, want)
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxRetries: 2})

	if _, err := c.Search(context.Background(), "x"); err != nil {
		t.Fatalf("search should succeed on the third attempt: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
}

func TestSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxRetries: 5})

	if _, err := c.Search(context.Background(), "x"); err == nil {
		t.Fatal("expected error for 401")
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d for a 401, want 1", calls.Load())
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := c.Search(context.Background(), "x"); err == nil {
			t.Fatal("expected failure")
		}
	}

	srv.Close() // breaker should reject before dialing
	if _, err := c.Search(context.Background(), "x"); err == nil {
		t.Fatal("expected open breaker to reject the call")
	}
}

func TestFetchFuncBindsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "jobs" {
			t.Errorf("query = %q, want jobs", got)
		}
		w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer srv.Close()

	fetch := NewClient(Config{BaseURL: srv.URL}).FetchFunc("jobs")
	if _, err := fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}
