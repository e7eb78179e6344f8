package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/scobbydave/newsdesk/internal/config"
	"github.com/scobbydave/newsdesk/internal/metrics"
	"github.com/scobbydave/newsdesk/internal/newscache"
	"github.com/scobbydave/newsdesk/internal/quota"
	"github.com/scobbydave/newsdesk/internal/scheduler"
)

func newTestServer(t *testing.T, categories map[string]CategoryRoute) (*Server, *newscache.Store, *quota.Tracker) {
	t.Helper()

	tracker := quota.New(quota.Config{MonthlyCeiling: 250, DailyCeiling: 8}, quota.NewMemoryStore())
	store := newscache.NewStore(10)
	fetcher := newscache.NewFetcher(newscache.FetcherConfig{}, store, tracker)
	sched := scheduler.New(scheduler.Config{
		StartHour: 9,
		EndHour:   17,
		Anchors:   []string{"09:00", "13:00", "17:00"},
	}, nil, store, tracker)

	s := New(config.ServerConfig{Addr: ":0"}, fetcher, store, tracker, sched,
		categories, metrics.Handler(metrics.NewCollector(tracker, fetcher, store)))
	return s, store, tracker
}

func TestNewsEndpoint(t *testing.T) {
	fetch := func(ctx context.Context) ([]newscache.Article, error) {
		return []newscache.Article{{Title: "Headline", URL: "https://example.com"}}, nil
	}
	s, _, _ := newTestServer(t, map[string]CategoryRoute{
		"safety": {TTL: time.Hour, Fetch: fetch},
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/news/safety", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Category string              `json:"category"`
		Count    int                 `json:"count"`
		Articles []newscache.Article `json:"articles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Category != "safety" || resp.Count != 1 {
		t.Errorf("response = %+v, want safety/1", resp)
	}
}

func TestNewsEndpointUnknownCategory(t *testing.T) {
	s, _, _ := newTestServer(t, map[string]CategoryRoute{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/news/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestNewsEndpointDegradesNotErrors(t *testing.T) {
	tracker := quota.New(quota.Config{MonthlyCeiling: 1, DailyCeiling: 1}, quota.NewMemoryStore())
	tracker.Record() // exhaust

	store := newscache.NewStore(10)
	fetcher := newscache.NewFetcher(newscache.FetcherConfig{}, store, tracker)
	sched := scheduler.New(scheduler.Config{Anchors: []string{"09:00"}}, nil, store, tracker)

	s := New(config.ServerConfig{}, fetcher, store, tracker, sched,
		map[string]CategoryRoute{
			"safety": {TTL: time.Hour, Fetch: func(ctx context.Context) ([]newscache.Article, error) {
				t.Fatal("fetch must not run with exhausted quota")
				return nil, nil
			}},
		}, metrics.Handler(metrics.NewCollector(tracker, fetcher, store)))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/news/safety", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with exhausted quota", rec.Code)
	}

	var resp struct {
		Count    int                 `json:"count"`
		Articles []newscache.Article `json:"articles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 || resp.Articles == nil {
		t.Errorf("response = %+v, want empty article list", resp)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, store, tracker := newTestServer(t, map[string]CategoryRoute{})
	store.Put("general", []newscache.Article{{Title: "x"}}, time.Hour, time.Now())
	tracker.Record()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Quota struct {
			Used      int `json:"used"`
			Remaining int `json:"remaining"`
		} `json:"quota"`
		Cache map[string]struct {
			Articles int  `json:"articles"`
			Fresh    bool `json:"fresh"`
		} `json:"cache"`
		NextWindow time.Time `json:"next_refresh_window"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Quota.Used != 1 || resp.Quota.Remaining != 249 {
		t.Errorf("quota = %+v, want used 1 remaining 249", resp.Quota)
	}
	entry, ok := resp.Cache["general"]
	if !ok || entry.Articles != 1 || !entry.Fresh {
		t.Errorf("cache entry = %+v, want fresh with 1 article", entry)
	}
	if resp.NextWindow.IsZero() {
		t.Error("next refresh window missing")
	}
}

func TestPurgeEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t, map[string]CategoryRoute{})
	store.Put("general", []newscache.Article{{Title: "x"}}, time.Hour, time.Now())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/cache/purge", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if store.Len() != 0 {
		t.Errorf("cache len = %d after purge, want 0", store.Len())
	}
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
