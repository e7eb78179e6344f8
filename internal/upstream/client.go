// Package upstream provides fetch functions for the third-party news
// providers. Retry and circuit breaking live here, on the provider side of
// the fetch boundary; the cache layer never retries on its own.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/scobbydave/newsdesk/internal/newscache"
)

// Config holds news provider settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per-attempt HTTP timeout (default 8s)
	MaxRetries  uint64        // retries inside one fetch (default 2)
	MaxFailures uint32        // consecutive failures before the breaker opens (default 5)
	OpenTimeout time.Duration // breaker open duration (default 60s)
}

// Client fetches search results from a JSON news endpoint. A shared
// circuit breaker keeps a flapping provider from eating retries (and, with
// count_failures enabled, quota) across categories.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]newscache.Article]
}

// NewClient creates an upstream news client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]newscache.Article](gobreaker.Settings{
		Name:    "news-upstream",
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

// FetchFunc returns a fetch function bound to one search query, suitable
// for newscache.Fetcher.Get.
func (c *Client) FetchFunc(query string) newscache.FetchFunc {
	return func(ctx context.Context) ([]newscache.Article, error) {
		return c.Search(ctx, query)
	}
}

// Search runs one budgeted provider call: breaker around a bounded
// exponential-backoff retry around the HTTP request.
func (c *Client) Search(ctx context.Context, query string) ([]newscache.Article, error) {
	return c.breaker.Execute(func() ([]newscache.Article, error) {
		bo := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
		return backoff.RetryWithData(func() ([]newscache.Article, error) {
			return c.doSearch(ctx, query)
		}, bo)
	})
}

func (c *Client) doSearch(ctx context.Context, query string) ([]newscache.Article, error) {
	u := c.cfg.BaseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("news provider returned status %d", resp.StatusCode)
		// Client errors (bad key, provider-side rate limit) won't improve
		// on retry; only retry server-side failures.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode news response: %w", err))
	}

	articles := make([]newscache.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		articles = append(articles, newscache.Article{
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source.Name,
			Description: a.Description,
			PublishedAt: published,
		})
	}
	return articles, nil
}

// searchResponse mirrors the provider's wire format.
type searchResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}
