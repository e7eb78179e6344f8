package newscache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/scobbydave/newsdesk/internal/logging"
	"github.com/scobbydave/newsdesk/internal/quota"
)

// FetchFunc performs one upstream call. Retry policy, if any, belongs to
// the function itself, not to the fetcher.
type FetchFunc func(ctx context.Context) ([]Article, error)

// FetcherConfig holds fetcher settings.
type FetcherConfig struct {
	FetchTimeout  time.Duration // per-fetch upper bound (default 8s)
	CountFailures bool          // charge failed fetches to the quota
}

// FetcherStats is a snapshot of fetcher counters.
type FetcherStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Fetches       int64 `json:"fetches"`
	FetchFailures int64 `json:"fetch_failures"`
	QuotaDenied   int64 `json:"quota_denied"`
	Coalesced     int64 `json:"coalesced"`
}

// Fetcher is the single entry point callers use for category data. It
// consults the cache for freshness and the quota tracker for budget, and
// invokes the upstream fetch only when both allow it. Callers always get
// some payload back: fresh, stale, or empty, in that order of preference.
// The returned slice is a shared read-only view and must not be mutated.
type Fetcher struct {
	store   *Store
	tracker *quota.Tracker
	timeout time.Duration
	count   bool
	group   singleflight.Group
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	fetches   atomic.Int64
	failures  atomic.Int64
	denied    atomic.Int64
	coalesced atomic.Int64
}

// NewFetcher creates a fetcher over the given store and tracker.
func NewFetcher(cfg FetcherConfig, store *Store, tracker *quota.Tracker) *Fetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Fetcher{
		store:   store,
		tracker: tracker,
		timeout: timeout,
		count:   cfg.CountFailures,
		now:     time.Now,
	}
}

// Get returns the payload for a category. Concurrent callers for the same
// category share a single in-flight fetch; a duplicate upstream call would
// silently double-spend the daily budget, so this is a correctness rule,
// not an optimization.
func (f *Fetcher) Get(ctx context.Context, category string, ttl time.Duration, fetch FetchFunc) []Article {
	if e, ok := f.store.Get(category); ok && f.now().Before(e.ExpiresAt) {
		f.hits.Add(1)
		return e.Articles
	}
	f.misses.Add(1)

	// Detach the flight from the first caller's cancellation so one client
	// disconnecting doesn't abort the shared fetch.
	detached := context.WithoutCancel(ctx)

	ch := f.group.DoChan(category, func() (interface{}, error) {
		return f.refresh(detached, category, ttl, fetch), nil
	})

	select {
	case result := <-ch:
		if result.Shared {
			f.coalesced.Add(1)
		}
		return result.Val.([]Article)
	case <-ctx.Done():
		// Caller gave up waiting; hand back whatever we have right now.
		return f.fallback(category)
	}
}

// refresh runs inside a singleflight group and never returns an error:
// every failure path degrades to the stale entry or an empty payload.
func (f *Fetcher) refresh(ctx context.Context, category string, ttl time.Duration, fetch FetchFunc) []Article {
	// A caller that queued behind an in-flight fetch may find the cache
	// already fresh by the time its flight runs.
	if e, ok := f.store.Get(category); ok && f.now().Before(e.ExpiresAt) {
		return e.Articles
	}

	if !f.tracker.Allow() {
		f.denied.Add(1)
		logging.Debug("quota exhausted, serving cached payload",
			zap.String("category", category))
		return f.fallback(category)
	}

	fctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.fetches.Add(1)
	articles, err := fetch(fctx)
	if err != nil {
		f.failures.Add(1)
		if f.count {
			f.tracker.Record()
		}
		logging.Warn("upstream fetch failed, serving cached payload",
			zap.String("category", category),
			zap.Error(err))
		return f.fallback(category)
	}

	f.tracker.Record()
	f.store.Put(category, articles, ttl, f.now())
	logging.Debug("category refreshed",
		zap.String("category", category),
		zap.Int("articles", len(articles)))
	return articles
}

// fallback returns the stale entry for a category if one exists, else an
// empty payload. Never nil, so callers can range without checks.
func (f *Fetcher) fallback(category string) []Article {
	if e, ok := f.store.Get(category); ok {
		return e.Articles
	}
	return []Article{}
}

// Stats returns a snapshot of fetcher counters.
func (f *Fetcher) Stats() FetcherStats {
	return FetcherStats{
		Hits:          f.hits.Load(),
		Misses:        f.misses.Load(),
		Fetches:       f.fetches.Load(),
		FetchFailures: f.failures.Load(),
		QuotaDenied:   f.denied.Load(),
		Coalesced:     f.coalesced.Load(),
	}
}
