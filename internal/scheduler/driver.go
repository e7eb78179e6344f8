package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scobbydave/newsdesk/internal/logging"
	"github.com/scobbydave/newsdesk/internal/newscache"
)

// Driver periodically asks the scheduler which categories are eligible and
// refreshes each of them through the fetcher, so cached data stays warm
// without any caller traffic.
type Driver struct {
	sched    *Scheduler
	fetcher  *newscache.Fetcher
	interval time.Duration

	mu      sync.RWMutex
	sources map[string]newscache.FetchFunc
}

// NewDriver creates a refresh driver. sources maps category names to their
// upstream fetch functions.
func NewDriver(interval time.Duration, sched *Scheduler, fetcher *newscache.Fetcher, sources map[string]newscache.FetchFunc) *Driver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Driver{
		sched:    sched,
		fetcher:  fetcher,
		interval: interval,
		sources:  sources,
	}
}

// SetSources replaces the category fetch functions, e.g. after a config reload.
func (d *Driver) SetSources(sources map[string]newscache.FetchFunc) {
	d.mu.Lock()
	d.sources = sources
	d.mu.Unlock()
}

// Run ticks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	logging.Info("refresh driver started",
		zap.Duration("interval", d.interval),
		zap.Time("next_window", d.sched.NextWindowStart(time.Now())))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("refresh driver stopped")
			return
		case now := <-ticker.C:
			d.runOnce(ctx, now)
		}
	}
}

// runOnce refreshes every currently eligible category.
func (d *Driver) runOnce(ctx context.Context, now time.Time) {
	decisions := d.sched.Decide(now)

	d.mu.RLock()
	sources := d.sources
	d.mu.RUnlock()

	for _, p := range d.sched.Policies() {
		if !decisions[p.Name] {
			continue
		}
		fetch, ok := sources[p.Name]
		if !ok {
			continue
		}

		articles := d.fetcher.Get(ctx, p.Name, p.TTL, fetch)
		logging.Info("proactive refresh",
			zap.String("category", p.Name),
			zap.Int("articles", len(articles)))
	}
}
