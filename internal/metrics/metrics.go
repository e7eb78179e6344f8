// Package metrics exposes quota, cache and fetch counters in Prometheus
// format for the admin surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scobbydave/newsdesk/internal/newscache"
	"github.com/scobbydave/newsdesk/internal/quota"
)

// Collector reads point-in-time snapshots from the tracker, fetcher and
// store on every scrape, so the hot paths carry no Prometheus types.
type Collector struct {
	tracker *quota.Tracker
	fetcher *newscache.Fetcher
	store   *newscache.Store

	quotaUsed      *prometheus.Desc
	quotaRemaining *prometheus.Desc
	quotaDaily     *prometheus.Desc
	cacheHits      *prometheus.Desc
	cacheMisses    *prometheus.Desc
	cacheSize      *prometheus.Desc
	fetches        *prometheus.Desc
	fetchFailures  *prometheus.Desc
	quotaDenied    *prometheus.Desc
	coalesced      *prometheus.Desc
}

// NewCollector creates a collector over the given components.
func NewCollector(tracker *quota.Tracker, fetcher *newscache.Fetcher, store *newscache.Store) *Collector {
	return &Collector{
		tracker: tracker,
		fetcher: fetcher,
		store:   store,

		quotaUsed: prometheus.NewDesc("newsdesk_quota_monthly_used",
			"Upstream calls spent in the current monthly window", nil, nil),
		quotaRemaining: prometheus.NewDesc("newsdesk_quota_monthly_remaining",
			"Upstream calls left in the current monthly window", nil, nil),
		quotaDaily: prometheus.NewDesc("newsdesk_quota_daily_used",
			"Upstream calls spent today", nil, nil),
		cacheHits: prometheus.NewDesc("newsdesk_cache_hits_total",
			"Fresh cache hits", nil, nil),
		cacheMisses: prometheus.NewDesc("newsdesk_cache_misses_total",
			"Cache lookups that found no fresh entry", nil, nil),
		cacheSize: prometheus.NewDesc("newsdesk_cache_categories",
			"Number of cached categories", nil, nil),
		fetches: prometheus.NewDesc("newsdesk_fetches_total",
			"Upstream fetch attempts", nil, nil),
		fetchFailures: prometheus.NewDesc("newsdesk_fetch_failures_total",
			"Upstream fetch attempts that failed", nil, nil),
		quotaDenied: prometheus.NewDesc("newsdesk_quota_denied_total",
			"Fetches skipped because the budget was exhausted", nil, nil),
		coalesced: prometheus.NewDesc("newsdesk_fetches_coalesced_total",
			"Callers that shared another caller's in-flight fetch", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.quotaUsed
	ch <- c.quotaRemaining
	ch <- c.quotaDaily
	ch <- c.cacheHits
	ch <- c.cacheMisses
	ch <- c.cacheSize
	ch <- c.fetches
	ch <- c.fetchFailures
	ch <- c.quotaDenied
	ch <- c.coalesced
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	qs := c.tracker.Stats()
	ch <- prometheus.MustNewConstMetric(c.quotaUsed, prometheus.GaugeValue, float64(qs.Used))
	ch <- prometheus.MustNewConstMetric(c.quotaRemaining, prometheus.GaugeValue, float64(qs.Remaining))
	ch <- prometheus.MustNewConstMetric(c.quotaDaily, prometheus.GaugeValue, float64(qs.DailyUsed))

	fs := c.fetcher.Stats()
	ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(fs.Hits))
	ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(fs.Misses))
	ch <- prometheus.MustNewConstMetric(c.fetches, prometheus.CounterValue, float64(fs.Fetches))
	ch <- prometheus.MustNewConstMetric(c.fetchFailures, prometheus.CounterValue, float64(fs.FetchFailures))
	ch <- prometheus.MustNewConstMetric(c.quotaDenied, prometheus.CounterValue, float64(fs.QuotaDenied))
	ch <- prometheus.MustNewConstMetric(c.coalesced, prometheus.CounterValue, float64(fs.Coalesced))

	ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(c.store.Len()))
}

// Handler returns an HTTP handler serving the metrics endpoint.
func Handler(c *Collector) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
