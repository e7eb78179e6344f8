package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scobbydave/newsdesk/internal/config"
	"github.com/scobbydave/newsdesk/internal/logging"
	"github.com/scobbydave/newsdesk/internal/metrics"
	"github.com/scobbydave/newsdesk/internal/newscache"
	"github.com/scobbydave/newsdesk/internal/quota"
	"github.com/scobbydave/newsdesk/internal/scheduler"
	"github.com/scobbydave/newsdesk/internal/server"
	"github.com/scobbydave/newsdesk/internal/upstream"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/newsdesk.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("newsdesk %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration
	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *validateOnly {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	// Initialize structured logger
	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		MaxSize:    cfg.Logging.Rotation.MaxSize,
		MaxBackups: cfg.Logging.Rotation.MaxBackups,
		MaxAge:     cfg.Logging.Rotation.MaxAge,
		Compress:   cfg.Logging.Rotation.Compress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobal(logger)

	logging.Info("starting newsdesk",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("quota_backend", cfg.Quota.Backend),
		zap.Int("categories", len(cfg.Categories)),
	)

	// Quota persistence
	var quotaStore quota.Store
	switch cfg.Quota.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		quotaStore = quota.NewRedisStore(client, "")
	case "memory":
		quotaStore = quota.NewMemoryStore()
	default:
		quotaStore = quota.NewFileStore(cfg.Quota.StatePath)
	}

	tracker := quota.New(quota.Config{
		MonthlyCeiling: cfg.Quota.MonthlyCeiling,
		DailyCeiling:   cfg.Quota.DailyCeiling,
	}, quotaStore)

	store := newscache.NewStore(cfg.Cache.MaxCategories)
	fetcher := newscache.NewFetcher(newscache.FetcherConfig{
		FetchTimeout:  cfg.Upstream.Timeout,
		CountFailures: cfg.Quota.CountFailures,
	}, store, tracker)

	client := upstream.NewClient(upstream.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		APIKey:      cfg.Upstream.APIKey,
		Timeout:     cfg.Upstream.Timeout,
		MaxRetries:  cfg.Upstream.MaxRetries,
		MaxFailures: cfg.Upstream.Breaker.MaxFailures,
		OpenTimeout: cfg.Upstream.Breaker.OpenTimeout,
	})

	sources, policies, routes := buildCategories(cfg, client)

	sched := scheduler.New(scheduler.Config{
		StartHour: cfg.Refresh.StartHour,
		EndHour:   cfg.Refresh.EndHour,
		Anchors:   cfg.Refresh.Anchors,
	}, policies, store, tracker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := scheduler.NewDriver(cfg.Refresh.Interval, sched, fetcher, sources)
	if cfg.Refresh.Enabled {
		go driver.Run(ctx)
	}

	srv := server.New(cfg.Server, fetcher, store, tracker, sched, routes,
		metrics.Handler(metrics.NewCollector(tracker, fetcher, store)))

	// Hot-reload categories and schedule on config changes
	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		logging.Warn("config watcher unavailable", zap.Error(err))
	} else {
		watcher.OnChange(func(next *config.Config) {
			nextSources, nextPolicies, nextRoutes := buildCategories(next, client)
			sched.SetPolicies(nextPolicies)
			driver.SetSources(nextSources)
			srv.SetCategories(nextRoutes)
			logging.Info("categories reloaded", zap.Int("categories", len(nextRoutes)))
		})
		if err := watcher.Start(); err != nil {
			logging.Warn("config watcher failed to start", zap.Error(err))
		}
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("shutdown error", zap.Error(err))
		}
	}
}

// buildCategories derives the fetch sources, refresh policies and served
// routes from the configured categories.
func buildCategories(cfg *config.Config, client *upstream.Client) (
	map[string]newscache.FetchFunc, []scheduler.CategoryPolicy, map[string]server.CategoryRoute) {

	sources := make(map[string]newscache.FetchFunc, len(cfg.Categories))
	policies := make([]scheduler.CategoryPolicy, 0, len(cfg.Categories))
	routes := make(map[string]server.CategoryRoute, len(cfg.Categories))

	for _, cat := range cfg.Categories {
		ttl := cat.TTL
		if ttl <= 0 {
			ttl = cfg.Cache.DefaultTTL
		}

		var fetch newscache.FetchFunc
		if cat.FeedURL != "" {
			fetch = upstream.NewFeedSource(cat.FeedURL, 0).Fetch
		} else {
			fetch = client.FetchFunc(cat.Query)
		}

		sources[cat.Name] = fetch
		policies = append(policies, scheduler.CategoryPolicy{
			Name:         cat.Name,
			TTL:          ttl,
			CadenceHours: cat.CadenceHours,
		})
		routes[cat.Name] = server.CategoryRoute{TTL: ttl, Fetch: fetch}
	}

	return sources, policies, routes
}
