// Package server exposes the news API and the operational surface:
// category data, quota/cache status, metrics and a diagnostic purge.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/scobbydave/newsdesk/internal/config"
	"github.com/scobbydave/newsdesk/internal/logging"
	"github.com/scobbydave/newsdesk/internal/newscache"
	"github.com/scobbydave/newsdesk/internal/quota"
	"github.com/scobbydave/newsdesk/internal/scheduler"
)

// CategoryRoute binds a served category to its TTL and upstream fetch.
type CategoryRoute struct {
	TTL   time.Duration
	Fetch newscache.FetchFunc
}

// Server serves the news API. Quota exhaustion and upstream failures never
// surface as errors here; worst case a category returns stale or empty data.
type Server struct {
	cfg     config.ServerConfig
	fetcher *newscache.Fetcher
	store   *newscache.Store
	tracker *quota.Tracker
	sched   *scheduler.Scheduler
	router  *httprouter.Router
	httpSrv *http.Server

	mu         sync.RWMutex
	categories map[string]CategoryRoute
}

// New creates a server. metricsHandler serves GET /metrics.
func New(cfg config.ServerConfig, fetcher *newscache.Fetcher, store *newscache.Store,
	tracker *quota.Tracker, sched *scheduler.Scheduler,
	categories map[string]CategoryRoute, metricsHandler http.Handler) *Server {

	s := &Server{
		cfg:        cfg,
		fetcher:    fetcher,
		store:      store,
		tracker:    tracker,
		sched:      sched,
		categories: categories,
	}

	router := httprouter.New()
	router.GET("/v1/news/:category", s.handleNews)
	router.GET("/v1/status", s.handleStatus)
	router.POST("/v1/cache/purge", s.handlePurge)
	router.Handler(http.MethodGet, "/metrics", metricsHandler)
	router.HandlerFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.router = router

	return s
}

// SetCategories replaces the served categories, e.g. after a config reload.
func (s *Server) SetCategories(categories map[string]CategoryRoute) {
	s.mu.Lock()
	s.categories = categories
	s.mu.Unlock()
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks serving HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	logging.Info("server listening", zap.String("addr", s.cfg.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("category")

	s.mu.RLock()
	route, ok := s.categories[name]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown category: " + name})
		return
	}

	articles := s.fetcher.Get(r.Context(), name, route.TTL, route.Fetch)
	writeJSON(w, http.StatusOK, newsResponse{
		Category: name,
		Count:    len(articles),
		Articles: articles,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	now := time.Now()

	entries := make(map[string]entryStatus)
	for _, cat := range s.store.Categories() {
		e, ok := s.store.Get(cat)
		if !ok {
			continue
		}
		entries[cat] = entryStatus{
			Articles:  len(e.Articles),
			FetchedAt: e.FetchedAt,
			ExpiresAt: e.ExpiresAt,
			Fresh:     now.Before(e.ExpiresAt),
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Quota:      s.tracker.Stats(),
		Fetcher:    s.fetcher.Stats(),
		Cache:      entries,
		NextWindow: s.sched.NextWindowStart(now),
	})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.store.Clear()
	logging.Info("cache purged")
	w.WriteHeader(http.StatusNoContent)
}

type newsResponse struct {
	Category string              `json:"category"`
	Count    int                 `json:"count"`
	Articles []newscache.Article `json:"articles"`
}

type entryStatus struct {
	Articles  int       `json:"articles"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Fresh     bool      `json:"fresh"`
}

type statusResponse struct {
	Quota      quota.Stats            `json:"quota"`
	Fetcher    newscache.FetcherStats `json:"fetcher"`
	Cache      map[string]entryStatus `json:"cache"`
	NextWindow time.Time              `json:"next_refresh_window"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", zap.Error(err))
	}
}
