// Package quota bounds upstream API spend against daily and monthly
// ceilings, rolling counters over at calendar boundaries and persisting
// state so the budget survives restarts.
package quota

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scobbydave/newsdesk/internal/logging"
)

// State is the persisted quota record.
type State struct {
	MonthlyUsed int       `json:"monthly_used"`
	DailyUsed   int       `json:"daily_used"`
	PeriodStart time.Time `json:"period_start"`
	DayStart    time.Time `json:"day_start"`
}

// Config holds tracker settings.
type Config struct {
	MonthlyCeiling int // default 250
	DailyCeiling   int // default 8
}

// Stats is a read-only projection of the tracker for status surfaces.
type Stats struct {
	Used          int `json:"used"`
	Remaining     int `json:"remaining"`
	DailyUsed     int `json:"daily_used"`
	DaysRemaining int `json:"days_remaining_in_period"`
}

// Tracker answers "may we spend one more upstream call?" and records
// spends. The ceilings are soft courtesy limits, so persistence failures
// are never fatal: the in-memory state stays authoritative for the
// process lifetime.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	state State
	store Store
	now   func() time.Time
}

// New creates a tracker backed by the given store. A load failure or a
// corrupt record starts the tracker from a zeroed state.
func New(cfg Config, store Store) *Tracker {
	if cfg.MonthlyCeiling <= 0 {
		cfg.MonthlyCeiling = 250
	}
	if cfg.DailyCeiling <= 0 {
		cfg.DailyCeiling = 8
	}

	t := &Tracker{
		cfg:   cfg,
		store: store,
		now:   time.Now,
	}

	st, err := store.Load()
	if err != nil {
		logging.Warn("quota state load failed, starting fresh", zap.Error(err))
	} else if st != nil {
		t.state = *st
	}

	return t
}

// Allow reports whether one more upstream call fits the budget. It first
// rolls the counters over any elapsed day or month boundary.
func (t *Tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(t.now())
	return t.state.MonthlyUsed < t.cfg.MonthlyCeiling && t.state.DailyUsed < t.cfg.DailyCeiling
}

// Record counts one successful upstream call and persists the new state.
// It must be called only after the call succeeded, never speculatively.
func (t *Tracker) Record() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(t.now())
	t.state.MonthlyUsed++
	t.state.DailyUsed++

	st := t.state
	if err := t.store.Save(&st); err != nil {
		logging.Warn("quota state save failed", zap.Error(err))
	}
}

// Stats returns a snapshot for observability.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.rollover(now)

	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	return Stats{
		Used:          t.state.MonthlyUsed,
		Remaining:     t.cfg.MonthlyCeiling - t.state.MonthlyUsed,
		DailyUsed:     t.state.DailyUsed,
		DaysRemaining: lastDay - now.Day() + 1,
	}
}

// rollover resets counters across calendar boundaries. The monthly window
// resets on month/year change, not on a fixed 30-day interval. Must be
// called with mu held.
func (t *Tracker) rollover(now time.Time) {
	if now.Month() != t.state.PeriodStart.Month() || now.Year() != t.state.PeriodStart.Year() {
		t.state.MonthlyUsed = 0
		t.state.DailyUsed = 0
		t.state.PeriodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		t.state.DayStart = startOfDay(now)
		return
	}

	if !sameDay(now, t.state.DayStart) {
		t.state.DailyUsed = 0
		t.state.DayStart = startOfDay(now)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
