// Package scheduler decides when each news category should be proactively
// refreshed, keeping data warm during business hours without burning quota
// off-hours or too often for low-priority categories.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/scobbydave/newsdesk/internal/newscache"
	"github.com/scobbydave/newsdesk/internal/quota"
)

// CategoryPolicy defines refresh behavior for one category.
type CategoryPolicy struct {
	Name         string
	TTL          time.Duration
	CadenceHours int // refresh only when hour%N == 0; 1 means every cycle
}

// Config holds scheduler settings.
type Config struct {
	StartHour int      // active window start hour, inclusive
	EndHour   int      // active window end hour, inclusive
	Anchors   []string // daily anchor times, "HH:MM"
}

// Scheduler computes per-category refresh eligibility from the current
// time, cache freshness and remaining budget.
type Scheduler struct {
	startHour int
	endHour   int
	anchors   []anchor

	mu       sync.RWMutex
	policies []CategoryPolicy

	store   *newscache.Store
	tracker *quota.Tracker
}

type anchor struct {
	hour   int
	minute int
}

// New creates a scheduler. Anchor strings must be pre-validated "HH:MM";
// malformed ones are ignored.
func New(cfg Config, policies []CategoryPolicy, store *newscache.Store, tracker *quota.Tracker) *Scheduler {
	anchors := make([]anchor, 0, len(cfg.Anchors))
	for _, a := range cfg.Anchors {
		if len(a) != 5 || a[2] != ':' {
			continue
		}
		h := int(a[0]-'0')*10 + int(a[1]-'0')
		m := int(a[3]-'0')*10 + int(a[4]-'0')
		if h < 0 || h > 23 || m < 0 || m > 59 {
			continue
		}
		anchors = append(anchors, anchor{hour: h, minute: m})
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].hour != anchors[j].hour {
			return anchors[i].hour < anchors[j].hour
		}
		return anchors[i].minute < anchors[j].minute
	})

	return &Scheduler{
		startHour: cfg.StartHour,
		endHour:   cfg.EndHour,
		anchors:   anchors,
		policies:  policies,
		store:     store,
		tracker:   tracker,
	}
}

// SetPolicies replaces the category policies, e.g. after a config reload.
func (s *Scheduler) SetPolicies(policies []CategoryPolicy) {
	s.mu.Lock()
	s.policies = policies
	s.mu.Unlock()
}

// Policies returns the current category policies.
func (s *Scheduler) Policies() []CategoryPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CategoryPolicy, len(s.policies))
	copy(out, s.policies)
	return out
}

// Decide reports, for every known category, whether a proactive refresh
// should be attempted right now. Eligibility is the conjunction of the
// business-hours, staleness, cadence and budget gates; outside the active
// window everything is false regardless of staleness.
func (s *Scheduler) Decide(now time.Time) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	decisions := make(map[string]bool, len(s.policies))

	hour := now.Hour()
	inWindow := hour >= s.startHour && hour <= s.endHour
	if !inWindow {
		for _, p := range s.policies {
			decisions[p.Name] = false
		}
		return decisions
	}

	budget := s.tracker.Allow()

	for _, p := range s.policies {
		n := p.CadenceHours
		if n <= 0 {
			n = 1
		}
		decisions[p.Name] = budget &&
			!s.store.IsFresh(p.Name, now) &&
			hour%n == 0
	}
	return decisions
}

// NextWindowStart returns the soonest daily anchor strictly after now,
// wrapping to the next day when none remain today. Observability only,
// never consulted by Decide.
func (s *Scheduler) NextWindowStart(now time.Time) time.Time {
	if len(s.anchors) == 0 {
		return now
	}

	for _, a := range s.anchors {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), a.hour, a.minute, 0, 0, now.Location())
		if candidate.After(now) {
			return candidate
		}
	}

	first := s.anchors[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), first.hour, first.minute, 0, 0, now.Location())
}
