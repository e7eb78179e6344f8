// Package newscache holds the last good payload per news category and
// serves it through a budget-aware fetcher that degrades to stale data
// instead of failing.
package newscache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Article is one record returned by an upstream fetch.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
}

// Entry is the cached payload for one category. Absence of an entry means
// the category has never been fetched; an entry past ExpiresAt is stale
// but still served as a degraded fallback.
type Entry struct {
	Category  string    `json:"category"`
	Articles  []Article `json:"articles"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps at most one entry per category. The backing LRU bounds the
// number of categories without expiring entries by time, so stale payloads
// stay available until overwritten.
type Store struct {
	lru *lru.Cache[string, *Entry]
}

// NewStore creates a store bounded to maxCategories entries.
func NewStore(maxCategories int) *Store {
	if maxCategories <= 0 {
		maxCategories = 64
	}
	c, _ := lru.New[string, *Entry](maxCategories)
	return &Store{lru: c}
}

// Get returns the entry for a category. Pure lookup, no side effects.
func (s *Store) Get(category string) (*Entry, bool) {
	return s.lru.Get(category)
}

// IsFresh reports whether the category has an entry that hasn't expired.
func (s *Store) IsFresh(category string, now time.Time) bool {
	e, ok := s.lru.Get(category)
	return ok && now.Before(e.ExpiresAt)
}

// Put overwrites the entry for a category with a payload fetched at now.
// This is the only mutator besides Clear; last write wins.
func (s *Store) Put(category string, articles []Article, ttl time.Duration, now time.Time) {
	s.lru.Add(category, &Entry{
		Category:  category,
		Articles:  articles,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}

// Clear removes all entries. Diagnostic only.
func (s *Store) Clear() {
	s.lru.Purge()
}

// Len returns the number of cached categories.
func (s *Store) Len() int {
	return s.lru.Len()
}

// Categories returns the cached category names.
func (s *Store) Categories() []string {
	return s.lru.Keys()
}
