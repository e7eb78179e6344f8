package upstream

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/scobbydave/newsdesk/internal/newscache"
)

// FeedSource fetches a category from an RSS/Atom feed instead of the
// search API. Feed fetches still count against the quota like any other
// upstream call.
type FeedSource struct {
	url    string
	parser *gofeed.Parser
	limit  int
}

// NewFeedSource creates a feed source. limit caps the number of items
// kept per fetch; 0 means 20.
func NewFeedSource(url string, limit int) *FeedSource {
	if limit <= 0 {
		limit = 20
	}
	return &FeedSource{
		url:    url,
		parser: gofeed.NewParser(),
		limit:  limit,
	}
}

// Fetch implements newscache.FetchFunc.
func (f *FeedSource) Fetch(ctx context.Context) ([]newscache.Article, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	n := len(feed.Items)
	if n > f.limit {
		n = f.limit
	}

	articles := make([]newscache.Article, 0, n)
	for _, item := range feed.Items[:n] {
		a := newscache.Article{
			Title:       item.Title,
			URL:         item.Link,
			Source:      feed.Title,
			Description: item.Description,
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}
	return articles, nil
}
