package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedConfig configures one syndication-feed adapter.
type FeedConfig struct {
	Name     string // short feed key, e.g. "bbc-rss"
	URL      string
	MaxItems int
}

// Feed fetches an RSS/Atom feed via gofeed. Items missing optional fields
// (author, summary, published date) get defaults instead of failing the fetch.
type Feed struct {
	cfg    FeedConfig
	parser *gofeed.Parser
}

func NewFeed(cfg FeedConfig) (*Feed, error) {
	if cfg.Name == "" || cfg.URL == "" {
		return nil, fmt.Errorf("feed: missing name or URL")
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}
	return &Feed{cfg: cfg, parser: gofeed.NewParser()}, nil
}

func (f *Feed) Name() string       { return "feed_" + f.cfg.Name }
func (f *Feed) Collection() string { return "headlines" }

func (f *Feed) Fetch(ctx context.Context) ([]RawItem, error) {
	log.Printf("fetch feed %s...", f.cfg.Name)

	feed, err := f.parser.ParseURLWithContext(f.cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: %s: %w", f.cfg.Name, err)
	}

	count := len(feed.Items)
	if count > f.cfg.MaxItems {
		count = f.cfg.MaxItems
	}

	items := make([]RawItem, 0, count)
	for _, it := range feed.Items[:count] {
		item := RawItem{
			"guid":    it.GUID,
			"title":   it.Title,
			"link":    it.Link,
			"summary": it.Description,
		}
		if it.Author != nil {
			item["author"] = it.Author.Name
		}
		if it.PublishedParsed != nil {
			item["published"] = it.PublishedParsed.Format(time.RFC3339)
		} else if it.UpdatedParsed != nil {
			item["published"] = it.UpdatedParsed.Format(time.RFC3339)
		}
		if len(it.Categories) > 0 {
			item["category"] = it.Categories[0]
		}
		if it.Image != nil {
			item["image"] = it.Image.URL
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *Feed) Normalize(item RawItem) Record {
	now := time.Now()

	// GUID is the feed's own identity; fall back to the link when absent.
	id := StringOr(item, "guid", "")
	if id == "" {
		id = StringOr(item, "link", NotAvailable)
	}

	return Record{
		Collection:  f.Collection(),
		SourceTag:   f.Name(),
		IdentityKey: IdentityKey(f.Name(), id),
		Headline:    StringOr(item, "title", NotAvailable),
		URL:         StringOr(item, "link", NotAvailable),
		Author:      StringOr(item, "author", NotAvailable),
		Summary:     StringOr(item, "summary", NotAvailable),
		Category:    StringOr(item, "category", NotAvailable),
		ImageURL:    StringOr(item, "image", NotAvailable),
		PublishedAt: TimeOr(item, "published", now, time.RFC3339),
		CollectedAt: now,
		Extra: map[string]any{
			"feedUrl": f.cfg.URL,
		},
	}
}
