package registry

import (
	"context"
	"testing"
	"time"

	"github.com/collector-series/collectorhub/internal/config"
	"github.com/collector-series/collectorhub/internal/pipeline"
	"github.com/collector-series/collectorhub/internal/source"
)

type nopStore struct{}

func (nopStore) InsertManyIfAbsent(ctx context.Context, recs []source.Record) (int, int, error) {
	return len(recs), 0, nil
}

func TestRegisterSkipsUnconfiguredAdapters(t *testing.T) {
	cfg := &config.Config{
		FetchTimeout: time.Second,
	}
	pipe := pipeline.New(nopStore{}, time.Second)

	jobs := Register(cfg, pipe)
	// No API keys, no feeds, no trends, scraping disabled: nothing registers,
	// and nothing crashes.
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d: %v", len(jobs), jobs)
	}
}

func TestRegisterBuildsConfiguredAdapters(t *testing.T) {
	cfg := &config.Config{
		FetchTimeout: time.Second,
		MaxResults:   10,

		NewsAPIKey: "news-key",
		NewsCron:   "*/5 * * * *",

		QuoteAPIKey:  "quote-key",
		QuoteSymbols: []string{"AAPL"},
		QuoteCron:    "*/5 * * * *",

		TrendEndpoints: map[string]string{"twitter": "https://t.example"},
		TrendCron:      "0 * * * *",

		FeedURLs: map[string]string{"bbc": "https://bbc.example/rss"},
		FeedCron: "*/10 * * * *",

		ScrapeEnabled: true,
		ScrapeCron:    "*/10 * * * *",
	}
	pipe := pipeline.New(nopStore{}, time.Second)

	jobs := Register(cfg, pipe)

	// newsapi + quotes + 1 trend + 1 feed + built-in scrape sites.
	want := 4 + len(source.DefaultNewsSites())
	if len(jobs) != want {
		t.Fatalf("expected %d jobs, got %d: %v", want, len(jobs), jobs)
	}

	byName := make(map[string]string)
	for _, j := range jobs {
		byName[j.Source] = j.CronSpec
	}
	if byName["newsapi"] != "*/5 * * * *" {
		t.Fatalf("newsapi job missing or wrong spec: %v", byName)
	}
	if _, ok := byName["trends_twitter"]; !ok {
		t.Fatalf("trend adapter missing: %v", byName)
	}
	if _, ok := byName["feed_bbc"]; !ok {
		t.Fatalf("feed adapter missing: %v", byName)
	}

	// Springer key absent: the paper adapter must be skipped while the rest
	// registered fine.
	if _, ok := byName["springer"]; ok {
		t.Fatalf("paper adapter should be skipped without a key")
	}
}
