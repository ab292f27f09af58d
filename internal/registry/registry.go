package registry

import (
	"log"
	"sort"

	"github.com/collector-series/collectorhub/internal/config"
	"github.com/collector-series/collectorhub/internal/pipeline"
	"github.com/collector-series/collectorhub/internal/scheduler"
	"github.com/collector-series/collectorhub/internal/source"
)

// Register builds every adapter the config enables, registers it into the
// pipeline and returns its schedule. An adapter with missing configuration
// (absent API key, no symbols) is logged and skipped; the rest keep running.
func Register(cfg *config.Config, pipe *pipeline.Pipeline) []scheduler.Job {
	var jobs []scheduler.Job

	add := func(src source.Source, err error, cronSpec string) {
		if err != nil {
			log.Printf("skip source: %v", err)
			return
		}
		if err := pipe.Register(src); err != nil {
			log.Printf("skip source %s: %v", src.Name(), err)
			return
		}
		jobs = append(jobs, scheduler.Job{Source: src.Name(), CronSpec: cronSpec})
	}

	news, err := source.NewNewsAPI(source.NewsAPIConfig{
		APIKey:     cfg.NewsAPIKey,
		Country:    cfg.NewsCountry,
		MaxResults: cfg.MaxResults,
		Timeout:    cfg.FetchTimeout,
	})
	add(news, err, cfg.NewsCron)

	quotes, err := source.NewQuotes(source.QuoteConfig{
		APIKey:  cfg.QuoteAPIKey,
		Symbols: cfg.QuoteSymbols,
		Timeout: cfg.FetchTimeout,
	})
	add(quotes, err, cfg.QuoteCron)

	papers, err := source.NewPapers(source.PaperConfig{
		APIKey:     cfg.PaperAPIKey,
		WindowDays: cfg.PaperWindowDays,
		MaxResults: cfg.MaxResults,
		Timeout:    cfg.FetchTimeout,
	})
	add(papers, err, cfg.PaperCron)

	for _, platform := range sortedKeys(cfg.TrendEndpoints) {
		trends, err := source.NewTrends(source.TrendConfig{
			Platform: platform,
			URL:      cfg.TrendEndpoints[platform],
			Timeout:  cfg.FetchTimeout,
		})
		add(trends, err, cfg.TrendCron)
	}

	for _, name := range sortedKeys(cfg.FeedURLs) {
		feed, err := source.NewFeed(source.FeedConfig{
			Name: name,
			URL:  cfg.FeedURLs[name],
		})
		add(feed, err, cfg.FeedCron)
	}

	if cfg.ScrapeEnabled {
		for _, site := range source.DefaultNewsSites() {
			site.Timeout = cfg.FetchTimeout
			scraper, err := source.NewHTMLScraper(site)
			add(scraper, err, cfg.ScrapeCron)
		}
	}

	return jobs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
