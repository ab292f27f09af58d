package source

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// SiteSelectors declares where each field lives on one site's page. Only Item
// and Headline are required; every other field degrades to a default when its
// selector is empty or matches nothing.
type SiteSelectors struct {
	Item      string // container selector, one match per article
	Headline  string
	Link      string // anchor selector inside the item
	LinkAttr  string // defaults to href
	Date      string
	DateAttr  string // attribute holding the timestamp, e.g. datetime
	Author    string
	Summary   string
	Image     string
	ImageAttr string // defaults to src
}

// SiteConfig configures one scraped site.
type SiteConfig struct {
	Name      string // site key, e.g. "bbc"
	URL       string
	Selectors SiteSelectors
	MaxItems  int
	Timeout   time.Duration
}

// HTMLScraper extracts headlines from one site with declarative selectors.
// Page structure drifts; a field that fails to extract degrades to its
// default and never aborts the remaining fields or items.
type HTMLScraper struct {
	cfg SiteConfig
}

func NewHTMLScraper(cfg SiteConfig) (*HTMLScraper, error) {
	if cfg.Name == "" || cfg.URL == "" {
		return nil, fmt.Errorf("scrape: missing site name or URL")
	}
	if cfg.Selectors.Item == "" || cfg.Selectors.Headline == "" {
		return nil, fmt.Errorf("scrape: %s: missing item or headline selector", cfg.Name)
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Selectors.LinkAttr == "" {
		cfg.Selectors.LinkAttr = "href"
	}
	if cfg.Selectors.ImageAttr == "" {
		cfg.Selectors.ImageAttr = "src"
	}
	return &HTMLScraper{cfg: cfg}, nil
}

func (h *HTMLScraper) Name() string       { return "scrape_" + h.cfg.Name }
func (h *HTMLScraper) Collection() string { return "headlines" }

func (h *HTMLScraper) Fetch(ctx context.Context) ([]RawItem, error) {
	log.Printf("scrape %s...", h.cfg.Name)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(defaultUserAgent))
	c.SetRequestTimeout(h.cfg.Timeout)

	sel := h.cfg.Selectors
	items := make([]RawItem, 0, h.cfg.MaxItems)

	c.OnHTML(sel.Item, func(e *colly.HTMLElement) {
		if len(items) >= h.cfg.MaxItems {
			return
		}

		headline := strings.TrimSpace(e.ChildText(sel.Headline))
		if headline == "" {
			// Without a headline there is nothing to identify; skip the
			// container, not the page.
			return
		}

		item := RawItem{"headline": headline}
		if sel.Link != "" {
			if href := e.ChildAttr(sel.Link, sel.LinkAttr); href != "" {
				item["url"] = e.Request.AbsoluteURL(href)
			}
		}
		if sel.Date != "" {
			if sel.DateAttr != "" {
				item["date"] = e.ChildAttr(sel.Date, sel.DateAttr)
			} else {
				item["date"] = strings.TrimSpace(e.ChildText(sel.Date))
			}
		}
		if sel.Author != "" {
			item["author"] = strings.TrimSpace(e.ChildText(sel.Author))
		}
		if sel.Summary != "" {
			summary := strings.TrimSpace(e.ChildText(sel.Summary))
			if summary == "" {
				// Selector drifted; fall back to the longest text block in
				// the container that is not the headline itself.
				summary = longestTextBlock(e.DOM, headline)
			}
			if summary != "" {
				item["summary"] = summary
			}
		}
		if sel.Image != "" {
			item["image"] = e.ChildAttr(sel.Image, sel.ImageAttr)
		}
		items = append(items, item)
	})

	if err := c.Visit(h.cfg.URL); err != nil {
		return nil, fmt.Errorf("scrape: %s: %w", h.cfg.Name, err)
	}
	c.Wait()

	if len(items) == 0 {
		log.Printf("scrape %s got 0 items", h.cfg.Name)
	}
	return items, nil
}

// longestTextBlock returns the longest paragraph-like text inside the
// selection, skipping excluded strings and anything too short to be a summary.
func longestTextBlock(s *goquery.Selection, exclude ...string) string {
	const minLen = 20
	var best string
	s.Find("p, div, span").Each(func(i int, sel *goquery.Selection) {
		t := strings.TrimSpace(sel.Text())
		if t == "" || len(t) < minLen || len(t) <= len(best) {
			return
		}
		for _, ex := range exclude {
			if t == ex {
				return
			}
		}
		best = t
	})
	return best
}

func (h *HTMLScraper) Normalize(item RawItem) Record {
	now := time.Now()
	headline := StringOr(item, "headline", NotAvailable)
	return Record{
		Collection: h.Collection(),
		SourceTag:  h.Name(),
		// Scraped links are often missing or unstable; site+headline is the
		// identity a scraped headline actually has.
		IdentityKey: IdentityKey(h.cfg.Name, headline),
		Headline:    headline,
		URL:         StringOr(item, "url", NotAvailable),
		Author:      StringOr(item, "author", NotAvailable),
		Summary:     StringOr(item, "summary", NotAvailable),
		Category:    NotAvailable,
		ImageURL:    StringOr(item, "image", NotAvailable),
		PublishedAt: TimeOr(item, "date", now, time.RFC3339, "2006-01-02T15:04:05Z07:00", "2006-01-02"),
		CollectedAt: now,
		Extra: map[string]any{
			"site": h.cfg.Name,
		},
	}
}

// DefaultNewsSites is the built-in scrape table: the sites the collector
// family watched, with their current selectors. Structure drifts; selectors
// are best-effort.
func DefaultNewsSites() []SiteConfig {
	return []SiteConfig{
		{
			Name: "bbc",
			URL:  "https://www.bbc.com/news",
			Selectors: SiteSelectors{
				Item:     "div[data-testid='card-text-wrapper']",
				Headline: "h2",
				Link:     "a",
				Date:     "time",
				DateAttr: "datetime",
				Summary:  "p",
			},
		},
		{
			Name: "cnn",
			URL:  "https://edition.cnn.com/world",
			Selectors: SiteSelectors{
				Item:      "div.card",
				Headline:  "span.container__headline-text",
				Link:      "a",
				Image:     "img",
				ImageAttr: "src",
			},
		},
		{
			Name: "reuters",
			URL:  "https://www.reuters.com/",
			Selectors: SiteSelectors{
				Item:     "li[data-testid='FeedListItem']",
				Headline: "h2",
				Link:     "a",
				Date:     "time",
				DateAttr: "datetime",
			},
		},
	}
}
