package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultNewsAPIBaseURL = "https://newsapi.org/v2/top-headlines"

// NewsAPIConfig configures the NewsAPI top-headlines adapter.
type NewsAPIConfig struct {
	APIKey     string
	BaseURL    string // defaults to the NewsAPI endpoint; overridable for tests
	Country    string
	PageSize   int
	MaxResults int
	Timeout    time.Duration
}

// NewsAPI fetches top headlines from the NewsAPI JSON endpoint, paginating
// until a page comes back empty or the max-results cap is reached.
type NewsAPI struct {
	cfg    NewsAPIConfig
	client *http.Client
}

func NewNewsAPI(cfg NewsAPIConfig) (*NewsAPI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("newsapi: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultNewsAPIBaseURL
	}
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &NewsAPI{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (n *NewsAPI) Name() string       { return "newsapi" }
func (n *NewsAPI) Collection() string { return "headlines" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Fetch(ctx context.Context) ([]RawItem, error) {
	log.Println("fetch NewsAPI top headlines...")

	items := make([]RawItem, 0, n.cfg.PageSize)
	for page := 1; len(items) < n.cfg.MaxResults; page++ {
		params := url.Values{
			"country":  {n.cfg.Country},
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(n.cfg.PageSize)},
			"apiKey":   {n.cfg.APIKey},
		}

		var resp newsAPIResponse
		if err := getJSON(ctx, n.client, n.cfg.BaseURL+"?"+params.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("newsapi: page %d: %w", page, err)
		}
		if len(resp.Articles) == 0 {
			break
		}

		for _, a := range resp.Articles {
			items = append(items, RawItem{
				"title":       a.Title,
				"author":      a.Author,
				"description": a.Description,
				"url":         a.URL,
				"urlToImage":  a.URLToImage,
				"publishedAt": a.PublishedAt,
				"sourceName":  a.Source.Name,
			})
			if len(items) >= n.cfg.MaxResults {
				break
			}
		}
		if len(items) >= n.cfg.MaxResults {
			break
		}
		sleepBetweenPages(ctx)
	}

	return items, nil
}

func (n *NewsAPI) Normalize(item RawItem) Record {
	now := time.Now()
	u := StringOr(item, "url", NotAvailable)
	return Record{
		Collection:  n.Collection(),
		SourceTag:   n.Name(),
		IdentityKey: IdentityKey(n.Name(), u),
		Headline:    StringOr(item, "title", NotAvailable),
		URL:         u,
		Author:      StringOr(item, "author", NotAvailable),
		Summary:     StringOr(item, "description", NotAvailable),
		Category:    "General",
		ImageURL:    StringOr(item, "urlToImage", NotAvailable),
		PublishedAt: TimeOr(item, "publishedAt", now),
		CollectedAt: now,
		Extra: map[string]any{
			"publisher": StringOr(item, "sourceName", NotAvailable),
		},
	}
}
