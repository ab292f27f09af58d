package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// TrendConfig configures one social-trend adapter. Several platform adapters
// write into the same trends collection, distinguished by source tag.
type TrendConfig struct {
	Platform   string // e.g. twitter / reddit / youtube
	URL        string // trending-topics endpoint, API key baked into the URL by config
	MaxResults int
	Timeout    time.Duration
}

// Trends fetches trending topics from one platform's JSON endpoint.
type Trends struct {
	cfg    TrendConfig
	client *http.Client
}

func NewTrends(cfg TrendConfig) (*Trends, error) {
	if cfg.Platform == "" {
		return nil, fmt.Errorf("trends: missing platform name")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("trends: %s: missing endpoint URL", cfg.Platform)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Trends{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (t *Trends) Name() string       { return "trends_" + t.cfg.Platform }
func (t *Trends) Collection() string { return "trends" }

// trendsResponse matches the place-trends shape: a single-element array
// wrapping the trend list.
type trendsResponse []struct {
	Trends []struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		TweetVolume *int64 `json:"tweet_volume"`
	} `json:"trends"`
}

func (t *Trends) Fetch(ctx context.Context) ([]RawItem, error) {
	log.Printf("fetch %s trends...", t.cfg.Platform)

	var resp trendsResponse
	if err := getJSON(ctx, t.client, t.cfg.URL, &resp); err != nil {
		return nil, fmt.Errorf("trends: %s: %w", t.cfg.Platform, err)
	}
	if len(resp) == 0 {
		return nil, nil
	}

	items := make([]RawItem, 0, len(resp[0].Trends))
	for _, tr := range resp[0].Trends {
		item := RawItem{
			"name": tr.Name,
			"url":  tr.URL,
		}
		if tr.TweetVolume != nil {
			item["volume"] = float64(*tr.TweetVolume)
		}
		items = append(items, item)
		if len(items) >= t.cfg.MaxResults {
			break
		}
	}
	return items, nil
}

func (t *Trends) Normalize(item RawItem) Record {
	now := time.Now()
	name := StringOr(item, "name", NotAvailable)

	// Volume is frequently null upstream; keep the stable "N/A" sentinel
	// rather than dropping the field.
	volume := any(NotAvailable)
	if _, ok := item["volume"]; ok {
		volume = FloatOr(item, "volume", 0)
	}

	return Record{
		Collection:  t.Collection(),
		SourceTag:   t.Name(),
		IdentityKey: IdentityKey(t.cfg.Platform, name),
		Headline:    name,
		URL:         StringOr(item, "url", NotAvailable),
		Author:      NotAvailable,
		Summary:     NotAvailable,
		Category:    "Social",
		ImageURL:    NotAvailable,
		PublishedAt: now,
		CollectedAt: now,
		Extra: map[string]any{
			"platform": t.cfg.Platform,
			"volume":   volume,
		},
	}
}
