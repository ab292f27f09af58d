package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultQuoteBaseURL = "https://www.alphavantage.co/query"

// QuoteConfig configures the stock-quote adapter.
type QuoteConfig struct {
	APIKey  string
	BaseURL string // defaults to the Alpha Vantage endpoint; overridable for tests
	Symbols []string
	Timeout time.Duration
}

// Quotes fetches one global quote per configured symbol from Alpha Vantage.
// Symbols are fetched concurrently; a symbol that fails is logged and skipped
// so one bad ticker does not fail the whole run.
type Quotes struct {
	cfg    QuoteConfig
	client *http.Client
}

func NewQuotes(cfg QuoteConfig) (*Quotes, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("quotes: missing API key")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("quotes: no symbols configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultQuoteBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Quotes{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (q *Quotes) Name() string       { return "alphavantage" }
func (q *Quotes) Collection() string { return "quotes" }

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol     string `json:"01. symbol"`
		Open       string `json:"02. open"`
		High       string `json:"03. high"`
		Low        string `json:"04. low"`
		Price      string `json:"05. price"`
		Volume     string `json:"06. volume"`
		TradingDay string `json:"07. latest trading day"`
	} `json:"Global Quote"`
}

func (q *Quotes) Fetch(ctx context.Context) ([]RawItem, error) {
	log.Printf("fetch quotes for %d symbols...", len(q.cfg.Symbols))

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items = make([]RawItem, 0, len(q.cfg.Symbols))
	)
	for _, symbol := range q.cfg.Symbols {
		symbol := symbol
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := q.fetchOne(ctx, symbol)
			if err != nil {
				log.Printf("quotes: fetch %s: %v", symbol, err)
				return
			}
			mu.Lock()
			items = append(items, item)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// All symbols failing means the source itself is down; report that as a
	// fetch failure instead of a quiet empty run.
	if len(items) == 0 && len(q.cfg.Symbols) > 0 {
		return nil, fmt.Errorf("quotes: all %d symbols failed", len(q.cfg.Symbols))
	}
	return items, nil
}

func (q *Quotes) fetchOne(ctx context.Context, symbol string) (RawItem, error) {
	params := url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
		"apikey":   {q.cfg.APIKey},
	}

	var resp globalQuoteResponse
	if err := getJSON(ctx, q.client, q.cfg.BaseURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	g := resp.GlobalQuote
	if g.Symbol == "" {
		return nil, fmt.Errorf("empty quote payload")
	}
	return RawItem{
		"symbol":    g.Symbol,
		"open":      g.Open,
		"high":      g.High,
		"low":       g.Low,
		"close":     g.Price,
		"volume":    g.Volume,
		"timestamp": g.TradingDay,
	}, nil
}

func (q *Quotes) Normalize(item RawItem) Record {
	now := time.Now()
	symbol := StringOr(item, "symbol", NotAvailable)
	ts := TimeOr(item, "timestamp", now, "2006-01-02", time.RFC3339)
	return Record{
		Collection: q.Collection(),
		SourceTag:  q.Name(),
		// A re-published quote for the same symbol at a new timestamp is a
		// distinct record; the same trading snapshot re-fetched is not.
		IdentityKey: IdentityKey(symbol, ts.UTC().Format(time.RFC3339)),
		Headline:    symbol,
		URL:         NotAvailable,
		Author:      NotAvailable,
		Summary:     NotAvailable,
		Category:    "Market",
		ImageURL:    NotAvailable,
		PublishedAt: ts,
		CollectedAt: now,
		Extra: map[string]any{
			"open":   StringOr(item, "open", NotAvailable),
			"high":   StringOr(item, "high", NotAvailable),
			"low":    StringOr(item, "low", NotAvailable),
			"close":  StringOr(item, "close", NotAvailable),
			"volume": StringOr(item, "volume", NotAvailable),
		},
	}
}
