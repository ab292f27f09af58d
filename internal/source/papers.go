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

const defaultPaperBaseURL = "https://api.springernature.com/openaccess/json"

// PaperConfig configures the academic-paper adapter.
type PaperConfig struct {
	APIKey     string
	BaseURL    string // defaults to the Springer open-access endpoint; overridable for tests
	WindowDays int    // how far back the date-range query reaches
	PageSize   int
	MaxResults int
	Timeout    time.Duration
}

// Papers fetches recent open-access papers from the Springer API, paginating
// with the API's s (start) and p (page size) parameters.
type Papers struct {
	cfg    PaperConfig
	client *http.Client
}

func NewPapers(cfg PaperConfig) (*Papers, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("papers: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPaperBaseURL
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 60
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Papers{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (p *Papers) Name() string       { return "springer" }
func (p *Papers) Collection() string { return "papers" }

type springerResponse struct {
	Records []struct {
		Title           string `json:"title"`
		DOI             string `json:"doi"`
		Abstract        string `json:"abstract"`
		PublicationName string `json:"publicationName"`
		PublicationDate string `json:"publicationDate"`
		Creators        []struct {
			Creator string `json:"creator"`
		} `json:"creators"`
		URL []struct {
			Format string `json:"format"`
			Value  string `json:"value"`
		} `json:"url"`
	} `json:"records"`
}

func (p *Papers) Fetch(ctx context.Context) ([]RawItem, error) {
	log.Println("fetch Springer open-access papers...")

	end := time.Now()
	start := end.AddDate(0, 0, -p.cfg.WindowDays)
	query := fmt.Sprintf("date:%s TO %s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	items := make([]RawItem, 0, p.cfg.PageSize)
	for offset := 1; len(items) < p.cfg.MaxResults; offset += p.cfg.PageSize {
		params := url.Values{
			"q":       {query},
			"s":       {strconv.Itoa(offset)},
			"p":       {strconv.Itoa(p.cfg.PageSize)},
			"api_key": {p.cfg.APIKey},
		}

		var resp springerResponse
		if err := getJSON(ctx, p.client, p.cfg.BaseURL+"?"+params.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("papers: offset %d: %w", offset, err)
		}
		if len(resp.Records) == 0 {
			break
		}

		for _, r := range resp.Records {
			author := ""
			if len(r.Creators) > 0 {
				author = r.Creators[0].Creator
			}
			htmlURL := ""
			for _, u := range r.URL {
				if u.Format == "html" {
					htmlURL = u.Value
					break
				}
			}
			items = append(items, RawItem{
				"title":           r.Title,
				"doi":             r.DOI,
				"author":          author,
				"abstract":        r.Abstract,
				"journal":         r.PublicationName,
				"publicationDate": r.PublicationDate,
				"url":             htmlURL,
			})
			if len(items) >= p.cfg.MaxResults {
				break
			}
		}
		sleepBetweenPages(ctx)
	}

	return items, nil
}

func (p *Papers) Normalize(item RawItem) Record {
	now := time.Now()
	published := TimeOr(item, "publicationDate", now, "2006-01-02", time.RFC3339)

	// DOI is the canonical paper identity; some records lack one, then
	// title+publication-date stands in.
	doi := StringOr(item, "doi", "")
	key := IdentityKey("doi", doi)
	if doi == "" {
		key = IdentityKey(
			StringOr(item, "title", NotAvailable),
			published.UTC().Format("2006-01-02"),
		)
	}

	return Record{
		Collection:  p.Collection(),
		SourceTag:   p.Name(),
		IdentityKey: key,
		Headline:    StringOr(item, "title", "Untitled"),
		URL:         StringOr(item, "url", NotAvailable),
		Author:      StringOr(item, "author", NotAvailable),
		Summary:     StringOr(item, "abstract", NotAvailable),
		Category:    "Research",
		ImageURL:    NotAvailable,
		PublishedAt: published,
		CollectedAt: now,
		Extra: map[string]any{
			"doi":     StringOr(item, "doi", NotAvailable),
			"journal": StringOr(item, "journal", "Springer"),
		},
	}
}
