package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testNewsPage = `<html><body>
<div class="story">
  <h2>First headline</h2>
  <a href="/articles/1">read</a>
  <span class="byline">Ann</span>
  <p>First summary</p>
</div>
<div class="story">
  <h2>Second headline</h2>
  <a href="/articles/2">read</a>
  <p>Second summary</p>
</div>
<div class="story">
  <h2></h2>
  <p>Container without a headline</p>
</div>
<div class="story">
  <h2>Third headline</h2>
</div>
</body></html>`

func testScraper(t *testing.T, url string, maxItems int) *HTMLScraper {
	t.Helper()
	h, err := NewHTMLScraper(SiteConfig{
		Name: "testsite",
		URL:  url,
		Selectors: SiteSelectors{
			Item:     "div.story",
			Headline: "h2",
			Link:     "a",
			Author:   "span.byline",
			Summary:  "p",
		},
		MaxItems: maxItems,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewHTMLScraper: %v", err)
	}
	return h
}

func TestHTMLScraperDegradesPerFieldNotPerPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testNewsPage)
	}))
	defer srv.Close()

	h := testScraper(t, srv.URL, 10)
	items, err := h.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// The headline-less container is skipped; every other item survives its
	// own missing fields.
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	first := h.Normalize(items[0])
	if first.Author != "Ann" || first.Summary != "First summary" {
		t.Fatalf("first item fields: %+v", first)
	}
	if first.URL != srv.URL+"/articles/1" {
		t.Fatalf("relative link should resolve against the page, got %q", first.URL)
	}

	second := h.Normalize(items[1])
	if second.Author != NotAvailable {
		t.Fatalf("missing author should degrade to %q, got %q", NotAvailable, second.Author)
	}
	if second.Summary != "Second summary" {
		t.Fatalf("other fields of the same item must still extract: %+v", second)
	}

	third := h.Normalize(items[2])
	if third.URL != NotAvailable || third.Summary != NotAvailable {
		t.Fatalf("item with only a headline should fill defaults: %+v", third)
	}
}

func TestHTMLScraperHonorsMaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testNewsPage)
	}))
	defer srv.Close()

	h := testScraper(t, srv.URL, 2)
	items, err := h.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected max 2 items, got %d", len(items))
	}
}

func TestHTMLScraperFetchErrorOnUnreachableSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := testScraper(t, srv.URL, 10)
	if _, err := h.Fetch(context.Background()); err == nil {
		t.Fatalf("expected fetch error on 500 page")
	}
}

func TestNewHTMLScraperValidatesSelectors(t *testing.T) {
	_, err := NewHTMLScraper(SiteConfig{
		Name:      "x",
		URL:       "https://example.com",
		Selectors: SiteSelectors{Item: "div"},
	})
	if err == nil {
		t.Fatalf("expected error for missing headline selector")
	}
}

func TestHTMLScraperIdentityIsSiteAndHeadline(t *testing.T) {
	siteA := testScraper(t, "https://a.example", 10)
	siteB, err := NewHTMLScraper(SiteConfig{
		Name: "othersite",
		URL:  "https://b.example",
		Selectors: SiteSelectors{
			Item:     "div.story",
			Headline: "h2",
		},
	})
	if err != nil {
		t.Fatalf("NewHTMLScraper: %v", err)
	}

	item := RawItem{"headline": "Shared headline"}
	if siteA.Normalize(item).IdentityKey == siteB.Normalize(item).IdentityKey {
		t.Fatalf("the same headline on two sites must be two records")
	}
}
