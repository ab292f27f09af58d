package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	maxResponseBytes = 1 << 20 // 1MB
	defaultUserAgent = "CollectorHubBot/1.0"
	// pageBackoff is slept between paginated calls so rate-limited APIs
	// (NewsAPI, Springer) are not hammered within one run.
	pageBackoff = 500 * time.Millisecond
)

// getJSON issues one GET with the given client and decodes the body into out.
// Non-200 statuses are fetch errors; bodies are read with a hard byte cap.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// sleepBetweenPages waits the pagination backoff, returning early when the
// run's context is cancelled.
func sleepBetweenPages(ctx context.Context) {
	t := time.NewTimer(pageBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
