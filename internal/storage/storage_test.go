package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/collector-series/collectorhub/internal/source"
)

func TestTruncateRunesHandlesMultibyteText(t *testing.T) {
	s := "你好，世界，这是一个很长的中文句子，用来测试截断逻辑。"
	out := truncateRunes(s, 5)
	if len([]rune(out)) != 5 {
		t.Fatalf("truncateRunes length = %d, want 5: %q", len([]rune(out)), out)
	}

	full := truncateRunes("short", 10)
	if full != "short" {
		t.Fatalf("truncateRunes should keep original when under limit: %q", full)
	}

	if truncateRunes("anything", 0) != "" {
		t.Fatalf("zero limit should truncate to empty")
	}
}

func TestToModelSanitizesAndCaps(t *testing.T) {
	rec := source.Record{
		Collection:  "headlines",
		IdentityKey: "abc",
		SourceTag:   "test",
		Headline:    "ok\xffbad",
		Summary:     strings.Repeat("长", 3000),
		CollectedAt: time.Now(),
	}

	m := toModel(rec)
	if strings.Contains(m.Headline, "\xff") {
		t.Fatalf("invalid UTF-8 should be replaced: %q", m.Headline)
	}
	if got := len([]rune(m.Summary)); got != 2000 {
		t.Fatalf("summary should be capped at 2000 runes, got %d", got)
	}
	if m.IdentityKey != "abc" || m.Collection != "headlines" {
		t.Fatalf("key fields must pass through untouched: %+v", m)
	}
}

func TestListCacheKeyIncludesEveryFilter(t *testing.T) {
	base := ListOptions{Collection: "headlines", Source: "newsapi", Query: "ai", Offset: 0, Limit: 5}

	variants := []ListOptions{
		{Collection: "quotes", Source: "newsapi", Query: "ai", Offset: 0, Limit: 5},
		{Collection: "headlines", Source: "feed_bbc", Query: "ai", Offset: 0, Limit: 5},
		{Collection: "headlines", Source: "newsapi", Query: "ml", Offset: 0, Limit: 5},
		{Collection: "headlines", Source: "newsapi", Query: "ai", Offset: 5, Limit: 5},
		{Collection: "headlines", Source: "newsapi", Query: "ai", Offset: 0, Limit: 10},
	}

	baseKey := listCacheKey(base)
	for i, v := range variants {
		if listCacheKey(v) == baseKey {
			t.Fatalf("variant %d should produce a distinct cache key", i)
		}
	}
	if listCacheKey(base) != baseKey {
		t.Fatalf("cache key should be deterministic")
	}
}
