package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment surface. API keys come only from env (or a
// .env file loaded by main); adapters whose key is absent are skipped at
// startup, the rest of the system keeps running.
type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	FetchTimeout time.Duration
	MaxResults   int

	NewsAPIKey  string
	NewsCountry string
	NewsCron    string

	QuoteAPIKey  string
	QuoteSymbols []string
	QuoteCron    string

	PaperAPIKey     string
	PaperWindowDays int
	PaperCron       string

	// TrendEndpoints maps platform name to its trending-topics endpoint,
	// parsed from TREND_SOURCES ("twitter=https://...,reddit=https://...").
	TrendEndpoints map[string]string
	TrendCron      string

	// FeedURLs maps feed key to URL, parsed from FEED_URLS the same way.
	FeedURLs map[string]string
	FeedCron string

	ScrapeEnabled bool
	ScrapeCron    string
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=collectorhub password=collectorhub dbname=collectorhub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		MaxResults:   getEnvInt("MAX_RESULTS", 100),

		NewsAPIKey:  getEnv("NEWS_API_KEY", ""),
		NewsCountry: getEnv("NEWS_COUNTRY", "us"),
		NewsCron:    getEnv("NEWS_CRON", "*/5 * * * *"),

		QuoteAPIKey:  getEnv("ALPHAVANTAGE_API_KEY", ""),
		QuoteSymbols: splitList(getEnv("QUOTE_SYMBOLS", "")),
		QuoteCron:    getEnv("QUOTE_CRON", "*/5 * * * *"),

		PaperAPIKey:     getEnv("SPRINGER_API_KEY", ""),
		PaperWindowDays: getEnvInt("PAPER_WINDOW_DAYS", 60),
		PaperCron:       getEnv("PAPER_CRON", "*/15 * * * *"),

		TrendEndpoints: parsePairs(getEnv("TREND_SOURCES", "")),
		TrendCron:      getEnv("TREND_CRON", "0 * * * *"),

		FeedURLs: parsePairs(getEnv("FEED_URLS", "")),
		FeedCron: getEnv("FEED_CRON", "*/10 * * * *"),

		ScrapeEnabled: getEnvBool("SCRAPE_ENABLED", true),
		ScrapeCron:    getEnv("SCRAPE_CRON", "*/10 * * * *"),
	}

	log.Printf("config loaded: port=%s timeout=%s maxResults=%d", cfg.AppPort, cfg.FetchTimeout, cfg.MaxResults)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parsePairs parses "key=value,key=value" env lists.
func parsePairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitList(raw) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
