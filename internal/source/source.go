package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is the sentinel stored for optional fields the upstream did not
// provide, so every record exposes the same schema to readers.
const NotAvailable = "N/A"

// RawItem is one unparsed item as an adapter fetched it. The shape is
// adapter-private; Normalize turns it into a Record with defined defaults.
type RawItem map[string]any

// Record is the normalized unit every adapter produces before storage.
type Record struct {
	// Collection names the logical collection this record belongs to
	// (headlines / quotes / papers / trends).
	Collection string
	// SourceTag identifies the adapter/origin, needed when several adapters
	// write into one collection (e.g. trends from three platforms).
	SourceTag string
	// IdentityKey is the adapter-chosen uniqueness key, already hashed.
	IdentityKey string

	Headline    string
	URL         string
	Author      string
	Summary     string
	Category    string
	ImageURL    string
	PublishedAt time.Time
	// CollectedAt is when this system observed the record, distinct from the
	// source's own published timestamp (which may be absent or malformed).
	CollectedAt time.Time
	// Extra holds domain-specific payload (OHLCV for quotes, journal/doi for
	// papers, tweet volume for trends).
	Extra map[string]any
}

// Source abstracts one external origin the pipeline can poll.
// Fetch does the network I/O; Normalize is a total pure function and must map
// any missing or malformed field to a default rather than fail.
type Source interface {
	Name() string
	Collection() string
	Fetch(ctx context.Context) ([]RawItem, error)
	Normalize(item RawItem) Record
}

// IdentityKey hashes the given key parts into the stored identity key.
func IdentityKey(parts ...string) string {
	h := sha1.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StringOr returns the trimmed string under key, or def when the field is
// missing, not a string, or blank.
func StringOr(item RawItem, key, def string) string {
	v, ok := item[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// FloatOr returns the float under key, accepting JSON numbers and numeric
// strings, or def otherwise.
func FloatOr(item RawItem, key string, def float64) float64 {
	switch v := item[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// TimeOr parses the field under key with the given layouts, falling back to
// def when absent or malformed.
func TimeOr(item RawItem, key string, def time.Time, layouts ...string) time.Time {
	s, ok := item[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	s = strings.TrimSpace(s)
	if len(layouts) == 0 {
		layouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return def
}
