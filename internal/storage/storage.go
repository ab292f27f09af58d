package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/collector-series/collectorhub/internal/source"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Record is the stored row for one normalized item. The (collection,
// identity_key) pair is the dedup contract: at most one row per key within a
// collection, enforced by the unique index and the insert-if-absent write path.
type Record struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	Collection  string `gorm:"size:64;uniqueIndex:idx_collection_identity;index:idx_collection_collected,priority:1" json:"collection"`
	IdentityKey string `gorm:"size:40;uniqueIndex:idx_collection_identity" json:"-"`
	SourceTag   string `gorm:"size:64;index" json:"source"`

	Headline    string            `gorm:"size:512" json:"headline"`
	URL         string            `gorm:"size:1024" json:"url"`
	Author      string            `gorm:"size:256" json:"author"`
	Summary     string            `gorm:"size:2000" json:"summary"`
	Category    string            `gorm:"size:128" json:"category"`
	ImageURL    string            `gorm:"size:1024" json:"imageUrl"`
	PublishedAt time.Time         `gorm:"index" json:"publishedAt"`
	CollectedAt time.Time         `gorm:"index:idx_collection_collected,priority:2" json:"collectedAt"`
	Extra       datatypes.JSONMap `gorm:"type:jsonb" json:"extra"`

	CreatedAt time.Time `json:"-"`
}

// ListOptions filters QueryLatest. Zero values mean "no filter".
type ListOptions struct {
	Collection string
	Source     string
	Query      string // case-insensitive headline substring
	Offset     int
	Limit      int
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 normalizes strings to valid UTF-8 before they hit Postgres;
// scraped pages can carry mixed encodings.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunes caps a string by rune count so it never exceeds the column
// width even when the upstream returns abnormally long text.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func toModel(rec source.Record) *Record {
	return &Record{
		Collection:  rec.Collection,
		IdentityKey: rec.IdentityKey,
		SourceTag:   rec.SourceTag,
		Headline:    truncateRunes(toValidUTF8(rec.Headline), 512),
		URL:         truncateRunes(rec.URL, 1024),
		Author:      truncateRunes(toValidUTF8(rec.Author), 256),
		Summary:     truncateRunes(toValidUTF8(rec.Summary), 2000),
		Category:    truncateRunes(toValidUTF8(rec.Category), 128),
		ImageURL:    truncateRunes(rec.ImageURL, 1024),
		PublishedAt: rec.PublishedAt,
		CollectedAt: rec.CollectedAt,
		Extra:       datatypes.JSONMap(rec.Extra),
	}
}

// Exists reports whether a record with the identity key is already stored.
func (s *Store) Exists(ctx context.Context, collection, identityKey string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&Record{}).
		Where("collection = ? AND identity_key = ?", collection, identityKey).
		Count(&count).Error
	return count > 0, err
}

// InsertIfAbsent stores the record unless its identity key is already present.
// First write wins: a duplicate leaves the stored row untouched even when
// non-key fields differ between fetches.
func (s *Store) InsertIfAbsent(ctx context.Context, rec source.Record) (bool, error) {
	m := toModel(rec)
	tx := s.DB.WithContext(ctx).
		Where("collection = ? AND identity_key = ?", m.Collection, m.IdentityKey).
		FirstOrCreate(m)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// InsertManyIfAbsent writes a batch, counting inserts and duplicates. A store
// error fails the whole batch; counts up to the failure are returned so the
// caller can log attempted vs. completed.
func (s *Store) InsertManyIfAbsent(ctx context.Context, recs []source.Record) (inserted, duplicates int, err error) {
	for _, rec := range recs {
		ok, err := s.InsertIfAbsent(ctx, rec)
		if err != nil {
			return inserted, duplicates, fmt.Errorf("insert %s/%s: %w", rec.Collection, rec.SourceTag, err)
		}
		if ok {
			inserted++
		} else {
			duplicates++
		}
	}
	return inserted, duplicates, nil
}

// listCacheTTL keeps read traffic off the DB between collector runs; entries
// simply expire, no invalidation on write.
const listCacheTTL = 5 * time.Minute

func listCacheKey(opts ListOptions) string {
	return fmt.Sprintf("records:list:%s:%s:%s:%d:%d",
		opts.Collection, opts.Source, opts.Query, opts.Offset, opts.Limit)
}

// QueryLatest returns records sorted by recency of collection, paginated with
// offset/limit, with a Redis cache in front of the DB.
func (s *Store) QueryLatest(ctx context.Context, opts ListOptions) ([]Record, error) {
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 20
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	cacheKey := listCacheKey(opts)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Record
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Record
	db := s.DB.WithContext(ctx).Model(&Record{})
	if opts.Collection != "" {
		db = db.Where("collection = ?", opts.Collection)
	}
	if opts.Source != "" {
		db = db.Where("source_tag = ?", opts.Source)
	}
	if opts.Query != "" {
		db = db.Where("headline ILIKE ?", "%"+opts.Query+"%")
	}
	err := db.Order("collected_at DESC").
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}

	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

// Count returns the total matching rows, for page-count computation.
func (s *Store) Count(ctx context.Context, opts ListOptions) (int64, error) {
	var count int64
	db := s.DB.WithContext(ctx).Model(&Record{})
	if opts.Collection != "" {
		db = db.Where("collection = ?", opts.Collection)
	}
	if opts.Source != "" {
		db = db.Where("source_tag = ?", opts.Source)
	}
	if opts.Query != "" {
		db = db.Where("headline ILIKE ?", "%"+opts.Query+"%")
	}
	err := db.Count(&count).Error
	return count, err
}

// Collections lists the distinct collections currently stored.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	var out []string
	err := s.DB.WithContext(ctx).Model(&Record{}).
		Distinct("collection").
		Order("collection").
		Pluck("collection", &out).Error
	return out, err
}
