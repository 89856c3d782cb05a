package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/receitas/internal/database"
	"github.com/MarcoPoloResearchLab/receitas/internal/offline"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationCreateOfflineCacheEntries = "2024-01-02_offline_cache_entries"
	queryCacheKey                      = "cache_name = ? AND entry_key = ?"
	queryCacheName                     = "cache_name = ?"
	orderStoredAsc                     = "stored_at_ns ASC, rowid ASC"
)

var errMissingDatabase = errors.New("cachestore: database handle is required")

// cacheEntryRow stores one cached response.
type cacheEntryRow struct {
	CacheName     string `gorm:"column:cache_name;primaryKey;size:190;not null;index:idx_offline_cache_stored,priority:1"`
	EntryKey      string `gorm:"column:entry_key;primaryKey;size:2048;not null"`
	Status        int    `gorm:"column:status;not null"`
	HeaderJSON    string `gorm:"column:header_json;type:text;not null"`
	Body          []byte `gorm:"column:body;type:blob"`
	StoredAtNanos int64  `gorm:"column:stored_at_ns;not null;index:idx_offline_cache_stored,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (cacheEntryRow) TableName() string {
	return "offline_cache_entries"
}

// GormStorage keeps offline caches in the application database.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage provisions the cache table and returns a Storage backed by db.
func NewGormStorage(ctx context.Context, db *gorm.DB, logger *zap.Logger) (*GormStorage, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	migrations := []database.Migration{
		{
			Name: migrationCreateOfflineCacheEntries,
			Apply: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&cacheEntryRow{})
			},
		},
	}
	if err := database.ApplyMigrations(ctx, db, logger, migrations); err != nil {
		return nil, err
	}
	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Match(ctx context.Context, cacheName, key string) (offline.Entry, bool, error) {
	var row cacheEntryRow
	err := s.db.WithContext(ctx).Where(queryCacheKey, cacheName, key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return offline.Entry{}, false, nil
	}
	if err != nil {
		return offline.Entry{}, false, err
	}

	header := http.Header{}
	if row.HeaderJSON != "" {
		if err := json.Unmarshal([]byte(row.HeaderJSON), &header); err != nil {
			return offline.Entry{}, false, fmt.Errorf("decode cached headers: %w", err)
		}
	}
	return offline.Entry{
		Key:      row.EntryKey,
		Status:   row.Status,
		Header:   header,
		Body:     row.Body,
		StoredAt: time.Unix(0, row.StoredAtNanos).UTC(),
	}, true, nil
}

// Put replaces any entry under the same key; the replacement sorts as the newest entry.
func (s *GormStorage) Put(ctx context.Context, cacheName string, entry offline.Entry) error {
	headerJSON, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("encode headers: %w", err)
	}
	row := cacheEntryRow{
		CacheName:     cacheName,
		EntryKey:      entry.Key,
		Status:        entry.Status,
		HeaderJSON:    string(headerJSON),
		Body:          entry.Body,
		StoredAtNanos: entry.StoredAt.UnixNano(),
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryCacheKey, cacheName, entry.Key).Delete(&cacheEntryRow{}).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
}

func (s *GormStorage) Delete(ctx context.Context, cacheName, key string) error {
	return s.db.WithContext(ctx).Where(queryCacheKey, cacheName, key).Delete(&cacheEntryRow{}).Error
}

func (s *GormStorage) Keys(ctx context.Context, cacheName string) ([]offline.EntryMeta, error) {
	var rows []cacheEntryRow
	err := s.db.WithContext(ctx).
		Select("entry_key", "stored_at_ns").
		Where(queryCacheName, cacheName).
		Order(orderStoredAsc).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	metas := make([]offline.EntryMeta, 0, len(rows))
	for _, row := range rows {
		metas = append(metas, offline.EntryMeta{Key: row.EntryKey, StoredAt: time.Unix(0, row.StoredAtNanos).UTC()})
	}
	return metas, nil
}
