// Package offline persists the latest list snapshot per scope in a local
// sqlite database. A reopened list renders the cached snapshot immediately
// while its first page is in flight; the fresh page then replaces it.
package offline

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/waveline/feedsync/internal/feed"
	"github.com/waveline/feedsync/internal/logger"
	"github.com/waveline/feedsync/internal/telemetry"
)

// snapshotRow is one cached list. Items are stored as the JSON encoding of
// the engine's item slice; the scope key is the same string the event binder
// filters on.
type snapshotRow struct {
	Scope     string    `gorm:"primaryKey"`
	Items     []byte    `gorm:"not null"`
	Count     int       `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index"`
}

func (snapshotRow) TableName() string { return "snapshots" }

// Cache is the sqlite-backed feed.SnapshotCache.
type Cache struct {
	db *gorm.DB
}

// Open creates or opens the snapshot database at path and migrates the
// schema. Use ":memory:" for a throwaway cache.
func Open(path string) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
		return nil, fmt.Errorf("install cache tracing: %w", err)
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Save replaces the snapshot for one scope.
func (c *Cache) Save(scope string, items []feed.Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	row := snapshotRow{
		Scope:     scope,
		Items:     data,
		Count:     len(items),
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.db.Save(&row).Error; err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the cached snapshot for a scope, if one exists.
func (c *Cache) Load(scope string) ([]feed.Item, bool, error) {
	var row snapshotRow
	err := c.db.First(&row, "scope = ?", scope).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}

	var items []feed.Item
	if err := json.Unmarshal(row.Items, &items); err != nil {
		// A corrupt row is dropped rather than surfaced; the list just
		// starts cold.
		logger.Warn("Dropping corrupt snapshot row",
			logger.WithScope(scope), zap.Error(err))
		c.db.Delete(&snapshotRow{}, "scope = ?", scope)
		return nil, false, nil
	}
	return items, true, nil
}

// Prune removes snapshots not updated within maxAge and returns how many
// rows were dropped.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res := c.db.Delete(&snapshotRow{}, "updated_at < ?", cutoff)
	if res.Error != nil {
		return 0, fmt.Errorf("prune snapshots: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
