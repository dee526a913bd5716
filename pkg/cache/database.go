package cache

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type cacheEntry struct {
	ID         uint   `gorm:"primaryKey"`
	Cache      string `gorm:"size:250;not null;uniqueIndex:idx_cache_entry"`
	Identifier string `gorm:"size:250;not null;uniqueIndex:idx_cache_entry"`
	Content    []byte
	Expires    int64 `gorm:"not null;default:0"`
}

func (cacheEntry) TableName() string { return "cache" }

type cacheTag struct {
	ID         uint   `gorm:"primaryKey"`
	Cache      string `gorm:"size:250;not null;index:idx_cache_tag"`
	Identifier string `gorm:"size:250;not null"`
	Tag        string `gorm:"size:250;not null;index:idx_cache_tag"`
}

func (cacheTag) TableName() string { return "cache_tags" }

// DatabaseBackend keeps entries of one cache in a shared sql database.
type DatabaseBackend struct {
	db              *gorm.DB
	cacheID         string
	defaultLifetime time.Duration
	now             func() time.Time
}

// OpenSQLite opens the sqlite database used by database backends.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("cache: opening %s: %w", dsn, err)
	}
	return db, nil
}

func NewDatabaseBackend(db *gorm.DB, cacheID string, defaultLifetime time.Duration) (*DatabaseBackend, error) {
	if !ValidIdentifier(cacheID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, cacheID)
	}
	if err := db.AutoMigrate(&cacheEntry{}, &cacheTag{}); err != nil {
		return nil, fmt.Errorf("cache: migrating: %w", err)
	}
	return &DatabaseBackend{db: db, cacheID: cacheID, defaultLifetime: defaultLifetime, now: time.Now}, nil
}

func (b *DatabaseBackend) Set(entryID string, data []byte, tags []string, lifetime time.Duration) error {
	if err := checkEntry(entryID, tags); err != nil {
		return err
	}
	entry := cacheEntry{
		Cache:      b.cacheID,
		Identifier: entryID,
		Content:    data,
		Expires:    expiry(b.now(), lifetime, b.defaultLifetime),
	}
	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := b.delete(tx, entryID); err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		for _, tag := range tags {
			row := cacheTag{Cache: b.cacheID, Identifier: entryID, Tag: tag}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *DatabaseBackend) delete(tx *gorm.DB, entryIDs ...string) error {
	if err := tx.Where("cache = ? AND identifier IN ?", b.cacheID, entryIDs).Delete(&cacheEntry{}).Error; err != nil {
		return err
	}
	return tx.Where("cache = ? AND identifier IN ?", b.cacheID, entryIDs).Delete(&cacheTag{}).Error
}

func (b *DatabaseBackend) Get(entryID string) ([]byte, bool, error) {
	var entry cacheEntry
	err := b.db.Where("cache = ? AND identifier = ?", b.cacheID, entryID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expired(b.now(), entry.Expires) {
		return nil, false, nil
	}
	return entry.Content, true, nil
}

func (b *DatabaseBackend) Has(entryID string) (bool, error) {
	_, ok, err := b.Get(entryID)
	return ok, err
}

func (b *DatabaseBackend) Remove(entryID string) (bool, error) {
	var removed bool
	err := b.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("cache = ? AND identifier = ?", b.cacheID, entryID).Delete(&cacheEntry{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		return tx.Where("cache = ? AND identifier = ?", b.cacheID, entryID).Delete(&cacheTag{}).Error
	})
	return removed, err
}

func (b *DatabaseBackend) Flush() error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cache = ?", b.cacheID).Delete(&cacheEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("cache = ?", b.cacheID).Delete(&cacheTag{}).Error
	})
}

func (b *DatabaseBackend) FlushByTag(tag string) (int, error) {
	var ids []string
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&cacheTag{}).
			Where("cache = ? AND tag = ?", b.cacheID, tag).
			Distinct().Pluck("identifier", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return b.delete(tx, ids...)
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
