package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/example/neomart/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// kvEntry is one row of the sql-backed store. Version increases on every
// write and is the compare-and-swap token for transactions.
type kvEntry struct {
	Key       string `gorm:"column:entry_key;primaryKey;type:varchar(191)"`
	Value     []byte `gorm:"type:longblob"`
	Version   int64  `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string {
	return "kv_entries"
}

type SQLRepository struct {
	db *gorm.DB
}

func NewMySQLRepository(cfg *config.MySQLConfig) (*SQLRepository, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	return NewSQLRepository(db)
}

// NewSQLRepository wraps an open gorm connection and migrates the table.
func NewSQLRepository(db *gorm.DB) (*SQLRepository, error) {
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &SQLRepository{db: db}, nil
}

func (s *SQLRepository) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := findEntry(s.db.WithContext(ctx), key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func findEntry(db *gorm.DB, key string) (*kvEntry, error) {
	var e kvEntry
	if err := db.Where("entry_key = ?", key).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *SQLRepository) Set(ctx context.Context, key string, value []byte) error {
	return upsertEntry(s.db.WithContext(ctx), key, value)
}

func upsertEntry(db *gorm.DB, key string, value []byte) error {
	now := time.Now()
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		}),
	}).Create(&kvEntry{Key: key, Value: value, Version: 1, UpdatedAt: now}).Error
}

func (s *SQLRepository) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("entry_key IN ?", keys).Delete(&kvEntry{}).Error
}

// Txn loads the declared keys with their versions, runs fn, then applies
// each write only where the row still carries the version that was read.
func (s *SQLRepository) Txn(ctx context.Context, keys []string, fn func(Txn) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		versions := make(map[string]int64, len(keys))
		values := make(map[string][]byte, len(keys))
		if len(keys) > 0 {
			var rows []kvEntry
			if err := tx.Where("entry_key IN ?", keys).Find(&rows).Error; err != nil {
				return err
			}
			for _, r := range rows {
				versions[r.Key] = r.Version
				values[r.Key] = r.Value
			}
		}

		ws := newWriteSet(func(key string) ([]byte, error) {
			if v, ok := values[key]; ok {
				return clone(v), nil
			}
			if slices.Contains(keys, key) {
				return nil, ErrNotFound
			}
			e, err := findEntry(tx, key)
			if err != nil {
				return nil, err
			}
			return e.Value, nil
		})
		if err := fn(ws); err != nil {
			return err
		}

		return commitWrites(tx, keys, versions, ws, time.Now())
	})
}

// commitWrites applies ws inside tx. Declared keys are written only where
// the row still carries the version read at the start of the transaction;
// any mismatch aborts with ErrConflict.
func commitWrites(tx *gorm.DB, keys []string, versions map[string]int64, ws *writeSet, now time.Time) error {
	for k, v := range ws.writes {
		ver, declared := versions[k]
		if !slices.Contains(keys, k) {
			if err := upsertEntry(tx, k, v); err != nil {
				return err
			}
			continue
		}
		if !declared {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&kvEntry{Key: k, Value: v, Version: 1, UpdatedAt: now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
			continue
		}
		res := tx.Model(&kvEntry{}).
			Where("entry_key = ? AND version = ?", k, ver).
			Updates(map[string]interface{}{"value": v, "version": ver + 1, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
	}

	for _, k := range ws.deletedKeys() {
		ver, ok := versions[k]
		if !ok {
			if err := tx.Where("entry_key = ?", k).Delete(&kvEntry{}).Error; err != nil {
				return err
			}
			continue
		}
		res := tx.Where("entry_key = ? AND version = ?", k, ver).Delete(&kvEntry{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
	}
	return nil
}

func (s *SQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLRepository) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
