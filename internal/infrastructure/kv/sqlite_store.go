package kv

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stmap/internal/errs"
	"stmap/internal/infrastructure/persistence/sqlite/model"
	"stmap/internal/ports"
)

// SQLiteStore keeps each slot as one row of the kv_entries table.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.KVStore = (*SQLiteStore)(nil)

func NewSQLiteStore(db *gorm.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return "", false, err
	}

	var row model.KVEntry
	if err := s.db.WithContext(ctx).Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(errs.WithStack(err), "query kv entry by key")
	}

	return row.Value, true, nil
}

// CompareAndSwap inserts the row when oldFound is false and no row exists yet, otherwise
// updates it only while value still equals old. Both are single statements, so the
// database decides which of two racing writers wins.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key string, old string, oldFound bool, value string) (bool, error) {
	trimmedKey, err := checkKey(ctx, key)
	if err != nil {
		return false, err
	}
	updatedAt := s.now().UTC().Format(time.RFC3339Nano)

	if !oldFound {
		row := model.KVEntry{Key: trimmedKey, Value: value, UpdatedAt: updatedAt}
		result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&row)
		if result.Error != nil {
			return false, errs.Wrap(errs.WithStack(result.Error), "insert kv entry")
		}
		return result.RowsAffected == 1, nil
	}

	result := s.db.WithContext(ctx).
		Model(&model.KVEntry{}).
		Where("key = ? AND value = ?", trimmedKey, old).
		Updates(map[string]any{
			"value":      value,
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return false, errs.Wrap(errs.WithStack(result.Error), "update kv entry")
	}
	return result.RowsAffected == 1, nil
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", errors.New("key is required")
	}
	return trimmedKey, nil
}
