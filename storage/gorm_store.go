package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/aishort/models"
	"github.com/cppla/aishort/services"
)

// GormStore implements services.RecordStore on top of gorm.
// The *gorm.DB should be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey; driver messages are checked as a fallback.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Exists looks at every row, soft-deleted and expired ones included,
// because the unique index does too.
func (s *GormStore) Exists(ctx context.Context, alias string) (bool, error) {
	const op = "storage.gorm.Exists"

	var n int64
	err := s.db.WithContext(ctx).Unscoped().
		Model(&models.URLRecord{}).
		Where("alias = ?", alias).
		Count(&n).Error
	if err != nil {
		return false, services.Unavailable(op, err)
	}
	return n > 0, nil
}

func (s *GormStore) Insert(ctx context.Context, rec *models.URLRecord) (services.InsertOutcome, error) {
	const op = "storage.gorm.Insert"

	err := s.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return services.Inserted, nil
	}
	if isDuplicate(err) {
		rec.ID = 0
		return services.Conflict, nil
	}
	return services.InsertFailed, services.Unavailable(op, err)
}

func (s *GormStore) FindActive(ctx context.Context, alias string, now time.Time) (*models.URLRecord, error) {
	const op = "storage.gorm.FindActive"

	var rec models.URLRecord
	err := s.db.WithContext(ctx).
		Where("alias = ? AND expires_at > ?", alias, now.UTC()).
		First(&rec).Error
	if err != nil {
		return nil, notFoundOr(op, err)
	}
	return &rec, nil
}

func (s *GormStore) Find(ctx context.Context, alias string) (*models.URLRecord, error) {
	const op = "storage.gorm.Find"

	var rec models.URLRecord
	if err := s.db.WithContext(ctx).Where("alias = ?", alias).First(&rec).Error; err != nil {
		return nil, notFoundOr(op, err)
	}
	return &rec, nil
}

// IncrementClicks is a single UPDATE so concurrent increments do not lose counts
// at the database level; callers still treat it as best-effort.
func (s *GormStore) IncrementClicks(ctx context.Context, id uint) error {
	const op = "storage.gorm.IncrementClicks"

	res := s.db.WithContext(ctx).
		Model(&models.URLRecord{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"click_count": gorm.Expr("click_count + ?", 1),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return services.Unavailable(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) SoftDelete(ctx context.Context, alias string) (*models.URLRecord, error) {
	const op = "storage.gorm.SoftDelete"

	var rec models.URLRecord
	deletedAt := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("alias = ?", alias).First(&rec).Error; err != nil {
			return err
		}
		// the soft-delete scope adds "deleted_at IS NULL" to the update
		res := tx.Model(&models.URLRecord{}).
			Where("id = ?", rec.ID).
			UpdateColumn("deleted_at", deletedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost a race with another delete
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(op, err)
	}
	rec.DeletedAt = gorm.DeletedAt{Time: deletedAt, Valid: true}
	return &rec, nil
}

func (s *GormStore) HardDelete(ctx context.Context, alias string) (*models.URLRecord, error) {
	const op = "storage.gorm.HardDelete"

	var rec models.URLRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("alias = ?", alias).First(&rec).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&rec).Error
	})
	if err != nil {
		return nil, notFoundOr(op, err)
	}
	return &rec, nil
}

func (s *GormStore) ListByOwner(ctx context.Context, owner string, offset, limit int) ([]models.URLRecord, int64, error) {
	const op = "storage.gorm.ListByOwner"

	var (
		items []models.URLRecord
		total int64
	)
	q := s.db.WithContext(ctx).Model(&models.URLRecord{}).Where("owner_id = ?", owner)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, services.Unavailable(op, err)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, services.Unavailable(op, err)
	}
	return items, total, nil
}

// PurgeStale selects ids first because SQLite builds usually lack DELETE ... LIMIT.
func (s *GormStore) PurgeStale(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	const op = "storage.gorm.PurgeStale"

	cutoff = cutoff.UTC()
	var ids []uint
	err := s.db.WithContext(ctx).Unscoped().
		Model(&models.URLRecord{}).
		Where("expires_at <= ? OR (deleted_at IS NOT NULL AND deleted_at <= ?)", cutoff, cutoff).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, services.Unavailable(op, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Delete(&models.URLRecord{})
	if res.Error != nil {
		return 0, services.Unavailable(op, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Stats(ctx context.Context, now time.Time) (services.Stats, error) {
	const op = "storage.gorm.Stats"

	var st services.Stats
	now = now.UTC()
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.URLRecord{}).Count(&st.Total).Error; err != nil {
		return st, services.Unavailable(op, err)
	}
	if err := db.Model(&models.URLRecord{}).Where("expires_at > ?", now).Count(&st.Active).Error; err != nil {
		return st, services.Unavailable(op, err)
	}
	if err := db.Model(&models.URLRecord{}).Select("COALESCE(SUM(click_count),0)").Scan(&st.TotalClicks).Error; err != nil {
		return st, services.Unavailable(op, err)
	}
	return st, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return services.ErrRecordNotFound
	}
	return services.Unavailable(op, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

var _ services.RecordStore = (*GormStore)(nil)
