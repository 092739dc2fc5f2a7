package services

import (
	"context"
	"time"

	"github.com/cppla/aishort/models"
)

// InsertOutcome is the non-error result of RecordStore.Insert.
type InsertOutcome int

const (
	// InsertFailed accompanies a non-nil error; it says nothing about the alias.
	InsertFailed InsertOutcome = iota
	// Inserted means the record was persisted and now carries its store id.
	Inserted
	// Conflict means the unique alias constraint rejected the row.
	Conflict
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertFailed:
		return "failed"
	case Inserted:
		return "inserted"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Stats aggregates counters over the urls table.
type Stats struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	TotalClicks int64 `json:"total_clicks"`
}

// RecordStore persists URL records. Implementations must enforce alias
// uniqueness with a store-level constraint and must be safe for concurrent use.
// Failures other than "not found" and "conflict" wrap ErrStoreUnavailable.
type RecordStore interface {
	// Exists reports whether any row, deleted or expired included, holds alias.
	Exists(ctx context.Context, alias string) (bool, error)
	// Insert persists rec. A unique violation yields (Conflict, nil); any other
	// failure yields (InsertFailed, err).
	Insert(ctx context.Context, rec *models.URLRecord) (InsertOutcome, error)
	// FindActive returns the record for alias if it is not deleted and expires after now.
	FindActive(ctx context.Context, alias string, now time.Time) (*models.URLRecord, error)
	// Find returns the non-deleted record for alias regardless of expiry.
	Find(ctx context.Context, alias string) (*models.URLRecord, error)
	// IncrementClicks bumps the click counter of record id.
	IncrementClicks(ctx context.Context, id uint) error
	// SoftDelete marks the non-deleted record for alias as deleted and returns it.
	SoftDelete(ctx context.Context, alias string) (*models.URLRecord, error)
	// HardDelete removes the row for alias outright, deleted or not.
	HardDelete(ctx context.Context, alias string) (*models.URLRecord, error)
	// ListByOwner pages through the non-deleted records of owner, newest first.
	ListByOwner(ctx context.Context, owner string, offset, limit int) ([]models.URLRecord, int64, error)
	// PurgeStale hard-deletes up to limit rows expired or soft-deleted before cutoff.
	PurgeStale(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	// Stats counts rows and clicks; Active uses now for the expiry filter.
	Stats(ctx context.Context, now time.Time) (Stats, error)
}
