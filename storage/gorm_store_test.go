package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/aishort/models"
	"github.com/cppla/aishort/services"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.URLRecord{}))
	return db
}

func record(alias string, created time.Time) *models.URLRecord {
	return &models.URLRecord{
		TargetURL: "https://example.com/" + alias,
		Alias:     alias,
		CreatedAt: created,
		UpdatedAt: created,
		ExpiresAt: created.Add(models.DefaultTTL),
	}
}

func TestInsertReportsConflict(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	now := time.Now()

	first := record("Docs-aB3", now)
	outcome, err := st.Insert(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, services.Inserted, outcome)
	assert.NotZero(t, first.ID)

	outcome, err = st.Insert(ctx, record("Docs-aB3", now))
	require.NoError(t, err)
	assert.Equal(t, services.Conflict, outcome)

	taken, err := st.Exists(ctx, "Docs-aB3")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = st.Exists(ctx, "Docs-zzz")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestConcurrentInsertsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	now := time.Now()

	const n = 8
	outcomes := make([]services.InsertOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := st.Insert(ctx, record("Race-xyz", now))
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, o := range outcomes {
		if o == services.Inserted {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestFindActiveFiltersExpiredAndDeleted(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	now := time.Now()

	live := record("Live-abc", now)
	expired := record("Gone-abc", now.Add(-40*24*time.Hour))
	deleted := record("Dead-abc", now)
	for _, r := range []*models.URLRecord{live, expired, deleted} {
		_, err := st.Insert(ctx, r)
		require.NoError(t, err)
	}
	_, err := st.SoftDelete(ctx, "Dead-abc")
	require.NoError(t, err)

	got, err := st.FindActive(ctx, "Live-abc", now)
	require.NoError(t, err)
	assert.Equal(t, live.TargetURL, got.TargetURL)

	for _, alias := range []string{"Gone-abc", "Dead-abc", "None-abc"} {
		_, err := st.FindActive(ctx, alias, now)
		assert.ErrorIs(t, err, services.ErrRecordNotFound, alias)
	}

	// expired rows are still present for Find, deleted ones are not
	_, err = st.Find(ctx, "Gone-abc")
	assert.NoError(t, err)
	_, err = st.Find(ctx, "Dead-abc")
	assert.ErrorIs(t, err, services.ErrRecordNotFound)

	// the alias stays reserved after soft delete
	taken, err := st.Exists(ctx, "Dead-abc")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestIncrementClicks(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	rec := record("Clicks-1a", time.Now())
	_, err := st.Insert(ctx, rec)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, st.IncrementClicks(ctx, rec.ID))
	}
	got, err := st.Find(ctx, "Clicks-1a")
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.ClickCount)

	assert.ErrorIs(t, st.IncrementClicks(ctx, 9999), services.ErrRecordNotFound)
}

func TestSoftAndHardDelete(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	_, err := st.Insert(ctx, record("Del-abc", time.Now()))
	require.NoError(t, err)

	rec, err := st.SoftDelete(ctx, "Del-abc")
	require.NoError(t, err)
	assert.True(t, rec.DeletedAt.Valid)

	_, err = st.SoftDelete(ctx, "Del-abc")
	assert.ErrorIs(t, err, services.ErrRecordNotFound)

	rec, err = st.HardDelete(ctx, "Del-abc")
	require.NoError(t, err)
	assert.Equal(t, "Del-abc", rec.Alias)

	taken, err := st.Exists(ctx, "Del-abc")
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = st.HardDelete(ctx, "Del-abc")
	assert.ErrorIs(t, err, services.ErrRecordNotFound)
}

func TestListByOwner(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	owner, other := "user_1", "user_2"
	base := time.Now()
	for i := 0; i < 5; i++ {
		r := record(fmt.Sprintf("Mine-%03d", i), base.Add(time.Duration(i)*time.Minute))
		r.OwnerID = &owner
		_, err := st.Insert(ctx, r)
		require.NoError(t, err)
	}
	r := record("Theirs-001", base)
	r.OwnerID = &other
	_, err := st.Insert(ctx, r)
	require.NoError(t, err)

	items, total, err := st.ListByOwner(ctx, owner, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Mine-004", items[0].Alias)
	assert.Equal(t, "Mine-003", items[1].Alias)
}

func TestPurgeStaleAndStats(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	now := time.Now()

	fresh := record("Fresh-001", now)
	fresh.ClickCount = 4
	old := record("Old-00001", now.Add(-60*24*time.Hour))
	justExpired := record("Late-0001", now.Add(-31*24*time.Hour))
	for _, r := range []*models.URLRecord{fresh, old, justExpired} {
		_, err := st.Insert(ctx, r)
		require.NoError(t, err)
	}

	stats, err := st.Stats(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 1, stats.Active)
	assert.EqualValues(t, 4, stats.TotalClicks)

	// old expired 30 days ago, justExpired one day ago
	n, err := st.PurgeStale(ctx, now.Add(-7*24*time.Hour), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	taken, err := st.Exists(ctx, "Old-00001")
	require.NoError(t, err)
	assert.False(t, taken)
	taken, err = st.Exists(ctx, "Late-0001")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestTimestampsComparedInUTC(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	east := time.FixedZone("UTC+5", 5*60*60)
	west := time.FixedZone("UTC-7", -7*60*60)
	now := time.Now()

	expired := &models.URLRecord{
		TargetURL: "https://example.com/expired",
		Alias:     "Zone-old",
		CreatedAt: now.Add(-2 * time.Hour).In(east),
		ExpiresAt: now.Add(-time.Hour).In(east),
	}
	live := &models.URLRecord{
		TargetURL: "https://example.com/live",
		Alias:     "Zone-new",
		CreatedAt: now.In(west),
		ExpiresAt: now.Add(time.Hour).In(west),
	}
	for _, r := range []*models.URLRecord{expired, live} {
		_, err := st.Insert(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, time.UTC, r.ExpiresAt.Location())
	}

	for _, at := range []time.Time{now.UTC(), now.In(east), now.In(west)} {
		_, err := st.FindActive(ctx, "Zone-old", at)
		assert.ErrorIs(t, err, services.ErrRecordNotFound, at.Location().String())

		got, err := st.FindActive(ctx, "Zone-new", at)
		require.NoError(t, err, at.Location().String())
		assert.Equal(t, live.TargetURL, got.TargetURL)

		stats, err := st.Stats(ctx, at)
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.Active, at.Location().String())
	}

	// expired an hour ago; a cutoff half an hour ago in another zone must catch it
	n, err := st.PurgeStale(ctx, now.Add(-30*time.Minute).In(west), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	taken, err := st.Exists(ctx, "Zone-old")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestSoftDeleteStampIsSweptAcrossZones(t *testing.T) {
	ctx := context.Background()
	st := NewGormStore(openTestDB(t))
	_, err := st.Insert(ctx, record("Swept-abc", time.Now()))
	require.NoError(t, err)

	rec, err := st.SoftDelete(ctx, "Swept-abc")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, rec.DeletedAt.Time.Location())

	east := time.FixedZone("UTC+9", 9*60*60)
	n, err := st.PurgeStale(ctx, time.Now().Add(time.Minute).In(east), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestInsertFailureCarriesNoOutcome(t *testing.T) {
	db := openTestDB(t)
	st := NewGormStore(db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	outcome, err := st.Insert(context.Background(), record("Closed-01", time.Now()))
	assert.ErrorIs(t, err, services.ErrStoreUnavailable)
	assert.Equal(t, services.InsertFailed, outcome)
}
