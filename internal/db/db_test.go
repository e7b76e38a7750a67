package db

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"qrportal/internal/clock"
	"qrportal/internal/config"
	"qrportal/internal/model"
	"qrportal/internal/schedule"
	"qrportal/internal/status"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bangkok = time.FixedZone("ICT", 7*3600)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.db")
	db, err := NewDB(path, bangkok, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, bangkok)
}

func strPtr(s string) *string { return &s }

func TestStandardHours(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetStandardHours(ctx, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, db.UpsertStandardHours(ctx, 0, []string{"09:00-12:00", "13:00-17:00"}))
	require.NoError(t, db.UpsertStandardHours(ctx, 6, nil))

	mon, err := db.GetStandardHours(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00-12:00", "13:00-17:00"}, mon.TimeRanges)

	sun, err := db.GetStandardHours(ctx, 6)
	require.NoError(t, err)
	assert.Empty(t, sun.TimeRanges)
	assert.NotNil(t, sun.TimeRanges)

	// Replacing keeps a single row per weekday.
	require.NoError(t, db.UpsertStandardHours(ctx, 0, []string{"10:00-11:00"}))
	all, err := db.ListStandardHours(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"10:00-11:00"}, all[0].TimeRanges)

	assert.Error(t, db.UpsertStandardHours(ctx, 7, nil))
}

func TestExceptions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	d := date(2025, 12, 24)

	_, err := db.GetException(ctx, d)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, db.UpsertException(ctx, &model.HourException{
		Date:       d,
		TimeRanges: []string{"09:00-12:00"},
		Note:       strPtr("Christmas Eve"),
	}))

	got, err := db.GetException(ctx, d)
	require.NoError(t, err)
	assert.False(t, got.Closed)
	assert.Equal(t, []string{"09:00-12:00"}, got.TimeRanges)
	require.NotNil(t, got.Note)
	assert.Equal(t, "Christmas Eve", *got.Note)
	assert.True(t, got.Date.Equal(d))

	// SetDayOff never overwrites an existing exception.
	created, err := db.SetDayOff(ctx, d, "holiday")
	require.NoError(t, err)
	assert.False(t, created)
	got, err = db.GetException(ctx, d)
	require.NoError(t, err)
	assert.False(t, got.Closed)

	created, err = db.SetDayOff(ctx, date(2025, 12, 25), "")
	require.NoError(t, err)
	assert.True(t, created)

	list, err := db.ListExceptions(ctx, date(2025, 12, 1), date(2025, 12, 31))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[1].Closed)
	assert.Nil(t, list[1].Note)

	require.NoError(t, db.DeleteException(ctx, d))
	require.NoError(t, db.DeleteException(ctx, d))
	_, err = db.GetException(ctx, d)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAvailability(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	d := date(2025, 6, 2)

	_, err := db.GetAvailability(ctx, d)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, db.UpsertAvailability(ctx, d, []string{"09:00-09:30", "10:00-10:30"}))
	require.NoError(t, db.UpsertAvailability(ctx, d, []string{"11:00-11:30"}))

	got, err := db.GetAvailability(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00-11:30"}, got.TimeSlots)
}

func TestStatusLog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.LatestStatus(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)

	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	from := date(2025, 3, 1)
	to := date(2025, 3, 14)
	first := &model.Status{Kind: model.StatusPresent, CreatedAt: base, UpdatedAt: base}
	second := &model.Status{
		Kind:        model.StatusVacation,
		DateFrom:    &from,
		DateTo:      &to,
		Description: strPtr("Spring break"),
		CreatedAt:   base.Add(time.Minute),
		UpdatedAt:   base.Add(time.Minute),
	}
	require.NoError(t, db.InsertStatus(ctx, first))
	require.NoError(t, db.InsertStatus(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	latest, err := db.LatestStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, model.StatusVacation, latest.Kind)
	require.NotNil(t, latest.DateTo)
	assert.True(t, latest.DateTo.Equal(to))
	assert.Nil(t, latest.NextReturn)

	list, err := db.ListStatuses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestStatusLog_SameTimestampOrdersByID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	a := &model.Status{Kind: model.StatusPresent, CreatedAt: at, UpdatedAt: at}
	b := &model.Status{Kind: model.StatusOther, CreatedAt: at, UpdatedAt: at}
	require.NoError(t, db.InsertStatus(ctx, a))
	require.NoError(t, db.InsertStatus(ctx, b))

	latest, err := db.LatestStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, latest.ID)
}

func TestInsertStatusIfLatest(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	got, err := db.InsertStatusIfLatest(ctx, 0, model.NewPresentStatus(now))
	require.NoError(t, err)
	headID := got.ID

	// Stale expectation returns the head unchanged.
	got, err = db.InsertStatusIfLatest(ctx, 0, model.NewPresentStatus(now))
	require.NoError(t, err)
	assert.Equal(t, headID, got.ID)

	list, err := db.ListStatuses(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInsertStatusIfLatest_ConcurrentSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.InsertStatusIfLatest(ctx, 0, model.NewPresentStatus(now))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := db.ListStatuses(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetSetting(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, db.PutSetting(ctx, "k", map[string]int{"a": 1}))
	require.NoError(t, db.PutSetting(ctx, "k", map[string]int{"a": 2}))

	s, err := db.GetSetting(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(s.Value))

	site, err := db.SiteIdentity(ctx)
	require.NoError(t, err)
	assert.Empty(t, site)
}

const siteYAML = `
site:
  name: Klinik Sukhumvit
  phone: "+66 2 000 0000"
hours:
  weekly:
    mon: ["09:00-12:00", "13:00-17:00"]
    tue: ["09:00-12:00"]
    sat: []
  holidays:
    - date: "2025-12-25"
      note: Christmas
    - date: "2026-01-01"
`

func TestSeedFromSite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	site, err := config.ParseSite([]byte(siteYAML))
	require.NoError(t, err)

	seeded, err := db.SeedFromSite(ctx, site)
	require.NoError(t, err)
	assert.True(t, seeded)

	all, err := db.ListStandardHours(ctx)
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.Equal(t, []string{"09:00-12:00", "13:00-17:00"}, all[0].TimeRanges)
	assert.Empty(t, all[6].TimeRanges)

	// Admin edits survive a second seed.
	require.NoError(t, db.UpsertStandardHours(ctx, 0, []string{"08:00-10:00"}))
	seeded, err = db.SeedFromSite(ctx, site)
	require.NoError(t, err)
	assert.False(t, seeded)

	all, err = db.ListStandardHours(ctx)
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.Equal(t, []string{"08:00-10:00"}, all[0].TimeRanges)

	identity, err := db.SiteIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Klinik Sukhumvit", identity["name"])
}

func TestApplyHolidays(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	site, err := config.ParseSite([]byte(siteYAML))
	require.NoError(t, err)

	require.NoError(t, db.UpsertException(ctx, &model.HourException{
		Date:       date(2025, 12, 25),
		TimeRanges: []string{"10:00-12:00"},
	}))

	created, err := db.ApplyHolidays(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	xmas, err := db.GetException(ctx, date(2025, 12, 25))
	require.NoError(t, err)
	assert.False(t, xmas.Closed)

	ny, err := db.GetException(ctx, date(2026, 1, 1))
	require.NoError(t, err)
	assert.True(t, ny.Closed)

	created, err = db.ApplyHolidays(ctx, site)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestBackup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertStandardHours(ctx, 0, []string{"09:00-12:00"}))

	dir := t.TempDir()
	dest := filepath.Join(dir, "backup_1.db")
	require.NoError(t, db.Backup(ctx, dest))
	assert.Error(t, db.Backup(ctx, dest))

	restored, err := NewDB(dest, bangkok, zerolog.Nop())
	require.NoError(t, err)
	defer restored.Close()
	mon, err := restored.GetStandardHours(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00-12:00"}, mon.TimeRanges)

	old := filepath.Join(dir, "backup_0.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "notes.txt"), past, past))

	deleted, err := db.CleanupBackups(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, err = os.Stat(dest)
	assert.NoError(t, err)
}

func TestResolverAgainstDB(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	site, err := config.ParseSite([]byte(siteYAML))
	require.NoError(t, err)
	_, err = db.SeedFromSite(ctx, site)
	require.NoError(t, err)
	_, err = db.ApplyHolidays(ctx, site)
	require.NoError(t, err)

	// Monday 2025-12-22 10:30 local.
	c := clock.Fixed{At: time.Date(2025, 12, 22, 10, 30, 0, 0, bangkok)}
	r := schedule.NewResolver(db, c, zerolog.Nop())

	open, err := r.IsOpenNow(ctx)
	require.NoError(t, err)
	assert.True(t, open)

	xmas, err := r.ResolveDay(ctx, date(2025, 12, 25))
	require.NoError(t, err)
	assert.True(t, xmas.Closed)
	assert.True(t, xmas.IsException)
	require.NotNil(t, xmas.Note)
	assert.Equal(t, "Christmas", *xmas.Note)

	month, err := r.ResolveMonth(ctx, 2025, time.December)
	require.NoError(t, err)
	assert.Len(t, month, 31)
}

func TestStatusManagerAgainstDB(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := clock.Fixed{At: time.Date(2025, 3, 20, 9, 0, 0, 0, bangkok)}
	m := status.NewManager(db, c, nil, zerolog.Nop())

	from := date(2025, 3, 1)
	to := date(2025, 3, 14)
	_, err := m.Set(ctx, status.Update{Kind: model.StatusVacation, DateFrom: &from, DateTo: &to})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cur, err := m.Current(ctx)
			assert.NoError(t, err)
			if cur != nil {
				assert.Equal(t, model.StatusPresent, cur.Kind)
			}
		}()
	}
	wg.Wait()

	history, err := m.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.StatusPresent, history[0].Kind)
	assert.Equal(t, model.StatusVacation, history[1].Kind)
}

func TestBackupService_PerformBackup(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()

	svc := NewBackupService(db, dir, time.Hour, 24*time.Hour, zerolog.Nop())
	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
