package repository

import (
	"context"
	"testing"
	"time"

	"attendance-bridge/internal/attendance/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection to ":memory:" would get its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestGormStateRepository_LoadEmpty(t *testing.T) {
	repo, err := NewGormStateRepository(newTestDB(t))
	require.NoError(t, err)

	state, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.Watermarks)
	assert.True(t, state.Cursor.IsZero())
	assert.Empty(t, state.Daily.Date)
}

func TestGormStateRepository_RoundTrip(t *testing.T) {
	repo, err := NewGormStateRepository(newTestDB(t))
	require.NoError(t, err)

	want := sampleState()
	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assertSameState(t, want, got)
}

func TestGormStateRepository_SaveReplacesWatermarks(t *testing.T) {
	repo, err := NewGormStateRepository(newTestDB(t))
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), sampleState()))

	next := sampleState()
	next.Prune("2026-03-02")
	next.Daily.InNotified = 5
	require.NoError(t, repo.Save(context.Background(), next))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Watermarks, 1)
	_, ok := got.Watermarks[domain.WatermarkKey{SubjectID: "A1", WorkDate: "2026-03-02"}]
	assert.True(t, ok)
	assert.Equal(t, 5, got.Daily.InNotified)
}

func TestGormStateRepository_CursorTruncatedToMicroseconds(t *testing.T) {
	repo, err := NewGormStateRepository(newTestDB(t))
	require.NoError(t, err)

	event := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	state := domain.NewState()
	state.Cursor = event.Add(-time.Microsecond + 600*time.Nanosecond)
	require.NoError(t, repo.Save(context.Background(), state))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Cursor.Equal(event.Add(-time.Microsecond)), "got %s", got.Cursor)
	assert.True(t, got.Cursor.Before(event))
}
