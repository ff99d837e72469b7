package repository

import (
	"testing"
	"time"

	"attendance-bridge/internal/attendance/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *domain.State {
	in := time.Date(2026, 3, 2, 8, 55, 0, 0, time.UTC)
	out := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
	notified := time.Date(2026, 3, 2, 17, 30, 10, 0, time.UTC)

	state := domain.NewState()
	state.Cursor = out
	state.Daily = domain.DailyCounter{
		Date:           "2026-03-02",
		InNotified:     1,
		OutNotified:    1,
		ActiveSubjects: 1,
		LastNotifiedAt: &notified,
	}
	for _, w := range []*domain.Watermark{
		{SubjectID: "A1", WorkDate: "2026-03-02", FirstInTime: &in, LastOutTime: &out, UpdatedAt: notified},
		{SubjectID: "B2", WorkDate: "2026-03-01", FirstInTime: &in, UpdatedAt: notified},
	} {
		state.Watermarks[w.Key()] = w
	}
	return state
}

// assertSameState compares by instant so backends that normalize time zones
// still match.
func assertSameState(t *testing.T, want, got *domain.State) {
	t.Helper()

	assert.True(t, want.Cursor.Equal(got.Cursor), "cursor: want %v got %v", want.Cursor, got.Cursor)
	assert.Equal(t, want.Daily.Date, got.Daily.Date)
	assert.Equal(t, want.Daily.InNotified, got.Daily.InNotified)
	assert.Equal(t, want.Daily.OutNotified, got.Daily.OutNotified)
	assert.Equal(t, want.Daily.ActiveSubjects, got.Daily.ActiveSubjects)
	assertSameTime(t, want.Daily.LastNotifiedAt, got.Daily.LastNotifiedAt)

	require.Len(t, got.Watermarks, len(want.Watermarks))
	for key, w := range want.Watermarks {
		g, ok := got.Watermarks[key]
		require.True(t, ok, "missing watermark %s", key)
		assertSameTime(t, w.FirstInTime, g.FirstInTime)
		assertSameTime(t, w.LastOutTime, g.LastOutTime)
	}
}

func assertSameTime(t *testing.T, want, got *time.Time) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got), "want %v got %v", *want, *got)
}
