package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/recurrence/internal/domain"

	"github.com/google/uuid"
)

func testMaster(start time.Time, pattern domain.RecurrencePattern) *domain.MasterEvent {
	return &domain.MasterEvent{
		ID:               uuid.New(),
		TenantID:         uuid.New(),
		Title:            "Morning Yoga",
		StartTime:        start,
		EndTime:          start.Add(time.Hour),
		Capacity:         20,
		Price:            12.50,
		Pattern:          pattern,
		RecurrenceStatus: domain.RecurrenceActive,
	}
}

func TestGenerate_NonePatternYieldsNothing(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternNone})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(1, 0, 0), 1)
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestGenerate_InvalidIntervalFailsFast(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 0})

	_, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 1, 0), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestGenerate_InvalidWindowFailsFast(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 1})

	_, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 0, -1), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestGenerate_DailyInterval(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 2})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 0, 9), 1)
	require.NoError(t, err)
	require.Len(t, occs, 5)
	for i, occ := range occs {
		assert.Equal(t, start.AddDate(0, 0, 2*i), occ.StartTime)
		assert.Equal(t, i+1, occ.OccurrenceNumber)
		assert.Equal(t, domain.OccurrenceScheduled, occ.Status)
		assert.Zero(t, occ.EnrolledCount)
	}
}

// Weekly Mon/Wed/Fri over 26 weeks from a Monday start must produce exactly
// 3 occurrences per week, all landing on days from the set.
func TestGenerate_WeeklyThreeDaysTwentySixWeeks(t *testing.T) {
	start := time.Date(2025, 3, 3, 18, 30, 0, 0, time.UTC) // a Monday
	require.Equal(t, time.Monday, start.Weekday())

	master := testMaster(start, domain.RecurrencePattern{
		Type:       domain.PatternWeekly,
		Interval:   1,
		DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	})

	windowEnd := start.AddDate(0, 0, 26*7-1)
	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, windowEnd, 1)
	require.NoError(t, err)
	assert.Len(t, occs, 78)

	prev := time.Time{}
	for i, occ := range occs {
		assert.True(t, master.Pattern.ContainsWeekday(occ.StartTime.Weekday()),
			"occurrence %d landed on %s", i+1, occ.StartTime.Weekday())
		assert.True(t, occ.StartTime.After(prev), "start times must be strictly increasing")
		assert.Equal(t, i+1, occ.OccurrenceNumber)
		prev = occ.StartTime
	}
}

func TestGenerate_WeeklyStartNotInSetAlignsForward(t *testing.T) {
	start := time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC) // a Tuesday
	master := testMaster(start, domain.RecurrencePattern{
		Type:       domain.PatternWeekly,
		Interval:   1,
		DaysOfWeek: []time.Weekday{time.Thursday},
	})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 0, 20), 1)
	require.NoError(t, err)
	require.NotEmpty(t, occs)
	assert.Equal(t, time.Thursday, occs[0].StartTime.Weekday())
	assert.Equal(t, time.Date(2025, 3, 6, 7, 0, 0, 0, time.UTC), occs[0].StartTime)
}

func TestGenerate_WeeklyEmptySetStepsWholeWeeks(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternWeekly, Interval: 2})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 0, 56), 1)
	require.NoError(t, err)
	require.Len(t, occs, 5)
	for i, occ := range occs {
		assert.Equal(t, start.AddDate(0, 0, 14*i), occ.StartTime)
	}
}

// Day-of-month overflow clamps to the last day of the shorter month, and
// later steps continue from the clamped date.
func TestGenerate_MonthlyClampsToShorterMonth(t *testing.T) {
	start := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternMonthly, Interval: 1})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 3, 0), 1)
	require.NoError(t, err)
	require.Len(t, occs, 4)
	assert.Equal(t, time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC), occs[0].StartTime)
	assert.Equal(t, time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC), occs[1].StartTime)
	assert.Equal(t, time.Date(2025, 3, 28, 10, 0, 0, 0, time.UTC), occs[2].StartTime)
	assert.Equal(t, time.Date(2025, 4, 28, 10, 0, 0, 0, time.UTC), occs[3].StartTime)
}

func TestGenerate_YearlyLeapDayClamps(t *testing.T) {
	start := time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternYearly, Interval: 1})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(2, 0, 0), 1)
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC), occs[1].StartTime)
	assert.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), occs[2].StartTime)
}

func TestGenerate_SafetyCapBoundsUnboundedWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 1})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(10, 0, 0), 1)
	require.NoError(t, err)
	assert.Len(t, occs, DefaultMaxPerGeneration)

	occs, err = NewGenerator(25).Generate(master, &master.Pattern, start, start.AddDate(10, 0, 0), 1)
	require.NoError(t, err)
	assert.Len(t, occs, 25)
}

func TestGenerate_MaxOccurrencesCountedFromFirst(t *testing.T) {
	start := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	max := 10
	master := testMaster(start, domain.RecurrencePattern{
		Type:           domain.PatternDaily,
		Interval:       1,
		MaxOccurrences: &max,
	})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(1, 0, 0), 1)
	require.NoError(t, err)
	assert.Len(t, occs, 10)

	// A later batch resuming at number 8 only has room for three more
	occs, err = NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(1, 0, 0), 8)
	require.NoError(t, err)
	assert.Len(t, occs, 3)
}

func TestGenerate_EndDateStops(t *testing.T) {
	start := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)
	master := testMaster(start, domain.RecurrencePattern{
		Type:     domain.PatternDaily,
		Interval: 1,
		EndDate:  &end,
	})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(1, 0, 0), 1)
	require.NoError(t, err)
	assert.Len(t, occs, 5)
}

func TestGenerate_DeadlineOffsetsPreserved(t *testing.T) {
	start := time.Date(2025, 5, 5, 17, 0, 0, 0, time.UTC)
	regDeadline := start.Add(-2 * time.Hour)
	cancelDeadline := start.Add(-24 * time.Hour)

	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternWeekly, Interval: 1})
	master.RegistrationDeadline = &regDeadline
	master.CancellationDeadline = &cancelDeadline

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 2, 0), 1)
	require.NoError(t, err)
	require.NotEmpty(t, occs)
	for _, occ := range occs {
		require.NotNil(t, occ.RegistrationDeadline)
		require.NotNil(t, occ.CancellationDeadline)
		assert.Equal(t, -2*time.Hour, occ.RegistrationDeadline.Sub(occ.StartTime))
		assert.Equal(t, -24*time.Hour, occ.CancellationDeadline.Sub(occ.StartTime))
	}
}

func TestGenerate_MidWindowEntryKeepsMasterClock(t *testing.T) {
	start := time.Date(2025, 1, 6, 19, 15, 0, 0, time.UTC)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 1})

	windowStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	occs, err := NewGenerator(0).Generate(master, &master.Pattern, windowStart, windowStart.AddDate(0, 0, 7), 42)
	require.NoError(t, err)
	require.Len(t, occs, 7)
	assert.Equal(t, 42, occs[0].OccurrenceNumber)
	for _, occ := range occs {
		h, m, _ := occ.StartTime.Clock()
		assert.Equal(t, 19, h)
		assert.Equal(t, 15, m)
		assert.False(t, occ.StartTime.Before(windowStart))
	}
}

func TestGenerate_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, loc)
	master := testMaster(start, domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 1})

	occs, err := NewGenerator(0).Generate(master, &master.Pattern, start, start.AddDate(0, 0, 2), 1)
	require.NoError(t, err)
	require.NotEmpty(t, occs)
	for _, occ := range occs {
		assert.Equal(t, time.UTC, occ.StartTime.Location())
		assert.Equal(t, time.UTC, occ.EndTime.Location())
	}
	assert.True(t, occs[0].StartTime.Equal(start))
}
