// Package recurrence implements the pure occurrence generation algorithm.
// Generation is a side-effect-free function over a master event template,
// a recurrence pattern and a date window; persistence belongs to callers.
package recurrence

import (
	"time"

	"github.com/google/uuid"

	"github.com/fitstack/recurrence/internal/domain"
)

const (
	// DefaultMaxPerGeneration bounds a single Generate call regardless of
	// window size, so one unit of work can never run away.
	DefaultMaxPerGeneration = 500

	// weeklyLookaheadDays bounds the day-by-day scan for weekly patterns
	// with an explicit weekday set. A misconfigured set that never matches
	// within two weeks falls back to plain interval stepping.
	weeklyLookaheadDays = 14
)

// Generator materializes occurrences from a recurrence pattern
type Generator struct {
	maxPerCall int
}

// NewGenerator creates a generator with the given per-call safety cap.
// A non-positive cap falls back to DefaultMaxPerGeneration.
func NewGenerator(maxPerCall int) *Generator {
	if maxPerCall <= 0 {
		maxPerCall = DefaultMaxPerGeneration
	}
	return &Generator{maxPerCall: maxPerCall}
}

// Generate returns the ordered occurrences of the pattern inside
// [windowStart, windowEnd], numbered from startingNumber. A None pattern
// yields an empty sequence; an invalid pattern or window fails fast.
// All output timestamps are normalized to UTC.
func (g *Generator) Generate(
	master *domain.MasterEvent,
	pattern *domain.RecurrencePattern,
	windowStart, windowEnd time.Time,
	startingNumber int,
) ([]*domain.Occurrence, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	if pattern.Type == domain.PatternNone {
		return nil, nil
	}

	windowStart = windowStart.UTC()
	windowEnd = windowEnd.UTC()
	if windowStart.After(windowEnd) {
		return nil, domain.ErrInvalidWindow
	}
	if startingNumber < 1 {
		startingNumber = 1
	}

	masterStart := master.StartTime.UTC()
	current := masterStart
	if windowStart.After(current) {
		// Keep the master's time of day when entering mid-window
		current = atClockOf(windowStart, masterStart)
		if current.Before(windowStart) {
			current = current.AddDate(0, 0, 1)
		}
	}
	if pattern.Type == domain.PatternWeekly && len(pattern.DaysOfWeek) > 0 {
		current = alignToWeekdaySet(current, pattern)
	}

	duration := master.Duration()
	number := startingNumber

	var occurrences []*domain.Occurrence
	for {
		if current.After(windowEnd) {
			break
		}
		if pattern.EndDate != nil && current.After(pattern.EndDate.UTC()) {
			break
		}
		if pattern.MaxOccurrences != nil && number > *pattern.MaxOccurrences {
			break
		}
		if len(occurrences) >= g.maxPerCall {
			break
		}

		occurrences = append(occurrences, buildOccurrence(master, current, duration, number))
		number++
		current = nextDate(current, pattern)
	}

	return occurrences, nil
}

// nextDate advances the candidate date by one pattern step
func nextDate(current time.Time, pattern *domain.RecurrencePattern) time.Time {
	switch pattern.Type {
	case domain.PatternDaily:
		return current.AddDate(0, 0, pattern.Interval)
	case domain.PatternWeekly:
		if len(pattern.DaysOfWeek) == 0 {
			return current.AddDate(0, 0, 7*pattern.Interval)
		}
		for d := 1; d <= weeklyLookaheadDays; d++ {
			candidate := current.AddDate(0, 0, d)
			if pattern.ContainsWeekday(candidate.Weekday()) {
				return candidate
			}
		}
		// Pathological weekday set; fall back to plain interval stepping
		return current.AddDate(0, 0, 7*pattern.Interval)
	case domain.PatternMonthly:
		return addMonthsClamped(current, pattern.Interval)
	case domain.PatternYearly:
		return addMonthsClamped(current, 12*pattern.Interval)
	}
	return current
}

// alignToWeekdaySet moves the start forward to the first date whose weekday
// is in the pattern's set, bounded by the same two-week lookahead.
func alignToWeekdaySet(start time.Time, pattern *domain.RecurrencePattern) time.Time {
	if pattern.ContainsWeekday(start.Weekday()) {
		return start
	}
	for d := 1; d <= weeklyLookaheadDays; d++ {
		candidate := start.AddDate(0, 0, d)
		if pattern.ContainsWeekday(candidate.Weekday()) {
			return candidate
		}
	}
	return start
}

// addMonthsClamped adds calendar months, clamping day-of-month overflow to
// the last day of the target month (Jan 31 + 1 month = Feb 28/29). Plain
// time.AddDate would roll the overflow into the following month.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) + months
	year += (m - 1) / 12
	m = (m-1)%12 + 1
	if m < 1 {
		m += 12
		year--
	}
	last := daysIn(year, time.Month(m))
	if day > last {
		day = last
	}
	h, min, sec := t.Clock()
	return time.Date(year, time.Month(m), day, h, min, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// atClockOf returns day's date with the time of day taken from clock
func atClockOf(day, clock time.Time) time.Time {
	y, m, d := day.Date()
	h, min, sec := clock.Clock()
	return time.Date(y, m, d, h, min, sec, clock.Nanosecond(), time.UTC)
}

// buildOccurrence copies the master's display and business fields onto a
// fresh scheduled occurrence at the candidate start, recomputing deadlines
// so the deadline-to-start offset is preserved.
func buildOccurrence(master *domain.MasterEvent, start time.Time, duration time.Duration, number int) *domain.Occurrence {
	now := time.Now().UTC()
	occ := &domain.Occurrence{
		ID:               uuid.New(),
		TenantID:         master.TenantID,
		MasterEventID:    master.ID,
		OccurrenceNumber: number,
		Title:            master.Title,
		Description:      master.Description,
		Notes:            master.Notes,
		StartTime:        start,
		EndTime:          start.Add(duration),
		FacilityID:       master.FacilityID,
		InstructorID:     master.InstructorID,
		Capacity:         master.Capacity,
		Price:            master.Price,
		EnrolledCount:    0,
		Status:           domain.OccurrenceScheduled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if offset, ok := master.RegistrationDeadlineOffset(); ok {
		deadline := start.Add(offset)
		occ.RegistrationDeadline = &deadline
	}
	if offset, ok := master.CancellationDeadlineOffset(); ok {
		deadline := start.Add(offset)
		occ.CancellationDeadline = &deadline
	}
	return occ
}
