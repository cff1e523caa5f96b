package domain

import (
	"time"

	"github.com/google/uuid"
)

// PatternType identifies how a master event repeats
type PatternType string

const (
	PatternNone    PatternType = "none"
	PatternDaily   PatternType = "daily"
	PatternWeekly  PatternType = "weekly"
	PatternMonthly PatternType = "monthly"
	PatternYearly  PatternType = "yearly"
)

// String returns the string representation of the pattern type
func (t PatternType) String() string {
	return string(t)
}

// Valid reports whether the pattern type is one of the supported values
func (t PatternType) Valid() bool {
	switch t {
	case PatternNone, PatternDaily, PatternWeekly, PatternMonthly, PatternYearly:
		return true
	}
	return false
}

// RecurrenceStatus identifies the lifecycle state of a master event's recurrence
type RecurrenceStatus string

const (
	RecurrenceActive    RecurrenceStatus = "active"
	RecurrencePaused    RecurrenceStatus = "paused"
	RecurrenceCompleted RecurrenceStatus = "completed"
)

// String returns the string representation of the recurrence status
func (s RecurrenceStatus) String() string {
	return string(s)
}

// RecurrencePattern is the value type describing how occurrences repeat.
// It is embedded in a master event and never present on an occurrence.
type RecurrencePattern struct {
	Type PatternType `json:"type"`

	// Interval means "every N units" of the pattern type (every 2 weeks, etc.)
	Interval int `json:"interval"`

	// DaysOfWeek is only honored for weekly patterns. An empty set means
	// "same weekday as the master's start time".
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`

	// EndDate is an optional hard stop; no occurrence is generated after it
	EndDate *time.Time `json:"end_date,omitempty"`

	// MaxOccurrences is an optional hard stop counted from occurrence #1
	MaxOccurrences *int `json:"max_occurrences,omitempty"`
}

// Validate checks the pattern for configuration errors. A None pattern is
// valid (it generates nothing); an unsupported type or non-positive interval
// is a caller configuration error and fails fast.
func (p *RecurrencePattern) Validate() error {
	if !p.Type.Valid() {
		return ErrUnsupportedPatternType
	}
	if p.Type == PatternNone {
		return nil
	}
	if p.Interval < 1 {
		return ErrInvalidInterval
	}
	if p.MaxOccurrences != nil && *p.MaxOccurrences < 1 {
		return ErrInvalidMaxOccurrences
	}
	return nil
}

// ContainsWeekday reports whether the given weekday is in the pattern's set
func (p *RecurrencePattern) ContainsWeekday(d time.Weekday) bool {
	for _, wd := range p.DaysOfWeek {
		if wd == d {
			return true
		}
	}
	return false
}

// MasterEvent is the template record a recurring series is generated from.
// Occurrences copy its display and business fields at generation time.
type MasterEvent struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`

	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Notes        string    `json:"notes"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	FacilityID   *uuid.UUID `json:"facility_id,omitempty"`
	InstructorID *uuid.UUID `json:"instructor_id,omitempty"`
	Capacity     int       `json:"capacity"`
	Price        float64   `json:"price"`

	// Optional deadlines on the master; occurrences recompute them by
	// preserving the deadline-to-start offset.
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	CancellationDeadline *time.Time `json:"cancellation_deadline,omitempty"`

	Pattern          RecurrencePattern `json:"pattern"`
	RecurrenceStatus RecurrenceStatus  `json:"recurrence_status"`
	IsRecurringMaster bool             `json:"is_recurring_master"`

	// GeneratedUntil is the horizon: the forward boundary up to which
	// occurrences have been materialized. It only moves forward.
	GeneratedUntil time.Time `json:"generated_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Duration returns the time-of-day span of the event template
func (m *MasterEvent) Duration() time.Duration {
	return m.EndTime.Sub(m.StartTime)
}

// RegistrationDeadlineOffset returns the deadline-to-start offset of the
// master's registration deadline, or false when none is set
func (m *MasterEvent) RegistrationDeadlineOffset() (time.Duration, bool) {
	if m.RegistrationDeadline == nil {
		return 0, false
	}
	return m.RegistrationDeadline.Sub(m.StartTime), true
}

// CancellationDeadlineOffset returns the deadline-to-start offset of the
// master's cancellation deadline, or false when none is set
func (m *MasterEvent) CancellationDeadlineOffset() (time.Duration, bool) {
	if m.CancellationDeadline == nil {
		return 0, false
	}
	return m.CancellationDeadline.Sub(m.StartTime), true
}
