package domain

import (
	"time"

	"github.com/google/uuid"
)

// OccurrenceStatus identifies the lifecycle state of a single occurrence
type OccurrenceStatus string

const (
	OccurrenceScheduled  OccurrenceStatus = "scheduled"
	OccurrenceInProgress OccurrenceStatus = "in_progress"
	OccurrenceCompleted  OccurrenceStatus = "completed"
	OccurrenceCancelled  OccurrenceStatus = "cancelled"
)

// String returns the string representation of the occurrence status
func (s OccurrenceStatus) String() string {
	return string(s)
}

// Occurrence is one concrete, schedulable instance materialized from a
// master event. It references its master but never owns it, and it never
// carries a recurrence pattern of its own.
type Occurrence struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	MasterEventID uuid.UUID `json:"master_event_id"`

	// OccurrenceNumber is unique and strictly increasing per master;
	// gaps are permitted (reconciliation may delete from the middle).
	OccurrenceNumber int `json:"occurrence_number"`

	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Notes        string     `json:"notes"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	FacilityID   *uuid.UUID `json:"facility_id,omitempty"`
	InstructorID *uuid.UUID `json:"instructor_id,omitempty"`
	Capacity     int        `json:"capacity"`
	Price        float64    `json:"price"`

	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	CancellationDeadline *time.Time `json:"cancellation_deadline,omitempty"`

	EnrolledCount int              `json:"enrolled_count"`
	Status        OccurrenceStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OccurrenceUpdate carries the display/business fields that may be changed
// on exactly one occurrence without touching the master or its siblings.
// Nil fields are left unchanged.
type OccurrenceUpdate struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	FacilityID   *uuid.UUID `json:"facility_id,omitempty"`
	InstructorID *uuid.UUID `json:"instructor_id,omitempty"`
	Capacity     *int       `json:"capacity,omitempty"`
	Price        *float64   `json:"price,omitempty"`
}

// Apply copies the non-nil update fields onto the occurrence
func (u *OccurrenceUpdate) Apply(o *Occurrence) {
	if u.Title != nil {
		o.Title = *u.Title
	}
	if u.Description != nil {
		o.Description = *u.Description
	}
	if u.Notes != nil {
		o.Notes = *u.Notes
	}
	if u.StartTime != nil {
		o.StartTime = u.StartTime.UTC()
	}
	if u.EndTime != nil {
		o.EndTime = u.EndTime.UTC()
	}
	if u.FacilityID != nil {
		o.FacilityID = u.FacilityID
	}
	if u.InstructorID != nil {
		o.InstructorID = u.InstructorID
	}
	if u.Capacity != nil {
		o.Capacity = *u.Capacity
	}
	if u.Price != nil {
		o.Price = *u.Price
	}
}
