package domain

import (
	"time"

	"github.com/google/uuid"
)

// UpdateStrategy selects how reconciliation treats already-materialized
// future occurrences that carry registrations.
type UpdateStrategy string

const (
	// StrategyPreserveRegistrations keeps registered occurrences untouched
	// and only replaces unregistered ones. Default.
	StrategyPreserveRegistrations UpdateStrategy = "preserve_registrations"

	// StrategyForceUpdate deletes every future occurrence, registrations
	// included, and regenerates from scratch.
	StrategyForceUpdate UpdateStrategy = "force_update"

	// StrategyCancelConflicts cancels registered occurrences in place
	// (rows and registrations retained) and replaces the rest.
	StrategyCancelConflicts UpdateStrategy = "cancel_conflicts"
)

// String returns the string representation of the strategy
func (s UpdateStrategy) String() string {
	return string(s)
}

// Valid reports whether the strategy is one of the supported values
func (s UpdateStrategy) Valid() bool {
	switch s {
	case StrategyPreserveRegistrations, StrategyForceUpdate, StrategyCancelConflicts:
		return true
	}
	return false
}

// ConflictingOccurrence describes one registered occurrence affected by a
// pattern change, for operator review.
type ConflictingOccurrence struct {
	OccurrenceID      uuid.UUID `json:"occurrence_id"`
	OccurrenceNumber  int       `json:"occurrence_number"`
	StartTime         time.Time `json:"start_time"`
	RegistrationCount int       `json:"registration_count"`
	ParticipantNames  []string  `json:"participant_names"`
}

// ReconciliationResult is the transient outcome of a reconcile, preview or
// single-occurrence update. It is returned to administrative callers and
// never persisted. Expected business failures (master not found, invalid
// pattern) are reported through Success=false, not through an error.
type ReconciliationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	OccurrencesDeleted    int `json:"occurrences_deleted"`
	OccurrencesCreated    int `json:"occurrences_created"`
	OccurrencesPreserved  int `json:"occurrences_preserved"`
	OccurrencesCancelled  int `json:"occurrences_cancelled"`
	RegistrationsAffected int `json:"registrations_affected"`

	Conflicts []ConflictingOccurrence `json:"conflicts,omitempty"`
	Warnings  []string                `json:"warnings,omitempty"`
}

// FailedResult builds a failed result with the given message
func FailedResult(message string) *ReconciliationResult {
	return &ReconciliationResult{Success: false, Message: message}
}

// AddWarning appends a warning to the result
func (r *ReconciliationResult) AddWarning(w string) {
	r.Warnings = append(r.Warnings, w)
}
