package domain

import "errors"

// Domain errors
var (
	// Master event errors
	ErrMasterEventNotFound = errors.New("master event not found")
	ErrMasterNotRecurring  = errors.New("master event has no recurrence pattern")

	// Occurrence errors
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	ErrOrphanedOccurrence = errors.New("occurrence references a missing master event")

	// Pattern configuration errors
	ErrUnsupportedPatternType = errors.New("unsupported recurrence pattern type")
	ErrInvalidInterval        = errors.New("recurrence interval must be greater than zero")
	ErrInvalidMaxOccurrences  = errors.New("max occurrences must be greater than zero")
	ErrInvalidWindow          = errors.New("window start must not be after window end")
	ErrInvalidStrategy        = errors.New("unsupported update strategy")

	// Tenant errors
	ErrTenantNotFound = errors.New("tenant not found")

	// Locking errors
	ErrMasterLocked = errors.New("master event is locked by another operation")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrMasterEventNotFound) ||
		errors.Is(err, ErrOccurrenceNotFound) ||
		errors.Is(err, ErrTenantNotFound)
}

// IsValidationError checks if the error is a pattern/input configuration error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnsupportedPatternType) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidMaxOccurrences) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidStrategy)
}
