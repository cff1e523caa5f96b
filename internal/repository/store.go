// Package repository defines the store adapter contract the engine consumes
// and its PostgreSQL implementation. Each tenant's data lives in its own
// schema; a store handle is always scoped to exactly one tenant.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fitstack/recurrence/internal/domain"
)

// MasterEventRepository defines data access for master events
type MasterEventRepository interface {
	// GetByID retrieves a master event by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MasterEvent, error)

	// ListActive retrieves all recurring masters with an active status
	ListActive(ctx context.Context) ([]*domain.MasterEvent, error)

	// Update persists the engine-owned fields of a master event
	// (pattern, recurrence status, horizon, recurring marker)
	Update(ctx context.Context, master *domain.MasterEvent) error
}

// OccurrenceRepository defines data access for occurrences
type OccurrenceRepository interface {
	// GetByID retrieves an occurrence by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Occurrence, error)

	// CreateBatch inserts a batch of generated occurrences
	CreateBatch(ctx context.Context, occurrences []*domain.Occurrence) error

	// ListFutureByMaster retrieves a master's occurrences starting after the
	// given instant, ordered by start time
	ListFutureByMaster(ctx context.Context, masterID uuid.UUID, after time.Time) ([]*domain.Occurrence, error)

	// CountByMaster counts all occurrences of a master
	CountByMaster(ctx context.Context, masterID uuid.UUID) (int, error)

	// MaxOccurrenceNumber returns the highest occurrence number ever issued
	// for a master, zero when none exist
	MaxOccurrenceNumber(ctx context.Context, masterID uuid.UUID) (int, error)

	// Update persists an occurrence's mutable fields
	Update(ctx context.Context, occurrence *domain.Occurrence) error

	// UpdateStatusBatch sets the status of the given occurrences
	UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status domain.OccurrenceStatus) error

	// DeleteBatch deletes the given occurrences, returning how many rows went
	DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error)

	// DeleteCompletedBefore deletes completed occurrences whose end time is
	// older than the cutoff. Scheduled and cancelled rows are never touched.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ListOrphaned retrieves occurrences whose master event no longer exists
	ListOrphaned(ctx context.Context) ([]*domain.Occurrence, error)
}

// RegistrationRepository defines read/delete access to registrations.
// Registrations are owned by out-of-scope business operations; the engine
// only counts them, lists participants, and cascades deletes on ForceUpdate.
type RegistrationRepository interface {
	// CountByOccurrences returns per-occurrence registration counts for the
	// given occurrence IDs; occurrences with no registrations are absent
	CountByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) (map[uuid.UUID]int, error)

	// ListByOccurrences retrieves the registrations of the given occurrences
	ListByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) ([]*domain.Registration, error)

	// DeleteByOccurrences deletes all registrations of the given occurrences
	DeleteByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) (int64, error)
}

// TenantStore bundles one tenant's repositories with transaction support
type TenantStore interface {
	MasterEvents() MasterEventRepository
	Occurrences() OccurrenceRepository
	Registrations() RegistrationRepository

	// WithinTx runs fn against a transaction-scoped store. All writes made
	// through that store commit together or roll back together.
	WithinTx(ctx context.Context, fn func(TenantStore) error) error
}

// TenantDirectory enumerates the tenants the engine serves
type TenantDirectory interface {
	// ListActive retrieves all tenants with an active status flag
	ListActive(ctx context.Context) ([]*domain.Tenant, error)
}

// StoreOpener opens a store handle scoped to one tenant's schema
type StoreOpener interface {
	// Open returns the tenant's store handle. Handles may be cached by the
	// implementation; callers must not retain them across maintenance cycles.
	Open(ctx context.Context, tenant *domain.Tenant) (TenantStore, error)
}
