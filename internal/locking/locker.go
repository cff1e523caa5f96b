// Package locking serializes horizon extension and pattern reconciliation
// per master event. Without it a scheduled extension can interleave with an
// administrator-triggered reconcile on the same master.
package locking

import (
	"context"

	"github.com/google/uuid"
)

// MasterLocker acquires an exclusive lease on one master event
type MasterLocker interface {
	// Acquire takes the lease, returning a release function. It fails with
	// domain.ErrMasterLocked when another operation holds the lease.
	Acquire(ctx context.Context, tenantID, masterID uuid.UUID) (release func(), err error)
}

// NoopLocker performs no locking. Used when Redis is not configured; this
// preserves the unlocked behavior of deployments without a lock backend.
type NoopLocker struct{}

// NewNoopLocker creates a no-op locker
func NewNoopLocker() *NoopLocker {
	return &NoopLocker{}
}

// Acquire always succeeds and releases nothing
func (l *NoopLocker) Acquire(ctx context.Context, tenantID, masterID uuid.UUID) (func(), error) {
	return func() {}, nil
}

// Ensure NoopLocker implements MasterLocker
var _ MasterLocker = (*NoopLocker)(nil)
