package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/internal/repository"
)

// masterRepoMock is a hand-rolled mock of MasterEventRepository
type masterRepoMock struct {
	getByIDFn    func(ctx context.Context, id uuid.UUID) (*domain.MasterEvent, error)
	listActiveFn func(ctx context.Context) ([]*domain.MasterEvent, error)
	updateFn     func(ctx context.Context, master *domain.MasterEvent) error

	updated []*domain.MasterEvent
}

func (m *masterRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.MasterEvent, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrMasterEventNotFound
}

func (m *masterRepoMock) ListActive(ctx context.Context) ([]*domain.MasterEvent, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *masterRepoMock) Update(ctx context.Context, master *domain.MasterEvent) error {
	m.updated = append(m.updated, master)
	if m.updateFn != nil {
		return m.updateFn(ctx, master)
	}
	return nil
}

// occurrenceRepoMock is a hand-rolled mock of OccurrenceRepository
type occurrenceRepoMock struct {
	getByIDFn             func(ctx context.Context, id uuid.UUID) (*domain.Occurrence, error)
	createBatchFn         func(ctx context.Context, occurrences []*domain.Occurrence) error
	listFutureFn          func(ctx context.Context, masterID uuid.UUID, after time.Time) ([]*domain.Occurrence, error)
	countByMasterFn       func(ctx context.Context, masterID uuid.UUID) (int, error)
	maxNumberFn           func(ctx context.Context, masterID uuid.UUID) (int, error)
	updateFn              func(ctx context.Context, occurrence *domain.Occurrence) error
	updateStatusBatchFn   func(ctx context.Context, ids []uuid.UUID, status domain.OccurrenceStatus) error
	deleteBatchFn         func(ctx context.Context, ids []uuid.UUID) (int64, error)
	deleteCompletedFn     func(ctx context.Context, cutoff time.Time) (int64, error)
	listOrphanedFn        func(ctx context.Context) ([]*domain.Occurrence, error)

	createdBatches  [][]*domain.Occurrence
	updated         []*domain.Occurrence
	statusBatches   map[domain.OccurrenceStatus][]uuid.UUID
	deletedBatches  [][]uuid.UUID
	cleanupCutoffs  []time.Time
}

func (m *occurrenceRepoMock) GetByID(ctx context.Context, id uuid.UUID) (*domain.Occurrence, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrOccurrenceNotFound
}

func (m *occurrenceRepoMock) CreateBatch(ctx context.Context, occurrences []*domain.Occurrence) error {
	m.createdBatches = append(m.createdBatches, occurrences)
	if m.createBatchFn != nil {
		return m.createBatchFn(ctx, occurrences)
	}
	return nil
}

func (m *occurrenceRepoMock) ListFutureByMaster(ctx context.Context, masterID uuid.UUID, after time.Time) ([]*domain.Occurrence, error) {
	if m.listFutureFn != nil {
		return m.listFutureFn(ctx, masterID, after)
	}
	return nil, nil
}

func (m *occurrenceRepoMock) CountByMaster(ctx context.Context, masterID uuid.UUID) (int, error) {
	if m.countByMasterFn != nil {
		return m.countByMasterFn(ctx, masterID)
	}
	return 0, nil
}

func (m *occurrenceRepoMock) MaxOccurrenceNumber(ctx context.Context, masterID uuid.UUID) (int, error) {
	if m.maxNumberFn != nil {
		return m.maxNumberFn(ctx, masterID)
	}
	return 0, nil
}

func (m *occurrenceRepoMock) Update(ctx context.Context, occurrence *domain.Occurrence) error {
	m.updated = append(m.updated, occurrence)
	if m.updateFn != nil {
		return m.updateFn(ctx, occurrence)
	}
	return nil
}

func (m *occurrenceRepoMock) UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status domain.OccurrenceStatus) error {
	if m.statusBatches == nil {
		m.statusBatches = make(map[domain.OccurrenceStatus][]uuid.UUID)
	}
	m.statusBatches[status] = append(m.statusBatches[status], ids...)
	if m.updateStatusBatchFn != nil {
		return m.updateStatusBatchFn(ctx, ids, status)
	}
	return nil
}

func (m *occurrenceRepoMock) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	m.deletedBatches = append(m.deletedBatches, ids)
	if m.deleteBatchFn != nil {
		return m.deleteBatchFn(ctx, ids)
	}
	return int64(len(ids)), nil
}

func (m *occurrenceRepoMock) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cleanupCutoffs = append(m.cleanupCutoffs, cutoff)
	if m.deleteCompletedFn != nil {
		return m.deleteCompletedFn(ctx, cutoff)
	}
	return 0, nil
}

func (m *occurrenceRepoMock) ListOrphaned(ctx context.Context) ([]*domain.Occurrence, error) {
	if m.listOrphanedFn != nil {
		return m.listOrphanedFn(ctx)
	}
	return nil, nil
}

// registrationRepoMock is a hand-rolled mock of RegistrationRepository
type registrationRepoMock struct {
	countByOccurrencesFn  func(ctx context.Context, occurrenceIDs []uuid.UUID) (map[uuid.UUID]int, error)
	listByOccurrencesFn   func(ctx context.Context, occurrenceIDs []uuid.UUID) ([]*domain.Registration, error)
	deleteByOccurrencesFn func(ctx context.Context, occurrenceIDs []uuid.UUID) (int64, error)

	deletedFor [][]uuid.UUID
}

func (m *registrationRepoMock) CountByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	if m.countByOccurrencesFn != nil {
		return m.countByOccurrencesFn(ctx, occurrenceIDs)
	}
	return map[uuid.UUID]int{}, nil
}

func (m *registrationRepoMock) ListByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) ([]*domain.Registration, error) {
	if m.listByOccurrencesFn != nil {
		return m.listByOccurrencesFn(ctx, occurrenceIDs)
	}
	return nil, nil
}

func (m *registrationRepoMock) DeleteByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) (int64, error) {
	m.deletedFor = append(m.deletedFor, occurrenceIDs)
	if m.deleteByOccurrencesFn != nil {
		return m.deleteByOccurrencesFn(ctx, occurrenceIDs)
	}
	return 0, nil
}

// storeMock bundles the repository mocks as a TenantStore. WithinTx simply
// runs the function against the same store and counts transactions.
type storeMock struct {
	masters       *masterRepoMock
	occurrences   *occurrenceRepoMock
	registrations *registrationRepoMock

	txCount int
	txErr   error
}

func newStoreMock() *storeMock {
	return &storeMock{
		masters:       &masterRepoMock{},
		occurrences:   &occurrenceRepoMock{},
		registrations: &registrationRepoMock{},
	}
}

func (m *storeMock) MasterEvents() repository.MasterEventRepository    { return m.masters }
func (m *storeMock) Occurrences() repository.OccurrenceRepository      { return m.occurrences }
func (m *storeMock) Registrations() repository.RegistrationRepository  { return m.registrations }

func (m *storeMock) WithinTx(ctx context.Context, fn func(repository.TenantStore) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	m.txCount++
	return fn(m)
}

// lockerMock is a hand-rolled mock of MasterLocker
type lockerMock struct {
	acquireFn func(ctx context.Context, tenantID, masterID uuid.UUID) (func(), error)

	acquired int
	released int
}

func (m *lockerMock) Acquire(ctx context.Context, tenantID, masterID uuid.UUID) (func(), error) {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, tenantID, masterID)
	}
	m.acquired++
	return func() { m.released++ }, nil
}

// Ensure the mocks satisfy the interfaces they stand in for
var (
	_ repository.TenantStore = (*storeMock)(nil)
)
