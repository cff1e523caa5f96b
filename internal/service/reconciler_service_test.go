package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/internal/recurrence"
)

// reconcileFixture is a master with ten future occurrences, two of which
// carry registrations
type reconcileFixture struct {
	store      *storeMock
	master     *domain.MasterEvent
	registered []*domain.Occurrence
	future     []*domain.Occurrence
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	now := time.Now().UTC()

	master := activeMaster(now.AddDate(0, -1, 0))
	master.GeneratedUntil = now.AddDate(0, 0, 30)

	var future []*domain.Occurrence
	for i := 1; i <= 10; i++ {
		future = append(future, &domain.Occurrence{
			ID:               uuid.New(),
			TenantID:         master.TenantID,
			MasterEventID:    master.ID,
			OccurrenceNumber: i,
			StartTime:        now.AddDate(0, 0, i),
			EndTime:          now.AddDate(0, 0, i).Add(time.Hour),
			Status:           domain.OccurrenceScheduled,
		})
	}
	registered := []*domain.Occurrence{future[1], future[4]}
	counts := map[uuid.UUID]int{
		future[1].ID: 3,
		future[4].ID: 1,
	}
	registrations := []*domain.Registration{
		{ID: uuid.New(), OccurrenceID: future[1].ID, MemberName: "Carol Diaz"},
		{ID: uuid.New(), OccurrenceID: future[1].ID, MemberName: "Alice Wong"},
		{ID: uuid.New(), OccurrenceID: future[1].ID, MemberName: "Bob Reyes"},
		{ID: uuid.New(), OccurrenceID: future[4].ID, MemberName: "Dana Smith"},
	}

	store := newStoreMock()
	store.masters.getByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.MasterEvent, error) {
		if id == master.ID {
			return master, nil
		}
		return nil, domain.ErrMasterEventNotFound
	}
	store.occurrences.listFutureFn = func(ctx context.Context, masterID uuid.UUID, after time.Time) ([]*domain.Occurrence, error) {
		return future, nil
	}
	store.occurrences.maxNumberFn = func(ctx context.Context, masterID uuid.UUID) (int, error) {
		return 10, nil
	}
	store.registrations.countByOccurrencesFn = func(ctx context.Context, occurrenceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
		return counts, nil
	}
	store.registrations.listByOccurrencesFn = func(ctx context.Context, occurrenceIDs []uuid.UUID) ([]*domain.Registration, error) {
		return registrations, nil
	}
	store.registrations.deleteByOccurrencesFn = func(ctx context.Context, occurrenceIDs []uuid.UUID) (int64, error) {
		var n int64
		for _, id := range occurrenceIDs {
			n += int64(counts[id])
		}
		return n, nil
	}

	return &reconcileFixture{store: store, master: master, registered: registered, future: future}
}

func dailyPattern() *domain.RecurrencePattern {
	return &domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 1}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func TestPreview_ReportsDiffWithoutWriting(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	result, err := svc.Preview(context.Background(), fx.store, fx.master.ID, dailyPattern())

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 8, result.OccurrencesDeleted)
	assert.Equal(t, 2, result.OccurrencesPreserved)
	assert.Zero(t, result.RegistrationsAffected)
	assert.Greater(t, result.OccurrencesCreated, 0)

	require.Len(t, result.Conflicts, 2)
	assert.Equal(t, fx.registered[0].ID, result.Conflicts[0].OccurrenceID)
	assert.Equal(t, 3, result.Conflicts[0].RegistrationCount)
	assert.Equal(t, []string{"Alice Wong", "Bob Reyes", "Carol Diaz"}, result.Conflicts[0].ParticipantNames)
	assert.Equal(t, fx.registered[1].ID, result.Conflicts[1].OccurrenceID)
	assert.Equal(t, []string{"Dana Smith"}, result.Conflicts[1].ParticipantNames)

	// Nothing was written
	assert.Zero(t, fx.store.txCount)
	assert.Empty(t, fx.store.occurrences.createdBatches)
	assert.Empty(t, fx.store.occurrences.deletedBatches)
	assert.Empty(t, fx.store.masters.updated)
}

func TestPreview_MatchesPreserveReconcile(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)
	pattern := dailyPattern()

	preview, err := svc.Preview(context.Background(), fx.store, fx.master.ID, pattern)
	require.NoError(t, err)

	applied, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, pattern, domain.StrategyPreserveRegistrations)
	require.NoError(t, err)
	require.True(t, applied.Success)

	assert.Equal(t, preview.OccurrencesDeleted, applied.OccurrencesDeleted)
	assert.Equal(t, preview.OccurrencesCreated, applied.OccurrencesCreated)
	assert.Equal(t, preview.OccurrencesPreserved, applied.OccurrencesPreserved)
}

func TestReconcile_PreserveRegistrations(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)
	pattern := dailyPattern()

	result, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, pattern, domain.StrategyPreserveRegistrations)

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 8, result.OccurrencesDeleted)
	assert.Equal(t, 2, result.OccurrencesPreserved)
	assert.Zero(t, result.OccurrencesCancelled)
	assert.Zero(t, result.RegistrationsAffected)

	// Only the unregistered eight were deleted
	require.Len(t, fx.store.occurrences.deletedBatches, 1)
	deleted := fx.store.occurrences.deletedBatches[0]
	assert.Len(t, deleted, 8)
	for _, kept := range fx.registered {
		assert.NotContains(t, deleted, kept.ID)
	}

	// Registrations were never touched
	assert.Empty(t, fx.store.registrations.deletedFor)

	// No generated occurrence doubles a preserved session's date
	require.Len(t, fx.store.occurrences.createdBatches, 1)
	for _, created := range fx.store.occurrences.createdBatches[0] {
		for _, kept := range fx.registered {
			assert.False(t, sameDate(created.StartTime, kept.StartTime),
				"created occurrence collides with preserved date %s", kept.StartTime)
		}
	}

	// New numbers continue after the highest existing one
	for _, created := range fx.store.occurrences.createdBatches[0] {
		assert.Greater(t, created.OccurrenceNumber, 10)
	}

	// The new pattern landed on the master in the same transaction
	require.Len(t, fx.store.masters.updated, 1)
	assert.Equal(t, *pattern, fx.master.Pattern)
	assert.Equal(t, 1, fx.store.txCount)
}

func TestReconcile_ForceUpdate(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	result, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, dailyPattern(), domain.StrategyForceUpdate)

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 10, result.OccurrencesDeleted)
	assert.Zero(t, result.OccurrencesPreserved)
	assert.Equal(t, 4, result.RegistrationsAffected)
	assert.Greater(t, result.OccurrencesCreated, 0)
	assert.NotEmpty(t, result.Warnings)

	// Registrations on the registered pair were cascaded away
	require.Len(t, fx.store.registrations.deletedFor, 1)
	assert.ElementsMatch(t, []uuid.UUID{fx.registered[0].ID, fx.registered[1].ID},
		fx.store.registrations.deletedFor[0])

	// Every future occurrence went
	require.Len(t, fx.store.occurrences.deletedBatches, 1)
	assert.Len(t, fx.store.occurrences.deletedBatches[0], 10)
}

func TestReconcile_CancelConflicts(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	result, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, dailyPattern(), domain.StrategyCancelConflicts)

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, 8, result.OccurrencesDeleted)
	assert.Equal(t, 2, result.OccurrencesCancelled)
	assert.Equal(t, 4, result.RegistrationsAffected)

	// Registered occurrences were cancelled in place, rows retained
	cancelled := fx.store.occurrences.statusBatches[domain.OccurrenceCancelled]
	assert.ElementsMatch(t, []uuid.UUID{fx.registered[0].ID, fx.registered[1].ID}, cancelled)
	assert.Empty(t, fx.store.registrations.deletedFor)
}

func TestReconcile_InvalidStrategy(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	result, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, dailyPattern(), domain.UpdateStrategy("merge"))

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, fx.store.txCount)
}

func TestReconcile_InvalidPattern(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	bad := &domain.RecurrencePattern{Type: domain.PatternDaily, Interval: 0}
	result, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, bad, domain.StrategyPreserveRegistrations)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, fx.store.txCount)
}

func TestReconcile_MasterNotFound(t *testing.T) {
	fx := newReconcileFixture(t)
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	result, err := svc.Reconcile(context.Background(), fx.store, uuid.New(), dailyPattern(), domain.StrategyPreserveRegistrations)

	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestReconcile_MasterLocked(t *testing.T) {
	fx := newReconcileFixture(t)
	locker := &lockerMock{
		acquireFn: func(ctx context.Context, tenantID, masterID uuid.UUID) (func(), error) {
			return nil, domain.ErrMasterLocked
		},
	}
	svc := NewReconcilerService(locker, recurrence.DefaultMaxPerGeneration)

	result, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, dailyPattern(), domain.StrategyPreserveRegistrations)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Zero(t, fx.store.txCount)
}

func TestReconcile_PastHorizonGeneratesNothing(t *testing.T) {
	fx := newReconcileFixture(t)
	fx.master.GeneratedUntil = time.Now().UTC().AddDate(0, 0, -1)
	fx.store.occurrences.listFutureFn = func(ctx context.Context, masterID uuid.UUID, after time.Time) ([]*domain.Occurrence, error) {
		return nil, nil
	}
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	result, err := svc.Reconcile(context.Background(), fx.store, fx.master.ID, dailyPattern(), domain.StrategyPreserveRegistrations)

	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Zero(t, result.OccurrencesDeleted)
	assert.Zero(t, result.OccurrencesCreated)
	// Pattern still updated so the next maintenance cycle extends with it
	require.Len(t, fx.store.masters.updated, 1)
}

func TestUpdateSingleOccurrence(t *testing.T) {
	occ := &domain.Occurrence{
		ID:               uuid.New(),
		OccurrenceNumber: 7,
		Title:            "Morning Yoga",
		Capacity:         20,
	}
	store := newStoreMock()
	store.occurrences.getByIDFn = func(ctx context.Context, id uuid.UUID) (*domain.Occurrence, error) {
		if id == occ.ID {
			return occ, nil
		}
		return nil, domain.ErrOccurrenceNotFound
	}
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	title := "Sunrise Yoga"
	capacity := 25
	result, err := svc.UpdateSingleOccurrence(context.Background(), store, occ.ID,
		&domain.OccurrenceUpdate{Title: &title, Capacity: &capacity})

	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, store.occurrences.updated, 1)
	assert.Equal(t, "Sunrise Yoga", store.occurrences.updated[0].Title)
	assert.Equal(t, 25, store.occurrences.updated[0].Capacity)
}

func TestUpdateSingleOccurrence_NotFound(t *testing.T) {
	store := newStoreMock()
	svc := NewReconcilerService(&lockerMock{}, recurrence.DefaultMaxPerGeneration)

	result, err := svc.UpdateSingleOccurrence(context.Background(), store, uuid.New(), &domain.OccurrenceUpdate{})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, store.occurrences.updated)
}
