package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/internal/locking"
	"github.com/fitstack/recurrence/internal/recurrence"
	"github.com/fitstack/recurrence/internal/repository"
	"github.com/fitstack/recurrence/pkg/logger"
	"github.com/fitstack/recurrence/pkg/telemetry"
)

// ReconcilerService applies pattern changes to masters that already have
// materialized future occurrences, and edits single occurrences in place.
// Expected business failures come back as a failed ReconciliationResult;
// an error return means infrastructure trouble.
type ReconcilerService struct {
	generator *recurrence.Generator
	locker    locking.MasterLocker
	log       *logger.Logger
}

// NewReconcilerService creates a reconciler service
func NewReconcilerService(locker locking.MasterLocker, maxPerGeneration int) *ReconcilerService {
	if locker == nil {
		locker = locking.NewNoopLocker()
	}
	return &ReconcilerService{
		generator: recurrence.NewGenerator(maxPerGeneration),
		locker:    locker,
		log:       logger.Get(),
	}
}

// reconcilePlan is the computed diff between the current future occurrences
// and the new pattern, before anything is written
type reconcilePlan struct {
	master       *domain.MasterEvent
	registered   []*domain.Occurrence
	unregistered []*domain.Occurrence
	created      []*domain.Occurrence

	conflicts          []domain.ConflictingOccurrence
	totalRegistrations int
}

// Preview computes what a reconcile under the default strategy would do,
// without acquiring the master lock or writing anything. The counts match a
// subsequent Reconcile with StrategyPreserveRegistrations run against
// unchanged data.
func (s *ReconcilerService) Preview(ctx context.Context, store repository.TenantStore, masterID uuid.UUID, newPattern *domain.RecurrencePattern) (*domain.ReconciliationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reconciler.preview")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", masterID.String()))

	master, result, err := s.loadMaster(ctx, store, masterID, newPattern)
	if result != nil || err != nil {
		return result, err
	}

	plan, err := s.computePlan(ctx, store, master, newPattern, domain.StrategyPreserveRegistrations)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result = &domain.ReconciliationResult{
		Success:              true,
		Message:              "Preview only; no changes were applied",
		OccurrencesDeleted:   len(plan.unregistered),
		OccurrencesCreated:   len(plan.created),
		OccurrencesPreserved: len(plan.registered),
		Conflicts:            plan.conflicts,
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// Reconcile replaces a master's future occurrences according to the new
// pattern and the chosen strategy, then persists the new pattern on the
// master. The whole apply runs in one transaction under the master lock.
func (s *ReconcilerService) Reconcile(ctx context.Context, store repository.TenantStore, masterID uuid.UUID, newPattern *domain.RecurrencePattern, strategy domain.UpdateStrategy) (*domain.ReconciliationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reconciler.reconcile")
	defer span.End()

	span.SetAttributes(
		attribute.String("master_event_id", masterID.String()),
		attribute.String("strategy", strategy.String()),
	)

	if !strategy.Valid() {
		span.SetStatus(codes.Error, "invalid strategy")
		return domain.FailedResult(fmt.Sprintf("unknown update strategy %q", strategy)), nil
	}

	master, result, err := s.loadMaster(ctx, store, masterID, newPattern)
	if result != nil || err != nil {
		return result, err
	}

	release, err := s.locker.Acquire(ctx, master.TenantID, master.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMasterLocked) {
			span.SetStatus(codes.Error, "master locked")
			return domain.FailedResult("another operation is currently updating this event; try again shortly"), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer release()

	plan, err := s.computePlan(ctx, store, master, newPattern, strategy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result, err = s.apply(ctx, store, plan, newPattern, strategy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.log.Info(fmt.Sprintf("Reconciled master %s with strategy %s: %d deleted, %d created, %d preserved, %d cancelled, %d registrations affected",
		master.ID, strategy, result.OccurrencesDeleted, result.OccurrencesCreated,
		result.OccurrencesPreserved, result.OccurrencesCancelled, result.RegistrationsAffected))

	span.SetAttributes(
		attribute.Int("deleted", result.OccurrencesDeleted),
		attribute.Int("created", result.OccurrencesCreated),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// UpdateSingleOccurrence edits one occurrence in place without touching the
// master or any sibling occurrence
func (s *ReconcilerService) UpdateSingleOccurrence(ctx context.Context, store repository.TenantStore, occurrenceID uuid.UUID, update *domain.OccurrenceUpdate) (*domain.ReconciliationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reconciler.update_single")
	defer span.End()

	span.SetAttributes(attribute.String("occurrence_id", occurrenceID.String()))

	occ, err := store.Occurrences().GetByID(ctx, occurrenceID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			span.SetStatus(codes.Error, "not found")
			return domain.FailedResult("occurrence not found"), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	update.Apply(occ)
	if err := store.Occurrences().Update(ctx, occ); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &domain.ReconciliationResult{
		Success: true,
		Message: fmt.Sprintf("Occurrence #%d updated; other occurrences unchanged", occ.OccurrenceNumber),
	}, nil
}

// loadMaster fetches the master and validates the requested pattern. A
// non-nil result means the caller should return it as a business failure.
func (s *ReconcilerService) loadMaster(ctx context.Context, store repository.TenantStore, masterID uuid.UUID, newPattern *domain.RecurrencePattern) (*domain.MasterEvent, *domain.ReconciliationResult, error) {
	if newPattern == nil {
		return nil, domain.FailedResult("no recurrence pattern supplied"), nil
	}
	if err := newPattern.Validate(); err != nil {
		return nil, domain.FailedResult(fmt.Sprintf("invalid recurrence pattern: %v", err)), nil
	}

	master, err := store.MasterEvents().GetByID(ctx, masterID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, domain.FailedResult("master event not found"), nil
		}
		return nil, nil, err
	}
	if !master.IsRecurringMaster {
		return nil, domain.FailedResult("event is not a recurring master"), nil
	}
	return master, nil, nil
}

// computePlan partitions the master's future occurrences by registration
// state and generates the replacement set under the new pattern. The
// generation window runs from now to the master's existing horizon, so a
// reconcile never extends the horizon as a side effect.
func (s *ReconcilerService) computePlan(ctx context.Context, store repository.TenantStore, master *domain.MasterEvent, newPattern *domain.RecurrencePattern, strategy domain.UpdateStrategy) (*reconcilePlan, error) {
	now := time.Now().UTC()

	future, err := store.Occurrences().ListFutureByMaster(ctx, master.ID, now)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(future))
	for _, occ := range future {
		ids = append(ids, occ.ID)
	}

	counts, err := store.Registrations().CountByOccurrences(ctx, ids)
	if err != nil {
		return nil, err
	}

	plan := &reconcilePlan{master: master}
	var registeredIDs []uuid.UUID
	for _, occ := range future {
		if counts[occ.ID] > 0 {
			plan.registered = append(plan.registered, occ)
			registeredIDs = append(registeredIDs, occ.ID)
			plan.totalRegistrations += counts[occ.ID]
		} else {
			plan.unregistered = append(plan.unregistered, occ)
		}
	}

	plan.conflicts, err = s.collectConflicts(ctx, store, plan.registered, registeredIDs, counts)
	if err != nil {
		return nil, err
	}

	if !master.GeneratedUntil.After(now) {
		// Horizon already in the past; nothing to regenerate, the next
		// maintenance cycle will extend under the new pattern
		return plan, nil
	}

	maxNumber, err := store.Occurrences().MaxOccurrenceNumber(ctx, master.ID)
	if err != nil {
		return nil, err
	}

	created, err := s.generator.Generate(master, newPattern, now, master.GeneratedUntil, maxNumber+1)
	if err != nil {
		return nil, fmt.Errorf("generation failed for master %s: %w", master.ID, err)
	}

	if strategy == domain.StrategyPreserveRegistrations {
		created = dropCoveredDates(created, plan.registered)
	}
	plan.created = created

	return plan, nil
}

// collectConflicts builds the per-occurrence conflict report, participant
// names included, for every registered future occurrence
func (s *ReconcilerService) collectConflicts(ctx context.Context, store repository.TenantStore, registered []*domain.Occurrence, registeredIDs []uuid.UUID, counts map[uuid.UUID]int) ([]domain.ConflictingOccurrence, error) {
	if len(registered) == 0 {
		return nil, nil
	}

	regs, err := store.Registrations().ListByOccurrences(ctx, registeredIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID][]string)
	for _, r := range regs {
		names[r.OccurrenceID] = append(names[r.OccurrenceID], r.MemberName)
	}

	conflicts := make([]domain.ConflictingOccurrence, 0, len(registered))
	for _, occ := range registered {
		participants := names[occ.ID]
		sort.Strings(participants)
		conflicts = append(conflicts, domain.ConflictingOccurrence{
			OccurrenceID:      occ.ID,
			OccurrenceNumber:  occ.OccurrenceNumber,
			StartTime:         occ.StartTime,
			RegistrationCount: counts[occ.ID],
			ParticipantNames:  participants,
		})
	}
	return conflicts, nil
}

// apply executes the plan under the chosen strategy in one transaction and
// persists the new pattern on the master
func (s *ReconcilerService) apply(ctx context.Context, store repository.TenantStore, plan *reconcilePlan, newPattern *domain.RecurrencePattern, strategy domain.UpdateStrategy) (*domain.ReconciliationResult, error) {
	result := &domain.ReconciliationResult{
		Success:   true,
		Conflicts: plan.conflicts,
	}

	err := store.WithinTx(ctx, func(tx repository.TenantStore) error {
		switch strategy {
		case domain.StrategyPreserveRegistrations:
			deleted, err := tx.Occurrences().DeleteBatch(ctx, occurrenceIDs(plan.unregistered))
			if err != nil {
				return err
			}
			result.OccurrencesDeleted = int(deleted)
			result.OccurrencesPreserved = len(plan.registered)
			result.Message = fmt.Sprintf("Pattern updated; %d registered occurrences kept on their original schedule", len(plan.registered))

		case domain.StrategyForceUpdate:
			all := append(occurrenceIDs(plan.registered), occurrenceIDs(plan.unregistered)...)
			regsDeleted, err := tx.Registrations().DeleteByOccurrences(ctx, occurrenceIDs(plan.registered))
			if err != nil {
				return err
			}
			deleted, err := tx.Occurrences().DeleteBatch(ctx, all)
			if err != nil {
				return err
			}
			result.OccurrencesDeleted = int(deleted)
			result.RegistrationsAffected = int(regsDeleted)
			result.Message = "Pattern updated; all future occurrences were rebuilt"

		case domain.StrategyCancelConflicts:
			if err := tx.Occurrences().UpdateStatusBatch(ctx, occurrenceIDs(plan.registered), domain.OccurrenceCancelled); err != nil {
				return err
			}
			deleted, err := tx.Occurrences().DeleteBatch(ctx, occurrenceIDs(plan.unregistered))
			if err != nil {
				return err
			}
			result.OccurrencesDeleted = int(deleted)
			result.OccurrencesCancelled = len(plan.registered)
			result.RegistrationsAffected = plan.totalRegistrations
			result.Message = fmt.Sprintf("Pattern updated; %d registered occurrences were cancelled", len(plan.registered))

		default:
			return domain.ErrInvalidStrategy
		}

		if err := tx.Occurrences().CreateBatch(ctx, plan.created); err != nil {
			return err
		}
		result.OccurrencesCreated = len(plan.created)

		plan.master.Pattern = *newPattern
		return tx.MasterEvents().Update(ctx, plan.master)
	})
	if err != nil {
		return nil, err
	}

	if len(plan.conflicts) > 0 && strategy != domain.StrategyPreserveRegistrations {
		result.AddWarning(fmt.Sprintf("%d occurrences had existing registrations; affected members should be notified", len(plan.conflicts)))
	}
	return result, nil
}

// dropCoveredDates removes generated occurrences that fall on the same UTC
// calendar date as a preserved occurrence, so a kept session is not doubled
func dropCoveredDates(created, preserved []*domain.Occurrence) []*domain.Occurrence {
	if len(preserved) == 0 {
		return created
	}
	covered := make(map[string]struct{}, len(preserved))
	for _, occ := range preserved {
		covered[occ.StartTime.UTC().Format("2006-01-02")] = struct{}{}
	}
	kept := created[:0]
	for _, occ := range created {
		if _, ok := covered[occ.StartTime.UTC().Format("2006-01-02")]; !ok {
			kept = append(kept, occ)
		}
	}
	return kept
}

// occurrenceIDs extracts the IDs of a slice of occurrences
func occurrenceIDs(occurrences []*domain.Occurrence) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(occurrences))
	for _, occ := range occurrences {
		ids = append(ids, occ.ID)
	}
	return ids
}
