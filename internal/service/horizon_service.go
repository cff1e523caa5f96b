// Package service implements the recurrence engine's business operations:
// horizon extension and maintenance sweeps, and pattern reconciliation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/internal/locking"
	"github.com/fitstack/recurrence/internal/recurrence"
	"github.com/fitstack/recurrence/internal/repository"
	"github.com/fitstack/recurrence/pkg/logger"
	"github.com/fitstack/recurrence/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HorizonConfig contains configuration for the horizon extension manager
type HorizonConfig struct {
	// InitialGenerationMonths is the window generated when a master is first
	// activated
	InitialGenerationMonths int
	// MinimumFutureMonths is the remaining-horizon threshold below which an
	// extension is triggered
	MinimumFutureMonths int
	// ExtensionBatchMonths is the window size of one extension batch
	ExtensionBatchMonths int
	// MaxOccurrencesPerGeneration caps a single generation call
	MaxOccurrencesPerGeneration int
	// HistoryRetentionMonths is how long completed occurrences are kept
	HistoryRetentionMonths int
}

// DefaultHorizonConfig returns default configuration
func DefaultHorizonConfig() *HorizonConfig {
	return &HorizonConfig{
		InitialGenerationMonths:     6,
		MinimumFutureMonths:         3,
		ExtensionBatchMonths:        6,
		MaxOccurrencesPerGeneration: recurrence.DefaultMaxPerGeneration,
		HistoryRetentionMonths:      12,
	}
}

// HorizonService keeps each master's generation horizon rolling forward and
// runs the cleanup and integrity sweeps.
type HorizonService struct {
	generator *recurrence.Generator
	locker    locking.MasterLocker
	config    *HorizonConfig
	log       *logger.Logger
}

// NewHorizonService creates a horizon service
func NewHorizonService(locker locking.MasterLocker, cfg *HorizonConfig) *HorizonService {
	if cfg == nil {
		cfg = DefaultHorizonConfig()
	}
	if locker == nil {
		locker = locking.NewNoopLocker()
	}
	return &HorizonService{
		generator: recurrence.NewGenerator(cfg.MaxOccurrencesPerGeneration),
		locker:    locker,
		config:    cfg,
		log:       logger.Get(),
	}
}

// Extend tops up one master's generation horizon when it has dropped below
// the configured minimum. Masters that are paused, completed or
// non-recurring are skipped; a healthy horizon is a no-op, so calling twice
// in a row never writes twice.
func (s *HorizonService) Extend(ctx context.Context, store repository.TenantStore, master *domain.MasterEvent) ([]*domain.Occurrence, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.horizon.extend")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", master.ID.String()))

	if master.RecurrenceStatus != domain.RecurrenceActive || master.Pattern.Type == domain.PatternNone {
		span.SetStatus(codes.Ok, "not active")
		return nil, nil
	}
	if master.GeneratedUntil.IsZero() {
		// Never generated; seed the horizon instead of extending it
		return s.InitialGeneration(ctx, store, master)
	}

	now := time.Now().UTC()
	threshold := now.AddDate(0, s.config.MinimumFutureMonths, 0)
	if !master.GeneratedUntil.Before(threshold) {
		span.SetStatus(codes.Ok, "horizon healthy")
		return nil, nil
	}

	release, err := s.locker.Acquire(ctx, master.TenantID, master.ID)
	if err != nil {
		span.SetStatus(codes.Error, "lock not acquired")
		return nil, err
	}
	defer release()

	windowStart := master.GeneratedUntil.AddDate(0, 0, 1)
	windowEnd := master.GeneratedUntil.AddDate(0, s.config.ExtensionBatchMonths, 0)

	occurrences, err := s.generateWindow(ctx, store, master, windowStart, windowEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.persistBatch(ctx, store, master, occurrences, windowEnd); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.log.Info(fmt.Sprintf("Extended horizon for master %s: %d occurrences, generated until %s",
		master.ID, len(occurrences), windowEnd.Format(time.RFC3339)))

	span.SetAttributes(attribute.Int("generated", len(occurrences)))
	span.SetStatus(codes.Ok, "")
	return occurrences, nil
}

// InitialGeneration materializes the first batch for a newly created master,
// seeding the horizon from the master's start time and marking it active.
func (s *HorizonService) InitialGeneration(ctx context.Context, store repository.TenantStore, master *domain.MasterEvent) ([]*domain.Occurrence, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.horizon.initial_generation")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", master.ID.String()))

	if master.Pattern.Type == domain.PatternNone {
		span.SetStatus(codes.Error, "not recurring")
		return nil, domain.ErrMasterNotRecurring
	}

	release, err := s.locker.Acquire(ctx, master.TenantID, master.ID)
	if err != nil {
		span.SetStatus(codes.Error, "lock not acquired")
		return nil, err
	}
	defer release()

	windowStart := master.StartTime.UTC()
	windowEnd := windowStart.AddDate(0, s.config.InitialGenerationMonths, 0)

	occurrences, err := s.generateWindow(ctx, store, master, windowStart, windowEnd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	master.RecurrenceStatus = domain.RecurrenceActive
	master.IsRecurringMaster = true

	if err := s.persistBatch(ctx, store, master, occurrences, windowEnd); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.log.Info(fmt.Sprintf("Initial generation for master %s: %d occurrences, generated until %s",
		master.ID, len(occurrences), windowEnd.Format(time.RFC3339)))

	span.SetAttributes(attribute.Int("generated", len(occurrences)))
	span.SetStatus(codes.Ok, "")
	return occurrences, nil
}

// CleanupOldOccurrences deletes completed occurrences older than the
// retention window. Scheduled and cancelled occurrences are never deleted
// here, however old.
func (s *HorizonService) CleanupOldOccurrences(ctx context.Context, store repository.TenantStore) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.horizon.cleanup")
	defer span.End()

	cutoff := time.Now().UTC().AddDate(0, -s.config.HistoryRetentionMonths, 0)
	deleted, err := store.Occurrences().DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}

	if deleted > 0 {
		s.log.Info(fmt.Sprintf("Cleanup removed %d completed occurrences older than %s",
			deleted, cutoff.Format(time.RFC3339)))
	}

	span.SetAttributes(attribute.Int64("deleted", deleted))
	span.SetStatus(codes.Ok, "")
	return deleted, nil
}

// IntegrityReport lists the anomalies found by a read-only integrity scan
type IntegrityReport struct {
	MastersWithoutOccurrences []uuid.UUID
	OrphanedOccurrences       []uuid.UUID
}

// Clean reports whether the scan found no anomalies
func (r *IntegrityReport) Clean() bool {
	return len(r.MastersWithoutOccurrences) == 0 && len(r.OrphanedOccurrences) == 0
}

// ValidateIntegrity scans for active masters with no generated occurrences
// and for orphaned occurrences. Anomalies are logged as warnings and
// reported; nothing is repaired automatically.
func (s *HorizonService) ValidateIntegrity(ctx context.Context, store repository.TenantStore) (*IntegrityReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.horizon.validate_integrity")
	defer span.End()

	report := &IntegrityReport{}

	masters, err := store.MasterEvents().ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("integrity scan failed: %w", err)
	}
	for _, master := range masters {
		count, err := store.Occurrences().CountByMaster(ctx, master.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("integrity scan failed: %w", err)
		}
		if count == 0 {
			s.log.Warn(fmt.Sprintf("Integrity: active master %s (%s) has no generated occurrences",
				master.ID, master.Title))
			report.MastersWithoutOccurrences = append(report.MastersWithoutOccurrences, master.ID)
		}
	}

	orphans, err := store.Occurrences().ListOrphaned(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("integrity scan failed: %w", err)
	}
	for _, occ := range orphans {
		s.log.Warn(fmt.Sprintf("Integrity: occurrence %s references missing master %s",
			occ.ID, occ.MasterEventID))
		report.OrphanedOccurrences = append(report.OrphanedOccurrences, occ.ID)
	}

	span.SetAttributes(
		attribute.Int("masters_without_occurrences", len(report.MastersWithoutOccurrences)),
		attribute.Int("orphaned_occurrences", len(report.OrphanedOccurrences)),
	)
	span.SetStatus(codes.Ok, "")
	return report, nil
}

// generateWindow runs the generator for the window, numbering occurrences
// after the highest number already issued for the master
func (s *HorizonService) generateWindow(ctx context.Context, store repository.TenantStore, master *domain.MasterEvent, windowStart, windowEnd time.Time) ([]*domain.Occurrence, error) {
	maxNumber, err := store.Occurrences().MaxOccurrenceNumber(ctx, master.ID)
	if err != nil {
		return nil, err
	}
	occurrences, err := s.generator.Generate(master, &master.Pattern, windowStart, windowEnd, maxNumber+1)
	if err != nil {
		return nil, fmt.Errorf("generation failed for master %s: %w", master.ID, err)
	}
	return occurrences, nil
}

// persistBatch writes the batch and the advanced horizon as one unit
func (s *HorizonService) persistBatch(ctx context.Context, store repository.TenantStore, master *domain.MasterEvent, occurrences []*domain.Occurrence, newHorizon time.Time) error {
	return store.WithinTx(ctx, func(tx repository.TenantStore) error {
		if err := tx.Occurrences().CreateBatch(ctx, occurrences); err != nil {
			return err
		}
		master.GeneratedUntil = newHorizon
		return tx.MasterEvents().Update(ctx, master)
	})
}
