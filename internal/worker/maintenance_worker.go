// Package worker contains the background maintenance scheduler that keeps
// every tenant's recurrence horizons topped up.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/internal/repository"
	"github.com/fitstack/recurrence/internal/service"
	"github.com/fitstack/recurrence/pkg/logger"
	"github.com/fitstack/recurrence/pkg/telemetry"
)

// MaintenanceConfig contains configuration for the maintenance scheduler
type MaintenanceConfig struct {
	// Interval between successful maintenance cycles
	Interval time.Duration
	// ErrorRetryInterval is the shortened delay after a failed cycle
	ErrorRetryInterval time.Duration
	// EnableCleanup turns on deletion of old completed occurrences
	EnableCleanup bool
	// EnableIntegrityCheck turns on the read-only integrity scan
	EnableIntegrityCheck bool
}

// DefaultMaintenanceConfig returns default configuration
func DefaultMaintenanceConfig() *MaintenanceConfig {
	return &MaintenanceConfig{
		Interval:             60 * time.Minute,
		ErrorRetryInterval:   15 * time.Minute,
		EnableCleanup:        true,
		EnableIntegrityCheck: true,
	}
}

// CycleStats summarizes one maintenance cycle across all tenants
type CycleStats struct {
	TenantsProcessed     int
	TenantsFailed        int
	MastersExtended      int
	MastersSkippedLocked int
	MastersFailed        int
	OccurrencesGenerated int
	OccurrencesCleaned   int64
}

// MaintenanceScheduler periodically sweeps every active tenant, extending
// recurrence horizons and running cleanup and integrity checks. One failing
// tenant or master never stops the sweep for the rest.
type MaintenanceScheduler struct {
	tenants repository.TenantDirectory
	stores  repository.StoreOpener
	horizon *service.HorizonService
	config  *MaintenanceConfig
	log     *logger.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewMaintenanceScheduler creates a maintenance scheduler
func NewMaintenanceScheduler(tenants repository.TenantDirectory, stores repository.StoreOpener, horizon *service.HorizonService, cfg *MaintenanceConfig) *MaintenanceScheduler {
	if cfg == nil {
		cfg = DefaultMaintenanceConfig()
	}
	return &MaintenanceScheduler{
		tenants: tenants,
		stores:  stores,
		horizon: horizon,
		config:  cfg,
		log:     logger.Get(),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the maintenance loop. The first cycle runs immediately.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.log.Info(fmt.Sprintf("Maintenance scheduler started (interval %s, error retry %s)",
		s.config.Interval, s.config.ErrorRetryInterval))
	return nil
}

// Stop signals the loop to exit and waits for the in-flight cycle to finish
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.log.Info("Maintenance scheduler stopped")
}

// IsRunning reports whether the scheduler loop is active
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *MaintenanceScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		delay := s.config.Interval
		stats, err := s.RunCycle(ctx)
		if err != nil {
			s.log.Error(fmt.Sprintf("Maintenance cycle failed: %v", err))
			delay = s.config.ErrorRetryInterval
		} else {
			s.log.Info(fmt.Sprintf("Maintenance cycle done: %d tenants, %d masters extended, %d occurrences generated, %d cleaned, %d skipped (locked), %d failed",
				stats.TenantsProcessed, stats.MastersExtended, stats.OccurrencesGenerated,
				stats.OccurrencesCleaned, stats.MastersSkippedLocked, stats.MastersFailed))
		}

		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// RunCycle executes one full maintenance sweep over all active tenants.
// It returns an error only when the sweep could not run at all; per-tenant
// and per-master failures are logged, counted and skipped.
func (s *MaintenanceScheduler) RunCycle(ctx context.Context) (*CycleStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "worker.maintenance.cycle")
	defer span.End()

	stats := &CycleStats{}

	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.processTenant(ctx, tenant, stats); err != nil {
			stats.TenantsFailed++
			s.log.Error(fmt.Sprintf("Maintenance failed for tenant %s: %v", tenant.Domain, err))
			continue
		}
		stats.TenantsProcessed++
	}

	span.SetAttributes(
		attribute.Int("tenants_processed", stats.TenantsProcessed),
		attribute.Int("masters_extended", stats.MastersExtended),
		attribute.Int("occurrences_generated", stats.OccurrencesGenerated),
	)
	span.SetStatus(codes.Ok, "")
	return stats, nil
}

// processTenant runs extension, cleanup and integrity for one tenant
func (s *MaintenanceScheduler) processTenant(ctx context.Context, tenant *domain.Tenant, stats *CycleStats) error {
	ctx, span := telemetry.StartSpan(ctx, "worker.maintenance.tenant")
	defer span.End()

	span.SetAttributes(attribute.String("tenant", tenant.Domain))

	store, err := s.stores.Open(ctx, tenant)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	masters, err := store.MasterEvents().ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, master := range masters {
		generated, err := s.horizon.Extend(ctx, store, master)
		if err != nil {
			if errors.Is(err, domain.ErrMasterLocked) {
				// Another run holds the lease; this master waits for the
				// next cycle
				stats.MastersSkippedLocked++
				continue
			}
			stats.MastersFailed++
			s.log.Error(fmt.Sprintf("Horizon extension failed for master %s (tenant %s): %v",
				master.ID, tenant.Domain, err))
			continue
		}
		if len(generated) > 0 {
			stats.MastersExtended++
			stats.OccurrencesGenerated += len(generated)
		}
	}

	if s.config.EnableCleanup {
		deleted, err := s.horizon.CleanupOldOccurrences(ctx, store)
		if err != nil {
			s.log.Error(fmt.Sprintf("Cleanup failed for tenant %s: %v", tenant.Domain, err))
		} else {
			stats.OccurrencesCleaned += deleted
		}
	}

	if s.config.EnableIntegrityCheck {
		if _, err := s.horizon.ValidateIntegrity(ctx, store); err != nil {
			s.log.Error(fmt.Sprintf("Integrity check failed for tenant %s: %v", tenant.Domain, err))
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
