package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/pkg/telemetry"
)

// PostgresOccurrenceRepository implements OccurrenceRepository using pgx
type PostgresOccurrenceRepository struct {
	db querier
}

const occurrenceColumns = `
	id, tenant_id, master_event_id, occurrence_number,
	title, description, notes, start_time, end_time,
	facility_id, instructor_id, capacity, price,
	registration_deadline, cancellation_deadline,
	enrolled_count, status, created_at, updated_at`

// GetByID retrieves an occurrence by its ID
func (r *PostgresOccurrenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Occurrence, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("occurrence_id", id.String()))

	query := `SELECT` + occurrenceColumns + `
		FROM occurrences
		WHERE id = $1`

	occ, err := scanOccurrence(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrOccurrenceNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get occurrence: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return occ, nil
}

// CreateBatch inserts a batch of generated occurrences
func (r *PostgresOccurrenceRepository) CreateBatch(ctx context.Context, occurrences []*domain.Occurrence) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.create_batch")
	defer span.End()

	span.SetAttributes(attribute.Int("count", len(occurrences)))

	if len(occurrences) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	query := `
		INSERT INTO occurrences (` + occurrenceColumns + `)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15,
			$16, $17, $18, $19
		)
	`

	batch := &pgx.Batch{}
	for _, occ := range occurrences {
		batch.Queue(query,
			occ.ID,
			occ.TenantID,
			occ.MasterEventID,
			occ.OccurrenceNumber,
			occ.Title,
			occ.Description,
			occ.Notes,
			occ.StartTime,
			occ.EndTime,
			occ.FacilityID,
			occ.InstructorID,
			occ.Capacity,
			occ.Price,
			occ.RegistrationDeadline,
			occ.CancellationDeadline,
			occ.EnrolledCount,
			occ.Status.String(),
			occ.CreatedAt,
			occ.UpdatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range occurrences {
		if _, err := results.Exec(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to insert occurrence batch: %w", err)
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListFutureByMaster retrieves a master's occurrences starting after the
// given instant, ordered by start time
func (r *PostgresOccurrenceRepository) ListFutureByMaster(ctx context.Context, masterID uuid.UUID, after time.Time) ([]*domain.Occurrence, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.list_future_by_master")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", masterID.String()))

	query := `SELECT` + occurrenceColumns + `
		FROM occurrences
		WHERE master_event_id = $1 AND start_time > $2
		ORDER BY start_time`

	rows, err := r.db.Query(ctx, query, masterID, after)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list future occurrences: %w", err)
	}
	defer rows.Close()

	occurrences, err := collectOccurrences(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(occurrences)))
	span.SetStatus(codes.Ok, "")
	return occurrences, nil
}

// CountByMaster counts all occurrences of a master
func (r *PostgresOccurrenceRepository) CountByMaster(ctx context.Context, masterID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.count_by_master")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", masterID.String()))

	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM occurrences WHERE master_event_id = $1`, masterID,
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to count occurrences: %w", err)
	}

	span.SetAttributes(attribute.Int("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

// MaxOccurrenceNumber returns the highest occurrence number ever issued for
// a master, zero when none exist
func (r *PostgresOccurrenceRepository) MaxOccurrenceNumber(ctx context.Context, masterID uuid.UUID) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.max_number")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", masterID.String()))

	var max int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(occurrence_number), 0) FROM occurrences WHERE master_event_id = $1`,
		masterID,
	).Scan(&max)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to get max occurrence number: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return max, nil
}

// Update persists an occurrence's mutable fields
func (r *PostgresOccurrenceRepository) Update(ctx context.Context, occ *domain.Occurrence) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.update")
	defer span.End()

	span.SetAttributes(attribute.String("occurrence_id", occ.ID.String()))

	query := `
		UPDATE occurrences SET
			title = $2,
			description = $3,
			notes = $4,
			start_time = $5,
			end_time = $6,
			facility_id = $7,
			instructor_id = $8,
			capacity = $9,
			price = $10,
			registration_deadline = $11,
			cancellation_deadline = $12,
			enrolled_count = $13,
			status = $14,
			updated_at = $15
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		occ.ID,
		occ.Title,
		occ.Description,
		occ.Notes,
		occ.StartTime,
		occ.EndTime,
		occ.FacilityID,
		occ.InstructorID,
		occ.Capacity,
		occ.Price,
		occ.RegistrationDeadline,
		occ.CancellationDeadline,
		occ.EnrolledCount,
		occ.Status.String(),
		time.Now().UTC(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update occurrence: %w", err)
	}
	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrOccurrenceNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateStatusBatch sets the status of the given occurrences
func (r *PostgresOccurrenceRepository) UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status domain.OccurrenceStatus) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.update_status_batch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("count", len(ids)),
		attribute.String("status", status.String()),
	)

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	_, err := r.db.Exec(ctx,
		`UPDATE occurrences SET status = $2, updated_at = $3 WHERE id = ANY($1)`,
		ids, status.String(), time.Now().UTC(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update occurrence statuses: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteBatch deletes the given occurrences
func (r *PostgresOccurrenceRepository) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.delete_batch")
	defer span.End()

	span.SetAttributes(attribute.Int("count", len(ids)))

	if len(ids) == 0 {
		span.SetStatus(codes.Ok, "")
		return 0, nil
	}

	result, err := r.db.Exec(ctx, `DELETE FROM occurrences WHERE id = ANY($1)`, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to delete occurrences: %w", err)
	}

	span.SetAttributes(attribute.Int64("deleted", result.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return result.RowsAffected(), nil
}

// DeleteCompletedBefore deletes completed occurrences whose end time is
// older than the cutoff
func (r *PostgresOccurrenceRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.delete_completed_before")
	defer span.End()

	result, err := r.db.Exec(ctx,
		`DELETE FROM occurrences WHERE status = $1 AND end_time < $2`,
		domain.OccurrenceCompleted.String(), cutoff,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to delete completed occurrences: %w", err)
	}

	span.SetAttributes(attribute.Int64("deleted", result.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return result.RowsAffected(), nil
}

// ListOrphaned retrieves occurrences whose master event no longer exists
func (r *PostgresOccurrenceRepository) ListOrphaned(ctx context.Context) ([]*domain.Occurrence, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.occurrence.list_orphaned")
	defer span.End()

	query := `SELECT` + occurrenceColumns + `
		FROM occurrences o
		WHERE NOT EXISTS (
			SELECT 1 FROM master_events m WHERE m.id = o.master_event_id
		)`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list orphaned occurrences: %w", err)
	}
	defer rows.Close()

	occurrences, err := collectOccurrences(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(occurrences)))
	span.SetStatus(codes.Ok, "")
	return occurrences, nil
}

// scanOccurrence scans one row into an Occurrence
func scanOccurrence(row pgx.Row) (*domain.Occurrence, error) {
	occ := &domain.Occurrence{}
	var status string

	err := row.Scan(
		&occ.ID,
		&occ.TenantID,
		&occ.MasterEventID,
		&occ.OccurrenceNumber,
		&occ.Title,
		&occ.Description,
		&occ.Notes,
		&occ.StartTime,
		&occ.EndTime,
		&occ.FacilityID,
		&occ.InstructorID,
		&occ.Capacity,
		&occ.Price,
		&occ.RegistrationDeadline,
		&occ.CancellationDeadline,
		&occ.EnrolledCount,
		&status,
		&occ.CreatedAt,
		&occ.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	occ.Status = domain.OccurrenceStatus(status)
	return occ, nil
}

// collectOccurrences drains rows into occurrences
func collectOccurrences(rows pgx.Rows) ([]*domain.Occurrence, error) {
	var occurrences []*domain.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occurrences = append(occurrences, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating occurrences: %w", err)
	}
	return occurrences, nil
}

// Ensure PostgresOccurrenceRepository implements OccurrenceRepository
var _ OccurrenceRepository = (*PostgresOccurrenceRepository)(nil)
