package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/pkg/telemetry"
)

// PostgresRegistrationRepository implements RegistrationRepository using pgx
type PostgresRegistrationRepository struct {
	db querier
}

// CountByOccurrences returns per-occurrence registration counts
func (r *PostgresRegistrationRepository) CountByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.registration.count_by_occurrences")
	defer span.End()

	span.SetAttributes(attribute.Int("occurrence_count", len(occurrenceIDs)))

	counts := make(map[uuid.UUID]int, len(occurrenceIDs))
	if len(occurrenceIDs) == 0 {
		span.SetStatus(codes.Ok, "")
		return counts, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT occurrence_id, COUNT(*)
		 FROM registrations
		 WHERE occurrence_id = ANY($1)
		 GROUP BY occurrence_id`,
		occurrenceIDs,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to count registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan registration count: %w", err)
		}
		counts[id] = count
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating registration counts: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return counts, nil
}

// ListByOccurrences retrieves the registrations of the given occurrences
func (r *PostgresRegistrationRepository) ListByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) ([]*domain.Registration, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.registration.list_by_occurrences")
	defer span.End()

	span.SetAttributes(attribute.Int("occurrence_count", len(occurrenceIDs)))

	if len(occurrenceIDs) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, occurrence_id, member_id, member_name, registered_at
		 FROM registrations
		 WHERE occurrence_id = ANY($1)
		 ORDER BY registered_at`,
		occurrenceIDs,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var registrations []*domain.Registration
	for rows.Next() {
		reg := &domain.Registration{}
		if err := rows.Scan(
			&reg.ID,
			&reg.TenantID,
			&reg.OccurrenceID,
			&reg.MemberID,
			&reg.MemberName,
			&reg.RegisteredAt,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating registrations: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(registrations)))
	span.SetStatus(codes.Ok, "")
	return registrations, nil
}

// DeleteByOccurrences deletes all registrations of the given occurrences
func (r *PostgresRegistrationRepository) DeleteByOccurrences(ctx context.Context, occurrenceIDs []uuid.UUID) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.registration.delete_by_occurrences")
	defer span.End()

	span.SetAttributes(attribute.Int("occurrence_count", len(occurrenceIDs)))

	if len(occurrenceIDs) == 0 {
		span.SetStatus(codes.Ok, "")
		return 0, nil
	}

	result, err := r.db.Exec(ctx,
		`DELETE FROM registrations WHERE occurrence_id = ANY($1)`,
		occurrenceIDs,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to delete registrations: %w", err)
	}

	span.SetAttributes(attribute.Int64("deleted", result.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return result.RowsAffected(), nil
}

// Ensure PostgresRegistrationRepository implements RegistrationRepository
var _ RegistrationRepository = (*PostgresRegistrationRepository)(nil)
