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

// PostgresMasterEventRepository implements MasterEventRepository using pgx
type PostgresMasterEventRepository struct {
	db querier
}

const masterEventColumns = `
	id, tenant_id, title, description, notes, start_time, end_time,
	facility_id, instructor_id, capacity, price,
	registration_deadline, cancellation_deadline,
	pattern_type, pattern_interval, pattern_days_of_week,
	pattern_end_date, pattern_max_occurrences,
	recurrence_status, is_recurring_master, generated_until,
	created_at, updated_at`

// GetByID retrieves a master event by its ID
func (r *PostgresMasterEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MasterEvent, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.master_event.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", id.String()))

	query := `SELECT` + masterEventColumns + `
		FROM master_events
		WHERE id = $1`

	master, err := scanMasterEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrMasterEventNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get master event: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return master, nil
}

// ListActive retrieves all recurring masters with an active status
func (r *PostgresMasterEventRepository) ListActive(ctx context.Context) ([]*domain.MasterEvent, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.master_event.list_active")
	defer span.End()

	query := `SELECT` + masterEventColumns + `
		FROM master_events
		WHERE is_recurring_master = true
			AND recurrence_status = $1
			AND pattern_type <> $2
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query,
		domain.RecurrenceActive.String(),
		domain.PatternNone.String(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list active master events: %w", err)
	}
	defer rows.Close()

	var masters []*domain.MasterEvent
	for rows.Next() {
		master, err := scanMasterEvent(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan master event: %w", err)
		}
		masters = append(masters, master)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating master events: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(masters)))
	span.SetStatus(codes.Ok, "")
	return masters, nil
}

// Update persists the engine-owned fields of a master event
func (r *PostgresMasterEventRepository) Update(ctx context.Context, master *domain.MasterEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.master_event.update")
	defer span.End()

	span.SetAttributes(attribute.String("master_event_id", master.ID.String()))

	query := `
		UPDATE master_events SET
			pattern_type = $2,
			pattern_interval = $3,
			pattern_days_of_week = $4,
			pattern_end_date = $5,
			pattern_max_occurrences = $6,
			recurrence_status = $7,
			is_recurring_master = $8,
			generated_until = $9,
			updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		master.ID,
		master.Pattern.Type.String(),
		master.Pattern.Interval,
		weekdaysToInts(master.Pattern.DaysOfWeek),
		master.Pattern.EndDate,
		master.Pattern.MaxOccurrences,
		master.RecurrenceStatus.String(),
		master.IsRecurringMaster,
		nullableTime(master.GeneratedUntil),
		time.Now().UTC(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update master event: %w", err)
	}
	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrMasterEventNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// scanMasterEvent scans one row into a MasterEvent
func scanMasterEvent(row pgx.Row) (*domain.MasterEvent, error) {
	master := &domain.MasterEvent{}
	var (
		patternType    string
		status         string
		daysOfWeek     []int32
		maxOccurrences *int
		generatedUntil *time.Time
	)

	err := row.Scan(
		&master.ID,
		&master.TenantID,
		&master.Title,
		&master.Description,
		&master.Notes,
		&master.StartTime,
		&master.EndTime,
		&master.FacilityID,
		&master.InstructorID,
		&master.Capacity,
		&master.Price,
		&master.RegistrationDeadline,
		&master.CancellationDeadline,
		&patternType,
		&master.Pattern.Interval,
		&daysOfWeek,
		&master.Pattern.EndDate,
		&maxOccurrences,
		&status,
		&master.IsRecurringMaster,
		&generatedUntil,
		&master.CreatedAt,
		&master.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	master.Pattern.Type = domain.PatternType(patternType)
	master.Pattern.DaysOfWeek = intsToWeekdays(daysOfWeek)
	master.Pattern.MaxOccurrences = maxOccurrences
	master.RecurrenceStatus = domain.RecurrenceStatus(status)
	if generatedUntil != nil {
		// NULL means the master was never generated; the zero time carries
		// that through the domain layer
		master.GeneratedUntil = *generatedUntil
	}
	return master, nil
}

// nullableTime maps the zero time to NULL
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// weekdaysToInts converts a weekday set to its int[] column representation
func weekdaysToInts(days []time.Weekday) []int32 {
	if len(days) == 0 {
		return nil
	}
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

// intsToWeekdays converts an int[] column value back to a weekday set
func intsToWeekdays(values []int32) []time.Weekday {
	if len(values) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(values))
	for i, v := range values {
		out[i] = time.Weekday(v)
	}
	return out
}

// Ensure PostgresMasterEventRepository implements MasterEventRepository
var _ MasterEventRepository = (*PostgresMasterEventRepository)(nil)
