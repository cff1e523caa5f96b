package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/pkg/telemetry"
)

// PostgresTenantDirectory lists tenants from the shared control schema
type PostgresTenantDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresTenantDirectory creates a tenant directory over the control pool
func NewPostgresTenantDirectory(pool *pgxpool.Pool) *PostgresTenantDirectory {
	return &PostgresTenantDirectory{pool: pool}
}

// ListActive retrieves all tenants with an active status flag
func (d *PostgresTenantDirectory) ListActive(ctx context.Context) ([]*domain.Tenant, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.tenant.list_active")
	defer span.End()

	rows, err := d.pool.Query(ctx,
		`SELECT id, name, domain, schema_name, active, created_at
		 FROM tenants
		 WHERE active = true
		 ORDER BY created_at`,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t := &domain.Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Domain, &t.SchemaName, &t.Active, &t.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(tenants)))
	span.SetStatus(codes.Ok, "")
	return tenants, nil
}

// Ensure PostgresTenantDirectory implements TenantDirectory
var _ TenantDirectory = (*PostgresTenantDirectory)(nil)
