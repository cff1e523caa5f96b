package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx satisfied by both pgxpool.Pool and pgx.Tx,
// so the same repository code serves pooled and transactional stores.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore implements TenantStore over a tenant-scoped pgx pool
type PostgresStore struct {
	db   querier
	pool *pgxpool.Pool // nil when this store is transaction-scoped

	masters       *PostgresMasterEventRepository
	occurrences   *PostgresOccurrenceRepository
	registrations *PostgresRegistrationRepository
}

// NewPostgresStore creates a tenant store over the given pool. The pool's
// search_path must already be scoped to the tenant's schema.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return newStore(pool, pool)
}

func newStore(db querier, pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:            db,
		pool:          pool,
		masters:       &PostgresMasterEventRepository{db: db},
		occurrences:   &PostgresOccurrenceRepository{db: db},
		registrations: &PostgresRegistrationRepository{db: db},
	}
}

// MasterEvents returns the master event repository
func (s *PostgresStore) MasterEvents() MasterEventRepository {
	return s.masters
}

// Occurrences returns the occurrence repository
func (s *PostgresStore) Occurrences() OccurrenceRepository {
	return s.occurrences
}

// Registrations returns the registration repository
func (s *PostgresStore) Registrations() RegistrationRepository {
	return s.registrations
}

// WithinTx runs fn against a transaction-scoped copy of the store. A store
// that is already transactional runs fn in the ambient transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(TenantStore) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(newStore(tx, nil)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ensure PostgresStore implements TenantStore
var _ TenantStore = (*PostgresStore)(nil)
