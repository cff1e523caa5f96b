package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/pkg/database"
)

// StoreManager opens tenant-scoped store handles. Each tenant gets its own
// connection pool bound to its schema via search_path; pools are cached for
// the process lifetime and closed together on shutdown.
type StoreManager struct {
	baseCfg *database.PostgresConfig

	mu    sync.Mutex
	pools map[string]*database.PostgresDB
}

// NewStoreManager creates a store manager from the base connection settings
func NewStoreManager(baseCfg *database.PostgresConfig) *StoreManager {
	return &StoreManager{
		baseCfg: baseCfg,
		pools:   make(map[string]*database.PostgresDB),
	}
}

// Open returns the tenant's store handle, opening its pool on first use
func (m *StoreManager) Open(ctx context.Context, tenant *domain.Tenant) (TenantStore, error) {
	if tenant == nil || tenant.SchemaName == "" {
		return nil, domain.ErrTenantNotFound
	}

	m.mu.Lock()
	db, ok := m.pools[tenant.SchemaName]
	m.mu.Unlock()

	if !ok {
		var err error
		db, err = database.NewPostgres(ctx, m.baseCfg.WithSearchPath(tenant.SchemaName))
		if err != nil {
			return nil, fmt.Errorf("failed to open store for tenant %s: %w", tenant.Domain, err)
		}

		m.mu.Lock()
		if existing, raced := m.pools[tenant.SchemaName]; raced {
			// Another caller opened the pool first; keep theirs
			m.mu.Unlock()
			db.Close()
			db = existing
		} else {
			m.pools[tenant.SchemaName] = db
			m.mu.Unlock()
		}
	}

	return NewPostgresStore(db.Pool()), nil
}

// Close closes all cached tenant pools
func (m *StoreManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for schema, db := range m.pools {
		db.Close()
		delete(m.pools, schema)
	}
}

// Ensure StoreManager implements StoreOpener
var _ StoreOpener = (*StoreManager)(nil)
