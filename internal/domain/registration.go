package domain

import (
	"time"

	"github.com/google/uuid"
)

// Registration is an external entity referenced by the engine, never owned.
// Its mere existence on an occurrence marks that occurrence as "live" for
// reconciliation purposes.
type Registration struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	OccurrenceID uuid.UUID `json:"occurrence_id"`
	MemberID     uuid.UUID `json:"member_id"`
	MemberName   string    `json:"member_name"`
	RegisteredAt time.Time `json:"registered_at"`
}
