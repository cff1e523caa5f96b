package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one organization served by the engine. Each active tenant owns
// an isolated store context (a dedicated schema) identified by SchemaName.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	SchemaName string    `json:"schema_name"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
