package pg

import (
	"time"

	"github.com/google/uuid"
)

// Model is the shared base for UUID-keyed ledger entities.
type Model struct {
	ID        uuid.UUID `gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
