// internal/domain/hatm/hatm.go
package hatm

import (
	"database/sql"
	"time"
)

// Status is the lifecycle state of a hatm. Transitions are one-way:
// PENDING -> ACTIVE -> COMPLETED.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Hatm represents one collective reading cycle scoped to a group.
// Corresponds to the 'hatms' table.
type Hatm struct {
	ID                int64
	GroupID           int64
	DurationDays      int
	ParticipantsCount int // target slot count, fixed at creation (1-30)
	Status            Status
	StartedAt         sql.NullTime // set when the hatm is activated
	EndsAt            sql.NullTime // StartedAt + DurationDays
	CreatedAt         time.Time
}

// Expired reports whether the hatm ran past its deadline at the given time.
// Only meaningful for ACTIVE hatms with an end timestamp.
func (h *Hatm) Expired(now time.Time) bool {
	return h.Status == StatusActive && h.EndsAt.Valid && now.After(h.EndsAt.Time)
}
