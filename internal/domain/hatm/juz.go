// internal/domain/hatm/juz.go
package hatm

import "database/sql"

// JuzStatus is the reading state of a single juz assignment.
type JuzStatus string

const (
	JuzPending   JuzStatus = "pending"
	JuzCompleted JuzStatus = "completed"
	JuzDebt      JuzStatus = "debt"
)

// JuzAssignment is one of the 30 sections of a hatm. Exactly 30 rows exist
// per hatm, covering juz numbers 1-30 once each. UserID is NULL while the
// slot is reserved but unclaimed; once set it never changes to a different
// user (only claimed from NULL, or converted to debt in place).
// Corresponds to the 'juz_assignments' table.
type JuzAssignment struct {
	ID          int64
	HatmID      int64
	UserID      sql.NullInt64 // NULL = unassigned
	JuzNumber   int           // 1-30
	Status      JuzStatus
	CompletedAt sql.NullTime
	IsDebt      bool
}
