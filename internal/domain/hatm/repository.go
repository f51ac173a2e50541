// internal/domain/hatm/repository.go
package hatm

import (
	"context"
	"time"
)

// Repository defines persistence operations for Hatm and JuzAssignment.
type Repository interface {
	// Hatm methods
	Create(ctx context.Context, h *Hatm) error
	GetByID(ctx context.Context, id int64) (*Hatm, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*Hatm, error)
	GetActiveByGroup(ctx context.Context, groupID int64) (*Hatm, error)
	// ListActiveEndingBefore returns ACTIVE hatms whose end timestamp is
	// before the given moment. Used for the expiry sweep (before=now) and
	// for deadline reminders (before=now+window).
	ListActiveEndingBefore(ctx context.Context, before time.Time) ([]*Hatm, error)

	// Start activates the hatm and inserts its full assignment batch in one
	// transaction: the status/timestamp update and the 30 inserts commit or
	// roll back together.
	Start(ctx context.Context, h *Hatm, assignments []*JuzAssignment) error

	// ClaimForNewMember binds unassigned juzs of an ACTIVE hatm to userID.
	// The number of juzs follows SlotSize indexed by the current count of
	// distinct owners. Returns an empty slice when the user already owns
	// juzs in this hatm or all slots are taken. The eligibility check and
	// the binding run in a single transaction holding a lock on the hatm
	// row, so two concurrent claims cannot both take the last slot.
	ClaimForNewMember(ctx context.Context, hatmID, userID int64) ([]*JuzAssignment, error)

	// Complete sets the hatm status to COMPLETED without touching its
	// assignments (manual force-complete path).
	Complete(ctx context.Context, hatmID int64) (*Hatm, error)

	// CompleteWithDebts sets the hatm status to COMPLETED and, in the same
	// transaction, converts every still-pending assignment to DEBT with the
	// debt flag set. Returns the converted assignments.
	CompleteWithDebts(ctx context.Context, hatmID int64) (*Hatm, []*JuzAssignment, error)

	// CompleteIfAllRead transitions an ACTIVE hatm with zero pending
	// assignments to COMPLETED. The check and the transition are one
	// atomic statement. Reports whether the transition happened.
	CompleteIfAllRead(ctx context.Context, hatmID int64) (bool, error)

	// JuzAssignment methods
	GetAssignmentByID(ctx context.Context, id int64) (*JuzAssignment, error)
	ListAssignmentsByHatm(ctx context.Context, hatmID int64) ([]*JuzAssignment, error)
	ListPendingByHatm(ctx context.Context, hatmID int64) ([]*JuzAssignment, error)
	ListByUser(ctx context.Context, userID int64) ([]*JuzAssignment, error)
	// ListActiveByUser returns the user's PENDING assignments in ACTIVE hatms.
	ListActiveByUser(ctx context.Context, userID int64) ([]*JuzAssignment, error)
	ListDebtsByUser(ctx context.Context, userID int64) ([]*JuzAssignment, error)

	// MarkCompleted sets the assignment to COMPLETED with the given
	// timestamp and clears the debt flag, whatever the previous status was.
	MarkCompleted(ctx context.Context, id int64, at time.Time) (*JuzAssignment, error)

	CountByStatus(ctx context.Context, hatmID int64, status JuzStatus) (int, error)
	CountDistinctOwners(ctx context.Context, hatmID int64) (int, error)
}
