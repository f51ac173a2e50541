package group

import (
	"context"
)

// Repository defines the operations for persisting and retrieving groups
// and their membership rosters.
type Repository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id int64) (*Group, error)
	GetByInviteCode(ctx context.Context, code string) (*Group, error)
	ListByUser(ctx context.Context, userID int64) ([]*Group, error)

	AddMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, groupID, userID int64) (*Member, error)
	ListMembers(ctx context.Context, groupID int64) ([]*Member, error)
	CountMembers(ctx context.Context, groupID int64) (int, error)
	RemoveMember(ctx context.Context, groupID, userID int64) error
}
