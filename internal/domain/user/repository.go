package user

import (
	"context"
)

// Repository defines the operations for persisting and retrieving users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	// ListByIDs returns the users matching the given IDs, in no particular
	// order. Missing IDs are simply absent from the result.
	ListByIDs(ctx context.Context, ids []int64) ([]*User, error)
	Update(ctx context.Context, u *User) error
}
