// internal/app/user_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"

	"hatm_bot/internal/domain/user"
	idb "hatm_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// UserService manages reader identities keyed by Telegram ID.
type UserService struct {
	userRepo user.Repository
	log      *logrus.Entry
}

func NewUserService(ur user.Repository, log *logrus.Entry) *UserService {
	return &UserService{userRepo: ur, log: log}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}

func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	u, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if err == idb.ErrUserNotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by telegram ID %d: %w", telegramID, err)
	}
	return u, nil
}

// ListByIDs resolves users in one batch; absent IDs are simply skipped.
func (s *UserService) ListByIDs(ctx context.Context, ids []int64) ([]*user.User, error) {
	return s.userRepo.ListByIDs(ctx, ids)
}

// GetOrCreate looks the user up by Telegram ID, creating the record on first
// contact and refreshing username/first name when they changed since.
func (s *UserService) GetOrCreate(ctx context.Context, telegramID int64, username, firstName string) (*user.User, error) {
	u, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err == idb.ErrUserNotFound {
		u = &user.User{
			TelegramID: telegramID,
			Username:   nullString(username),
			FirstName:  nullString(firstName),
		}
		if err := s.userRepo.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to create user for telegram ID %d: %w", telegramID, err)
		}
		s.log.WithFields(logrus.Fields{
			"user_id":     u.ID,
			"telegram_id": telegramID,
		}).Info("New user registered")
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by telegram ID %d: %w", telegramID, err)
	}

	updated := false
	if username != "" && u.Username.String != username {
		u.Username = nullString(username)
		updated = true
	}
	if firstName != "" && u.FirstName.String != firstName {
		u.FirstName = nullString(firstName)
		updated = true
	}
	if updated {
		if err := s.userRepo.Update(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to refresh user %d: %w", u.ID, err)
		}
	}
	return u, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
