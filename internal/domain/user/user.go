package user

import (
	"database/sql"
	"time"
)

// User is a reader identified by their Telegram account.
type User struct {
	ID         int64
	TelegramID int64
	Username   sql.NullString
	FirstName  sql.NullString
	CreatedAt  time.Time
}

// DisplayName returns the best human-readable name available.
func (u *User) DisplayName() string {
	if u.FirstName.Valid && u.FirstName.String != "" {
		return u.FirstName.String
	}
	if u.Username.Valid && u.Username.String != "" {
		return u.Username.String
	}
	return ""
}
