package group

import "time"

// Group is a small circle of readers sharing hatms.
type Group struct {
	ID         int64
	Name       string
	InviteCode string // 8 chars, A-Z and digits, unique
	CreatorID  int64
	CreatedAt  time.Time
}

// Member is one (group, user) membership record.
type Member struct {
	ID       int64
	GroupID  int64
	UserID   int64
	JoinedAt time.Time
}
