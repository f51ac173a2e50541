package database

import "fmt"

// Sentinel errors the repositories return for expected conditions; the
// application services translate them into their own error taxonomy.
var (
	ErrHatmNotFound   = fmt.Errorf("hatm not found")
	ErrJuzNotFound    = fmt.Errorf("juz assignment not found")
	ErrGroupNotFound  = fmt.Errorf("group not found")
	ErrUserNotFound   = fmt.Errorf("user not found")
	ErrMemberNotFound = fmt.Errorf("group member not found")

	ErrDuplicateMember     = fmt.Errorf("user is already a member of this group")
	ErrDuplicateTelegramID = fmt.Errorf("user with this Telegram ID already exists")
	ErrDuplicateInviteCode = fmt.Errorf("group with this invite code already exists")
)
