package app

import (
	"errors"
	"fmt"
)

// The four base error kinds the boundary layers map to user-visible
// failures. Specific conditions below wrap one of these, so callers use
// errors.Is against either the specific error or its kind.
var (
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

var (
	ErrHatmNotFound  = fmt.Errorf("hatm %w", ErrNotFound)
	ErrJuzNotFound   = fmt.Errorf("juz assignment %w", ErrNotFound)
	ErrGroupNotFound = fmt.Errorf("group %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)

	ErrHatmNotPending = fmt.Errorf("%w: hatm is not pending", ErrInvalidState)
	ErrHatmNotActive  = fmt.Errorf("%w: hatm is not active", ErrInvalidState)
	ErrHatmCompleted  = fmt.Errorf("%w: hatm is already completed", ErrInvalidState)

	ErrParticipantsCount = fmt.Errorf("%w: participants count must be between 1 and 30", ErrInvalidInput)
	ErrDurationDays      = fmt.Errorf("%w: duration must be between 1 and 30 days", ErrInvalidInput)
	ErrNoParticipants    = fmt.Errorf("%w: the group has no members to read", ErrInvalidInput)

	ErrActiveHatmExists = fmt.Errorf("%w: group already has an active hatm", ErrConflict)
)
