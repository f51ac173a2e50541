// internal/api/dto.go
package api

import (
	"time"

	"hatm_bot/internal/app"
	"hatm_bot/internal/domain/group"
	"hatm_bot/internal/domain/hatm"
	"hatm_bot/internal/domain/user"
)

// Request bodies. Validation tags are enforced by the shared validator
// before any service call.

type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code" validate:"required,len=8"`
}

type CreateHatmRequest struct {
	DurationDays      int `json:"duration_days" validate:"required,min=1,max=30"`
	ParticipantsCount int `json:"participants_count" validate:"required,min=1,max=30"`
}

// Response bodies.

type UserResponse struct {
	ID         int64   `json:"id"`
	TelegramID int64   `json:"telegram_id"`
	Username   *string `json:"username"`
	FirstName  *string `json:"first_name"`
}

type MemberResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  *string   `json:"username"`
	FirstName *string   `json:"first_name"`
	JoinedAt  time.Time `json:"joined_at"`
}

type GroupResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	InviteCode    string    `json:"invite_code"`
	CreatorID     int64     `json:"creator_id"`
	CreatedAt     time.Time `json:"created_at"`
	MembersCount  int       `json:"members_count"`
	HasActiveHatm bool      `json:"has_active_hatm"`
}

type GroupDetailResponse struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	InviteCode string           `json:"invite_code"`
	CreatorID  int64            `json:"creator_id"`
	CreatedAt  time.Time        `json:"created_at"`
	Members    []MemberResponse `json:"members"`
	ActiveHatm *HatmResponse    `json:"active_hatm"`
}

type HatmResponse struct {
	ID                int64      `json:"id"`
	GroupID           int64      `json:"group_id"`
	DurationDays      int        `json:"duration_days"`
	ParticipantsCount int        `json:"participants_count"`
	Status            string     `json:"status"`
	StartedAt         *time.Time `json:"started_at"`
	EndsAt            *time.Time `json:"ends_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

type JuzResponse struct {
	ID          int64      `json:"id"`
	JuzNumber   int        `json:"juz_number"`
	Status      string     `json:"status"`
	UserID      *int64     `json:"user_id"` // null = unassigned juz
	Username    *string    `json:"username,omitempty"`
	FirstName   *string    `json:"first_name,omitempty"`
	CompletedAt *time.Time `json:"completed_at"`
	IsDebt      bool       `json:"is_debt"`
}

type HatmDetailResponse struct {
	HatmResponse
	JuzAssignments []JuzResponse `json:"juz_assignments"`
}

type HatmProgressResponse struct {
	TotalJuzs       int           `json:"total_juzs"`
	CompletedJuzs   int           `json:"completed_juzs"`
	PendingJuzs     int           `json:"pending_juzs"`
	DebtJuzs        int           `json:"debt_juzs"`
	ProgressPercent float64       `json:"progress_percent"`
	JuzAssignments  []JuzResponse `json:"juz_assignments"`
}

type UserJuzStatsResponse struct {
	TotalAssigned int           `json:"total_assigned"`
	Completed     int           `json:"completed"`
	Pending       int           `json:"pending"`
	Debts         int           `json:"debts"`
	Juzs          []JuzResponse `json:"juzs"`
}

type UserDebtsResponse struct {
	Debts      []JuzResponse `json:"debts"`
	TotalDebts int           `json:"total_debts"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		Username:   nullableString(u.Username.Valid, u.Username.String),
		FirstName:  nullableString(u.FirstName.Valid, u.FirstName.String),
	}
}

func toMemberResponse(m *group.Member, u *user.User) MemberResponse {
	resp := MemberResponse{
		ID:       m.ID,
		UserID:   m.UserID,
		JoinedAt: m.JoinedAt,
	}
	if u != nil {
		resp.Username = nullableString(u.Username.Valid, u.Username.String)
		resp.FirstName = nullableString(u.FirstName.Valid, u.FirstName.String)
	}
	return resp
}

func toHatmResponse(h *hatm.Hatm) HatmResponse {
	resp := HatmResponse{
		ID:                h.ID,
		GroupID:           h.GroupID,
		DurationDays:      h.DurationDays,
		ParticipantsCount: h.ParticipantsCount,
		Status:            string(h.Status),
		CreatedAt:         h.CreatedAt,
	}
	if h.StartedAt.Valid {
		t := h.StartedAt.Time
		resp.StartedAt = &t
	}
	if h.EndsAt.Valid {
		t := h.EndsAt.Time
		resp.EndsAt = &t
	}
	return resp
}

func toJuzResponse(a *hatm.JuzAssignment, reader *user.User) JuzResponse {
	resp := JuzResponse{
		ID:        a.ID,
		JuzNumber: a.JuzNumber,
		Status:    string(a.Status),
		IsDebt:    a.IsDebt,
	}
	if a.UserID.Valid {
		id := a.UserID.Int64
		resp.UserID = &id
	}
	if a.CompletedAt.Valid {
		t := a.CompletedAt.Time
		resp.CompletedAt = &t
	}
	if reader != nil {
		resp.Username = nullableString(reader.Username.Valid, reader.Username.String)
		resp.FirstName = nullableString(reader.FirstName.Valid, reader.FirstName.String)
	}
	return resp
}

func toProgressResponse(p *app.Progress) HatmProgressResponse {
	resp := HatmProgressResponse{
		TotalJuzs:       p.Total,
		CompletedJuzs:   p.Completed,
		PendingJuzs:     p.Pending,
		DebtJuzs:        p.Debt,
		ProgressPercent: p.Percent,
		JuzAssignments:  make([]JuzResponse, 0, len(p.Juzs)),
	}
	for _, j := range p.Juzs {
		resp.JuzAssignments = append(resp.JuzAssignments, toJuzResponse(j.Assignment, j.Reader))
	}
	return resp
}

func nullableString(valid bool, s string) *string {
	if !valid {
		return nil
	}
	return &s
}
