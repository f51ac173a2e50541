// internal/app/fakes_test.go
package app_test

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"hatm_bot/internal/domain/group"
	"hatm_bot/internal/domain/hatm"
	"hatm_bot/internal/domain/user"
	idb "hatm_bot/internal/infra/database"
)

// fakeHatmRepo is an in-memory hatm.Repository. A single mutex serializes
// every call, mirroring the row-lock transactions of the Postgres
// implementation, so the concurrency tests exercise real contention.
type fakeHatmRepo struct {
	mu          sync.Mutex
	hatms       map[int64]*hatm.Hatm
	assignments map[int64]*hatm.JuzAssignment
	nextHatmID  int64
	nextJuzID   int64
}

func newFakeHatmRepo() *fakeHatmRepo {
	return &fakeHatmRepo{
		hatms:       make(map[int64]*hatm.Hatm),
		assignments: make(map[int64]*hatm.JuzAssignment),
	}
}

func (r *fakeHatmRepo) Create(_ context.Context, h *hatm.Hatm) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHatmID++
	h.ID = r.nextHatmID
	h.CreatedAt = time.Now().UTC()
	cp := *h
	r.hatms[h.ID] = &cp
	return nil
}

func (r *fakeHatmRepo) GetByID(_ context.Context, id int64) (*hatm.Hatm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hatms[id]
	if !ok {
		return nil, idb.ErrHatmNotFound
	}
	cp := *h
	return &cp, nil
}

func (r *fakeHatmRepo) ListByGroup(_ context.Context, groupID int64) ([]*hatm.Hatm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*hatm.Hatm
	for _, h := range r.hatms {
		if h.GroupID == groupID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeHatmRepo) GetActiveByGroup(_ context.Context, groupID int64) (*hatm.Hatm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hatms {
		if h.GroupID == groupID && h.Status == hatm.StatusActive {
			cp := *h
			return &cp, nil
		}
	}
	return nil, idb.ErrHatmNotFound
}

func (r *fakeHatmRepo) ListActiveEndingBefore(_ context.Context, before time.Time) ([]*hatm.Hatm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*hatm.Hatm
	for _, h := range r.hatms {
		if h.Status == hatm.StatusActive && h.EndsAt.Valid && h.EndsAt.Time.Before(before) {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeHatmRepo) Start(_ context.Context, h *hatm.Hatm, assignments []*hatm.JuzAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.hatms[h.ID]
	if !ok || stored.Status != hatm.StatusPending {
		return idb.ErrHatmNotFound
	}
	cp := *h
	r.hatms[h.ID] = &cp
	for _, a := range assignments {
		r.nextJuzID++
		a.ID = r.nextJuzID
		acp := *a
		r.assignments[a.ID] = &acp
	}
	return nil
}

func (r *fakeHatmRepo) ClaimForNewMember(_ context.Context, hatmID, userID int64) ([]*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hatms[hatmID]
	if !ok {
		return nil, idb.ErrHatmNotFound
	}
	if h.Status != hatm.StatusActive {
		return nil, nil
	}

	owners := make(map[int64]bool)
	var unowned []*hatm.JuzAssignment
	for _, a := range r.assignments {
		if a.HatmID != hatmID {
			continue
		}
		if a.UserID.Valid {
			owners[a.UserID.Int64] = true
		} else {
			unowned = append(unowned, a)
		}
	}
	if owners[userID] || len(owners) >= h.ParticipantsCount || len(unowned) == 0 {
		return nil, nil
	}

	sort.Slice(unowned, func(i, j int) bool { return unowned[i].JuzNumber < unowned[j].JuzNumber })
	want := hatm.SlotSize(h.ParticipantsCount, len(owners))
	if want > len(unowned) {
		want = len(unowned)
	}

	claimed := make([]*hatm.JuzAssignment, 0, want)
	for _, a := range unowned[:want] {
		a.UserID = sql.NullInt64{Int64: userID, Valid: true}
		cp := *a
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (r *fakeHatmRepo) Complete(_ context.Context, hatmID int64) (*hatm.Hatm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hatms[hatmID]
	if !ok {
		return nil, idb.ErrHatmNotFound
	}
	h.Status = hatm.StatusCompleted
	cp := *h
	return &cp, nil
}

func (r *fakeHatmRepo) CompleteWithDebts(_ context.Context, hatmID int64) (*hatm.Hatm, []*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hatms[hatmID]
	if !ok {
		return nil, nil, idb.ErrHatmNotFound
	}
	h.Status = hatm.StatusCompleted

	var converted []*hatm.JuzAssignment
	for _, a := range r.assignments {
		if a.HatmID == hatmID && a.Status == hatm.JuzPending {
			a.Status = hatm.JuzDebt
			a.IsDebt = true
			cp := *a
			converted = append(converted, &cp)
		}
	}
	sort.Slice(converted, func(i, j int) bool { return converted[i].JuzNumber < converted[j].JuzNumber })
	cp := *h
	return &cp, converted, nil
}

func (r *fakeHatmRepo) CompleteIfAllRead(_ context.Context, hatmID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hatms[hatmID]
	if !ok {
		return false, idb.ErrHatmNotFound
	}
	if h.Status != hatm.StatusActive {
		return false, nil
	}
	for _, a := range r.assignments {
		if a.HatmID == hatmID && a.Status == hatm.JuzPending {
			return false, nil
		}
	}
	h.Status = hatm.StatusCompleted
	return true, nil
}

func (r *fakeHatmRepo) GetAssignmentByID(_ context.Context, id int64) (*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, idb.ErrJuzNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeHatmRepo) ListAssignmentsByHatm(_ context.Context, hatmID int64) ([]*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(a *hatm.JuzAssignment) bool { return a.HatmID == hatmID }), nil
}

func (r *fakeHatmRepo) ListPendingByHatm(_ context.Context, hatmID int64) ([]*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(a *hatm.JuzAssignment) bool {
		return a.HatmID == hatmID && a.Status == hatm.JuzPending
	}), nil
}

func (r *fakeHatmRepo) ListByUser(_ context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(a *hatm.JuzAssignment) bool {
		return a.UserID.Valid && a.UserID.Int64 == userID
	}), nil
}

func (r *fakeHatmRepo) ListActiveByUser(_ context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(a *hatm.JuzAssignment) bool {
		if !a.UserID.Valid || a.UserID.Int64 != userID || a.Status != hatm.JuzPending {
			return false
		}
		h, ok := r.hatms[a.HatmID]
		return ok && h.Status == hatm.StatusActive
	}), nil
}

func (r *fakeHatmRepo) ListDebtsByUser(_ context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(a *hatm.JuzAssignment) bool {
		return a.UserID.Valid && a.UserID.Int64 == userID && a.Status == hatm.JuzDebt
	}), nil
}

func (r *fakeHatmRepo) MarkCompleted(_ context.Context, id int64, at time.Time) (*hatm.JuzAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return nil, idb.ErrJuzNotFound
	}
	a.Status = hatm.JuzCompleted
	a.CompletedAt = sql.NullTime{Time: at, Valid: true}
	a.IsDebt = false
	cp := *a
	return &cp, nil
}

func (r *fakeHatmRepo) CountByStatus(_ context.Context, hatmID int64, status hatm.JuzStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, a := range r.assignments {
		if a.HatmID == hatmID && a.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeHatmRepo) CountDistinctOwners(_ context.Context, hatmID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make(map[int64]bool)
	for _, a := range r.assignments {
		if a.HatmID == hatmID && a.UserID.Valid {
			owners[a.UserID.Int64] = true
		}
	}
	return len(owners), nil
}

// collect copies matching assignments sorted by juz number. Callers hold mu.
func (r *fakeHatmRepo) collect(match func(*hatm.JuzAssignment) bool) []*hatm.JuzAssignment {
	var out []*hatm.JuzAssignment
	for _, a := range r.assignments {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JuzNumber < out[j].JuzNumber })
	return out
}

// fakeUserRepo is an in-memory user.Repository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*user.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*user.User)}
}

// seed registers n users with IDs 1..n and telegram IDs 1000+i.
func (r *fakeUserRepo) seed(n int) {
	for i := 1; i <= n; i++ {
		_ = r.Create(context.Background(), &user.User{
			TelegramID: int64(1000 + i),
			FirstName:  sql.NullString{String: "Reader", Valid: true},
		})
	}
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.TelegramID == u.TelegramID {
			return idb.ErrDuplicateTelegramID
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, idb.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, idb.ErrUserNotFound
}

func (r *fakeUserRepo) ListByIDs(_ context.Context, ids []int64) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*user.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return idb.ErrUserNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

// fakeGroupRepo is an in-memory group.Repository.
type fakeGroupRepo struct {
	mu           sync.Mutex
	groups       map[int64]*group.Group
	members      map[int64]*group.Member
	nextGroupID  int64
	nextMemberID int64
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:  make(map[int64]*group.Group),
		members: make(map[int64]*group.Member),
	}
}

func (r *fakeGroupRepo) Create(_ context.Context, g *group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.groups {
		if existing.InviteCode == g.InviteCode {
			return idb.ErrDuplicateInviteCode
		}
	}
	r.nextGroupID++
	g.ID = r.nextGroupID
	g.CreatedAt = time.Now().UTC()
	cp := *g
	r.groups[g.ID] = &cp
	return nil
}

func (r *fakeGroupRepo) GetByID(_ context.Context, id int64) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, idb.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGroupRepo) GetByInviteCode(_ context.Context, code string) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		if g.InviteCode == code {
			cp := *g
			return &cp, nil
		}
	}
	return nil, idb.ErrGroupNotFound
}

func (r *fakeGroupRepo) ListByUser(_ context.Context, userID int64) ([]*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*group.Group
	for _, m := range r.members {
		if m.UserID == userID {
			if g, ok := r.groups[m.GroupID]; ok {
				cp := *g
				out = append(out, &cp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeGroupRepo) AddMember(_ context.Context, m *group.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.members {
		if existing.GroupID == m.GroupID && existing.UserID == m.UserID {
			return idb.ErrDuplicateMember
		}
	}
	r.nextMemberID++
	m.ID = r.nextMemberID
	m.JoinedAt = time.Now().UTC()
	cp := *m
	r.members[m.ID] = &cp
	return nil
}

func (r *fakeGroupRepo) GetMember(_ context.Context, groupID, userID int64) (*group.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.GroupID == groupID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, idb.ErrMemberNotFound
}

func (r *fakeGroupRepo) ListMembers(_ context.Context, groupID int64) ([]*group.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*group.Member
	for _, m := range r.members {
		if m.GroupID == groupID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeGroupRepo) CountMembers(_ context.Context, groupID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.members {
		if m.GroupID == groupID {
			count++
		}
	}
	return count, nil
}

func (r *fakeGroupRepo) RemoveMember(_ context.Context, groupID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.members {
		if m.GroupID == groupID && m.UserID == userID {
			delete(r.members, id)
			return nil
		}
	}
	return idb.ErrMemberNotFound
}
