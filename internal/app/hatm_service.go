// internal/app/hatm_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"hatm_bot/internal/domain/hatm"
	"hatm_bot/internal/domain/user"
	idb "hatm_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// MemberJuzs is the fact a core operation hands back to the boundary layer:
// one participant and the assignments that were bound to (or converted for)
// them. The boundary turns these into notifications; the core never sends
// messages itself.
type MemberJuzs struct {
	User *user.User
	Juzs []*hatm.JuzAssignment
}

// JuzInfo pairs an assignment with its reader (nil while unclaimed).
type JuzInfo struct {
	Assignment *hatm.JuzAssignment
	Reader     *user.User
}

// Progress is the aggregated reading state of one hatm.
type Progress struct {
	Hatm      *hatm.Hatm
	Total     int
	Completed int
	Pending   int
	Debt      int
	Percent   float64
	Juzs      []JuzInfo
}

// UserStats aggregates a user's assignments across all hatms.
type UserStats struct {
	TotalAssigned int
	Completed     int
	Pending       int
	Debts         int
	Juzs          []*hatm.JuzAssignment
}

// ExpiredResult describes one hatm closed by the expiry sweep.
type ExpiredResult struct {
	Hatm    *hatm.Hatm
	Debtors []MemberJuzs
}

// ReminderTarget is one participant with unread juzs in a hatm whose
// deadline is approaching.
type ReminderTarget struct {
	Hatm     *hatm.Hatm
	Member   MemberJuzs
	DaysLeft int
}

// HatmService owns the juz distribution engine and the hatm lifecycle
// state machine.
type HatmService struct {
	hatmRepo hatm.Repository
	userRepo user.Repository
	shuffle  hatm.ShuffleFunc // nil falls back to rand.Shuffle
	log      *logrus.Entry
}

func NewHatmService(hr hatm.Repository, ur user.Repository, shuffle hatm.ShuffleFunc, log *logrus.Entry) *HatmService {
	return &HatmService{
		hatmRepo: hr,
		userRepo: ur,
		shuffle:  shuffle,
		log:      log,
	}
}

// Create registers a new PENDING hatm for a group. A group can hold at most
// one non-completed hatm at a time.
func (s *HatmService) Create(ctx context.Context, groupID int64, durationDays, participantsCount int) (*hatm.Hatm, error) {
	if participantsCount < 1 || participantsCount > hatm.MaxParticipants {
		return nil, ErrParticipantsCount
	}
	if durationDays < 1 || durationDays > 30 {
		return nil, ErrDurationDays
	}

	_, err := s.hatmRepo.GetActiveByGroup(ctx, groupID)
	if err == nil {
		return nil, ErrActiveHatmExists
	}
	if err != idb.ErrHatmNotFound {
		return nil, fmt.Errorf("failed to check for active hatm in group %d: %w", groupID, err)
	}

	h := &hatm.Hatm{
		GroupID:           groupID,
		DurationDays:      durationDays,
		ParticipantsCount: participantsCount,
		Status:            hatm.StatusPending,
	}
	if err := s.hatmRepo.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("failed to create hatm: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"hatm_id":  h.ID,
		"group_id": groupID,
	}).Info("Hatm created")
	return h, nil
}

func (s *HatmService) GetByID(ctx context.Context, id int64) (*hatm.Hatm, error) {
	h, err := s.hatmRepo.GetByID(ctx, id)
	if err != nil {
		if err == idb.ErrHatmNotFound {
			return nil, ErrHatmNotFound
		}
		return nil, fmt.Errorf("failed to get hatm %d: %w", id, err)
	}
	return h, nil
}

func (s *HatmService) ListByGroup(ctx context.Context, groupID int64) ([]*hatm.Hatm, error) {
	return s.hatmRepo.ListByGroup(ctx, groupID)
}

// GetActiveByGroup returns the group's ACTIVE hatm, or ErrHatmNotFound.
func (s *HatmService) GetActiveByGroup(ctx context.Context, groupID int64) (*hatm.Hatm, error) {
	h, err := s.hatmRepo.GetActiveByGroup(ctx, groupID)
	if err != nil {
		if err == idb.ErrHatmNotFound {
			return nil, ErrHatmNotFound
		}
		return nil, fmt.Errorf("failed to get active hatm for group %d: %w", groupID, err)
	}
	return h, nil
}

// Start activates a PENDING hatm and distributes the 30 juzs. The juz
// numbers are shuffled and sliced into ParticipantsCount slots; the slots
// are bound to the given participants in arrival order, and any slots left
// over are created unowned for later claiming. Returns the per-participant
// assignment facts for the boundary to announce.
func (s *HatmService) Start(ctx context.Context, hatmID int64, participantIDs []int64) (*hatm.Hatm, []MemberJuzs, error) {
	h, err := s.GetByID(ctx, hatmID)
	if err != nil {
		return nil, nil, err
	}
	if h.Status != hatm.StatusPending {
		return nil, nil, ErrHatmNotPending
	}

	slots, err := hatm.NewPartition(h.ParticipantsCount, s.shuffle)
	if err != nil {
		// ParticipantsCount is validated at creation; this is defensive.
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Dedupe while preserving arrival order; extra participants beyond the
	// target slot count get nothing in this hatm.
	seen := make(map[int64]bool, len(participantIDs))
	participants := make([]int64, 0, len(participantIDs))
	for _, id := range participantIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, id)
		if len(participants) == h.ParticipantsCount {
			break
		}
	}

	now := time.Now().UTC()
	h.StartedAt = sql.NullTime{Time: now, Valid: true}
	h.EndsAt = sql.NullTime{Time: now.AddDate(0, 0, h.DurationDays), Valid: true}
	h.Status = hatm.StatusActive

	assignments := make([]*hatm.JuzAssignment, 0, hatm.TotalJuz)
	for i, slot := range slots {
		var owner sql.NullInt64
		if i < len(participants) {
			owner = sql.NullInt64{Int64: participants[i], Valid: true}
		}
		for _, n := range slot {
			assignments = append(assignments, &hatm.JuzAssignment{
				HatmID:    h.ID,
				UserID:    owner,
				JuzNumber: n,
				Status:    hatm.JuzPending,
			})
		}
	}

	if err := s.hatmRepo.Start(ctx, h, assignments); err != nil {
		return nil, nil, fmt.Errorf("failed to start hatm %d: %w", hatmID, err)
	}
	s.log.WithFields(logrus.Fields{
		"hatm_id":      h.ID,
		"participants": len(participants),
		"target_count": h.ParticipantsCount,
	}).Info("Hatm started, juzs distributed")

	bound, err := s.groupByOwner(ctx, assignments)
	if err != nil {
		return nil, nil, err
	}
	return h, bound, nil
}

// AssignToNewMember claims unowned juzs for a user joining after the hatm
// started. The claim size follows the same base/remainder formula, indexed
// by the current number of distinct owners. Returns an empty slice when the
// hatm is not active, the user already holds juzs here, or all slots are
// taken.
func (s *HatmService) AssignToNewMember(ctx context.Context, hatmID, userID int64) ([]*hatm.JuzAssignment, error) {
	h, err := s.GetByID(ctx, hatmID)
	if err != nil {
		return nil, err
	}
	if h.Status != hatm.StatusActive {
		return nil, nil
	}

	claimed, err := s.hatmRepo.ClaimForNewMember(ctx, h.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim juzs in hatm %d for user %d: %w", hatmID, userID, err)
	}
	if len(claimed) > 0 {
		s.log.WithFields(logrus.Fields{
			"hatm_id": hatmID,
			"user_id": userID,
			"juzs":    len(claimed),
		}).Info("Juzs assigned to new member")
	}
	return claimed, nil
}

// MarkJuzCompleted marks one assignment read, stamping the completion time
// and clearing the debt flag. Completing a juz of an already-completed hatm
// is allowed: that is how debts get settled.
func (s *HatmService) MarkJuzCompleted(ctx context.Context, juzID int64) (*hatm.JuzAssignment, error) {
	a, err := s.hatmRepo.MarkCompleted(ctx, juzID, time.Now().UTC())
	if err != nil {
		if err == idb.ErrJuzNotFound {
			return nil, ErrJuzNotFound
		}
		return nil, fmt.Errorf("failed to mark juz %d completed: %w", juzID, err)
	}
	return a, nil
}

// CheckAndComplete closes an ACTIVE hatm whose juzs are all read. Called
// after every completion; reports whether the hatm transitioned.
func (s *HatmService) CheckAndComplete(ctx context.Context, hatmID int64) (bool, error) {
	done, err := s.hatmRepo.CompleteIfAllRead(ctx, hatmID)
	if err != nil {
		if err == idb.ErrHatmNotFound {
			return false, ErrHatmNotFound
		}
		return false, fmt.Errorf("failed to auto-complete hatm %d: %w", hatmID, err)
	}
	if done {
		s.log.WithField("hatm_id", hatmID).Info("All juzs read, hatm completed")
	}
	return done, nil
}

// ForceComplete closes an ACTIVE hatm manually. Unlike expiry, this path
// does not convert pending juzs to debt.
func (s *HatmService) ForceComplete(ctx context.Context, hatmID int64) (*hatm.Hatm, error) {
	h, err := s.GetByID(ctx, hatmID)
	if err != nil {
		return nil, err
	}
	switch h.Status {
	case hatm.StatusCompleted:
		return nil, ErrHatmCompleted
	case hatm.StatusPending:
		return nil, ErrHatmNotActive
	}

	h, err = s.hatmRepo.Complete(ctx, hatmID)
	if err != nil {
		return nil, fmt.Errorf("failed to force-complete hatm %d: %w", hatmID, err)
	}
	s.log.WithField("hatm_id", hatmID).Info("Hatm completed manually")
	return h, nil
}

// CompleteWithDebts closes a hatm and converts every pending juz to DEBT in
// the same transaction. Returns the debtors so the boundary can notify them.
func (s *HatmService) CompleteWithDebts(ctx context.Context, hatmID int64) (*hatm.Hatm, []MemberJuzs, error) {
	h, converted, err := s.hatmRepo.CompleteWithDebts(ctx, hatmID)
	if err != nil {
		if err == idb.ErrHatmNotFound {
			return nil, nil, ErrHatmNotFound
		}
		return nil, nil, fmt.Errorf("failed to complete hatm %d with debts: %w", hatmID, err)
	}
	debtors, err := s.groupByOwner(ctx, converted)
	if err != nil {
		return nil, nil, err
	}
	s.log.WithFields(logrus.Fields{
		"hatm_id": hatmID,
		"debts":   len(converted),
	}).Info("Hatm completed, unread juzs converted to debt")
	return h, debtors, nil
}

// CheckExpired performs the reactive expiry check: if the hatm ran past its
// deadline it is closed with debt conversion. Reports whether that happened.
func (s *HatmService) CheckExpired(ctx context.Context, h *hatm.Hatm) (bool, []MemberJuzs, error) {
	if !h.Expired(time.Now().UTC()) {
		return false, nil, nil
	}
	closed, debtors, err := s.CompleteWithDebts(ctx, h.ID)
	if err != nil {
		return false, nil, err
	}
	*h = *closed
	return true, debtors, nil
}

// CompleteExpired closes every ACTIVE hatm whose deadline has passed. The
// scheduler runs this periodically; the read path performs the same check
// reactively via CheckExpired.
func (s *HatmService) CompleteExpired(ctx context.Context) ([]ExpiredResult, error) {
	expired, err := s.hatmRepo.ListActiveEndingBefore(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired hatms: %w", err)
	}

	results := make([]ExpiredResult, 0, len(expired))
	for _, h := range expired {
		closed, debtors, err := s.CompleteWithDebts(ctx, h.ID)
		if err != nil {
			s.log.WithError(err).WithField("hatm_id", h.ID).Error("Failed to close expired hatm")
			continue
		}
		results = append(results, ExpiredResult{Hatm: closed, Debtors: debtors})
	}
	return results, nil
}

// ReminderTargets collects participants holding pending juzs in ACTIVE
// hatms that end within the given window.
func (s *HatmService) ReminderTargets(ctx context.Context, window time.Duration) ([]ReminderTarget, error) {
	now := time.Now().UTC()
	ending, err := s.hatmRepo.ListActiveEndingBefore(ctx, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to list hatms ending soon: %w", err)
	}

	var targets []ReminderTarget
	for _, h := range ending {
		if h.Expired(now) {
			continue // the expiry sweep owns this one
		}
		pending, err := s.hatmRepo.ListPendingByHatm(ctx, h.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending juzs of hatm %d: %w", h.ID, err)
		}
		members, err := s.groupByOwner(ctx, pending)
		if err != nil {
			return nil, err
		}
		daysLeft := int(math.Ceil(h.EndsAt.Time.Sub(now).Hours() / 24))
		for _, m := range members {
			targets = append(targets, ReminderTarget{Hatm: h, Member: m, DaysLeft: daysLeft})
		}
	}
	return targets, nil
}

// Progress aggregates the per-juz reading state of one hatm, with reader
// names resolved in a single batch query.
func (s *HatmService) Progress(ctx context.Context, hatmID int64) (*Progress, error) {
	h, err := s.GetByID(ctx, hatmID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.hatmRepo.ListAssignmentsByHatm(ctx, hatmID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments of hatm %d: %w", hatmID, err)
	}

	readers, err := s.resolveOwners(ctx, assignments)
	if err != nil {
		return nil, err
	}

	p := &Progress{Hatm: h, Total: hatm.TotalJuz, Juzs: make([]JuzInfo, 0, len(assignments))}
	for _, a := range assignments {
		switch a.Status {
		case hatm.JuzCompleted:
			p.Completed++
		case hatm.JuzPending:
			p.Pending++
		case hatm.JuzDebt:
			p.Debt++
		}
		var reader *user.User
		if a.UserID.Valid {
			reader = readers[a.UserID.Int64]
		}
		p.Juzs = append(p.Juzs, JuzInfo{Assignment: a, Reader: reader})
	}
	p.Percent = math.Round(float64(p.Completed)/float64(hatm.TotalJuz)*1000) / 10
	return p, nil
}

// ListUserActiveJuzs returns the user's unread juzs in currently running hatms.
func (s *HatmService) ListUserActiveJuzs(ctx context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	return s.hatmRepo.ListActiveByUser(ctx, userID)
}

// ListUserDebts returns the user's outstanding debt juzs.
func (s *HatmService) ListUserDebts(ctx context.Context, userID int64) ([]*hatm.JuzAssignment, error) {
	return s.hatmRepo.ListDebtsByUser(ctx, userID)
}

func (s *HatmService) GetJuzByID(ctx context.Context, id int64) (*hatm.JuzAssignment, error) {
	a, err := s.hatmRepo.GetAssignmentByID(ctx, id)
	if err != nil {
		if err == idb.ErrJuzNotFound {
			return nil, ErrJuzNotFound
		}
		return nil, fmt.Errorf("failed to get juz %d: %w", id, err)
	}
	return a, nil
}

// UserStats aggregates all of the user's assignments across hatms.
func (s *HatmService) UserStats(ctx context.Context, userID int64) (*UserStats, error) {
	juzs, err := s.hatmRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list juzs of user %d: %w", userID, err)
	}
	stats := &UserStats{TotalAssigned: len(juzs), Juzs: juzs}
	for _, a := range juzs {
		switch a.Status {
		case hatm.JuzCompleted:
			stats.Completed++
		case hatm.JuzPending:
			stats.Pending++
		}
		if a.IsDebt {
			stats.Debts++
		}
	}
	return stats, nil
}

// groupByOwner buckets assignments by owning user, dropping unowned rows,
// and resolves the owners in one query.
func (s *HatmService) groupByOwner(ctx context.Context, assignments []*hatm.JuzAssignment) ([]MemberJuzs, error) {
	byOwner := make(map[int64][]*hatm.JuzAssignment)
	order := make([]int64, 0)
	for _, a := range assignments {
		if !a.UserID.Valid {
			continue
		}
		id := a.UserID.Int64
		if _, ok := byOwner[id]; !ok {
			order = append(order, id)
		}
		byOwner[id] = append(byOwner[id], a)
	}
	if len(order) == 0 {
		return nil, nil
	}

	users, err := s.userRepo.ListByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignment owners: %w", err)
	}
	byID := make(map[int64]*user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	members := make([]MemberJuzs, 0, len(order))
	for _, id := range order {
		u, ok := byID[id]
		if !ok {
			continue
		}
		members = append(members, MemberJuzs{User: u, Juzs: byOwner[id]})
	}
	return members, nil
}

func (s *HatmService) resolveOwners(ctx context.Context, assignments []*hatm.JuzAssignment) (map[int64]*user.User, error) {
	ids := make([]int64, 0)
	seen := make(map[int64]bool)
	for _, a := range assignments {
		if a.UserID.Valid && !seen[a.UserID.Int64] {
			seen[a.UserID.Int64] = true
			ids = append(ids, a.UserID.Int64)
		}
	}
	readers := make(map[int64]*user.User, len(ids))
	if len(ids) == 0 {
		return readers, nil
	}
	users, err := s.userRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignment owners: %w", err)
	}
	for _, u := range users {
		readers[u.ID] = u
	}
	return readers, nil
}
