// internal/app/group_service.go
package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"hatm_bot/internal/domain/group"
	"hatm_bot/internal/domain/user"
	idb "hatm_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

const (
	inviteCodeLength  = 8
	inviteCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// How many collisions we tolerate before giving up. With 36^8 codes a
	// single retry is already unlikely.
	inviteCodeAttempts = 10
)

// GroupService manages groups and their membership rosters.
type GroupService struct {
	groupRepo group.Repository
	log       *logrus.Entry
}

func NewGroupService(gr group.Repository, log *logrus.Entry) *GroupService {
	return &GroupService{groupRepo: gr, log: log}
}

// Create registers a new group with a fresh invite code and adds the
// creator as its first member.
func (s *GroupService) Create(ctx context.Context, creator *user.User, name string) (*group.Group, error) {
	code, err := s.generateInviteCode(ctx)
	if err != nil {
		return nil, err
	}

	g := &group.Group{
		Name:       name,
		InviteCode: code,
		CreatorID:  creator.ID,
	}
	if err := s.groupRepo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	if _, err := s.AddMember(ctx, g.ID, creator.ID); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"group_id":   g.ID,
		"creator_id": creator.ID,
	}).Info("Group created")
	return g, nil
}

func (s *GroupService) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	g, err := s.groupRepo.GetByID(ctx, id)
	if err != nil {
		if err == idb.ErrGroupNotFound {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group %d: %w", id, err)
	}
	return g, nil
}

func (s *GroupService) GetByInviteCode(ctx context.Context, code string) (*group.Group, error) {
	g, err := s.groupRepo.GetByInviteCode(ctx, normalizeInviteCode(code))
	if err != nil {
		if err == idb.ErrGroupNotFound {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group by invite code: %w", err)
	}
	return g, nil
}

func (s *GroupService) ListUserGroups(ctx context.Context, userID int64) ([]*group.Group, error) {
	return s.groupRepo.ListByUser(ctx, userID)
}

// AddMember adds the user to the group. Adding an existing member is a
// no-op returning the existing record.
func (s *GroupService) AddMember(ctx context.Context, groupID, userID int64) (*group.Member, error) {
	existing, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err == nil {
		return existing, nil
	}
	if err != idb.ErrMemberNotFound {
		return nil, fmt.Errorf("failed to check membership of user %d in group %d: %w", userID, groupID, err)
	}

	m := &group.Member{GroupID: groupID, UserID: userID}
	if err := s.groupRepo.AddMember(ctx, m); err != nil {
		if err == idb.ErrDuplicateMember {
			// Lost the race against a concurrent join; fetch the winner.
			return s.groupRepo.GetMember(ctx, groupID, userID)
		}
		return nil, fmt.Errorf("failed to add user %d to group %d: %w", userID, groupID, err)
	}
	s.log.WithFields(logrus.Fields{
		"group_id": groupID,
		"user_id":  userID,
	}).Info("Member joined group")
	return m, nil
}

func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID int64) error {
	if err := s.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		if err == idb.ErrMemberNotFound {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to remove user %d from group %d: %w", userID, groupID, err)
	}
	return nil
}

func (s *GroupService) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	_, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err == nil {
		return true, nil
	}
	if err == idb.ErrMemberNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to check membership of user %d in group %d: %w", userID, groupID, err)
}

func (s *GroupService) Members(ctx context.Context, groupID int64) ([]*group.Member, error) {
	return s.groupRepo.ListMembers(ctx, groupID)
}

func (s *GroupService) MembersCount(ctx context.Context, groupID int64) (int, error) {
	return s.groupRepo.CountMembers(ctx, groupID)
}

func (s *GroupService) generateInviteCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := randomInviteCode()
		if err != nil {
			return "", err
		}
		_, err = s.groupRepo.GetByInviteCode(ctx, code)
		if err == idb.ErrGroupNotFound {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check invite code uniqueness: %w", err)
		}
	}
	return "", fmt.Errorf("could not generate a unique invite code after %d attempts", inviteCodeAttempts)
}

func randomInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes for invite code: %w", err)
	}
	for i, b := range buf {
		buf[i] = inviteCodeCharset[int(b)%len(inviteCodeCharset)]
	}
	return string(buf), nil
}

func normalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
