// internal/api/group_handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"hatm_bot/internal/app"
	"hatm_bot/internal/domain/group"
	"hatm_bot/internal/domain/user"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	u := currentUser(r.Context())

	g, err := s.groupService.Create(r.Context(), u, req.Name)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp, err := s.groupResponse(r, g)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMyGroups(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	groups, err := s.groupService.ListUserGroups(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		gr, err := s.groupResponse(r, g)
		if err != nil {
			writeServiceError(w, s.log, err)
			return
		}
		resp = append(resp, gr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	var req JoinGroupRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	u := currentUser(r.Context())

	g, err := s.groupService.GetByInviteCode(r.Context(), req.InviteCode)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	if _, err := s.groupService.AddMember(r.Context(), g.ID, u.ID); err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	// A running hatm hands the newcomer their share of the unclaimed juzs.
	if h, err := s.hatmService.GetActiveByGroup(r.Context(), g.ID); err == nil {
		claimed, err := s.hatmService.AssignToNewMember(r.Context(), h.ID, u.ID)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"hatm_id": h.ID,
				"user_id": u.ID,
			}).Error("Failed to assign juzs to joining member")
		} else if len(claimed) > 0 {
			s.dispatcher.NotifyJuzsAssigned(u, h, g, claimed)
		}
	} else if err != app.ErrHatmNotFound {
		writeServiceError(w, s.log, err)
		return
	}

	resp, err := s.groupResponse(r, g)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := s.memberGroup(w, r)
	if !ok {
		return
	}

	memberResponses, err := s.memberResponses(r, g.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := GroupDetailResponse{
		ID:         g.ID,
		Name:       g.Name,
		InviteCode: g.InviteCode,
		CreatorID:  g.CreatorID,
		CreatedAt:  g.CreatedAt,
		Members:    memberResponses,
	}
	if h, err := s.hatmService.GetActiveByGroup(r.Context(), g.ID); err == nil {
		hr := toHatmResponse(h)
		resp.ActiveHatm = &hr
	} else if err != app.ErrHatmNotFound {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListGroupMembers(w http.ResponseWriter, r *http.Request) {
	g, ok := s.memberGroup(w, r)
	if !ok {
		return
	}

	memberResponses, err := s.memberResponses(r, g.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, memberResponses)
}

// memberGroup loads the {groupID} route group and enforces that the caller
// belongs to it, writing the error response itself when not.
func (s *Server) memberGroup(w http.ResponseWriter, r *http.Request) (*group.Group, bool) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid group ID")
		return nil, false
	}

	g, err := s.groupService.GetByID(r.Context(), groupID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return nil, false
	}

	u := currentUser(r.Context())
	isMember, err := s.groupService.IsMember(r.Context(), g.ID, u.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return nil, false
	}
	if !isMember {
		writeErrorMessage(w, http.StatusForbidden, "you are not a member of this group")
		return nil, false
	}
	return g, true
}

func (s *Server) groupResponse(r *http.Request, g *group.Group) (GroupResponse, error) {
	count, err := s.groupService.MembersCount(r.Context(), g.ID)
	if err != nil {
		return GroupResponse{}, err
	}

	hasActive := false
	if _, err := s.hatmService.GetActiveByGroup(r.Context(), g.ID); err == nil {
		hasActive = true
	} else if err != app.ErrHatmNotFound {
		return GroupResponse{}, err
	}

	return GroupResponse{
		ID:            g.ID,
		Name:          g.Name,
		InviteCode:    g.InviteCode,
		CreatorID:     g.CreatorID,
		CreatedAt:     g.CreatedAt,
		MembersCount:  count,
		HasActiveHatm: hasActive,
	}, nil
}

func (s *Server) memberResponses(r *http.Request, groupID int64) ([]MemberResponse, error) {
	members, err := s.groupService.Members(r.Context(), groupID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	users, err := s.userService.ListByIDs(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m, byID[m.UserID]))
	}
	return resp, nil
}

// decodeAndValidate parses the JSON body into dst and runs the validator,
// answering 400/422 itself on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeErrorMessage(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
