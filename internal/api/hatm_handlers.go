// internal/api/hatm_handlers.go
package api

import (
	"net/http"

	"hatm_bot/internal/app"
	"hatm_bot/internal/domain/hatm"
)

func (s *Server) handleCreateHatm(w http.ResponseWriter, r *http.Request) {
	g, ok := s.memberGroup(w, r)
	if !ok {
		return
	}
	var req CreateHatmRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	h, err := s.hatmService.Create(r.Context(), g.ID, req.DurationDays, req.ParticipantsCount)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toHatmResponse(h))
}

func (s *Server) handleListGroupHatms(w http.ResponseWriter, r *http.Request) {
	g, ok := s.memberGroup(w, r)
	if !ok {
		return
	}

	hatms, err := s.hatmService.ListByGroup(r.Context(), g.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := make([]HatmResponse, 0, len(hatms))
	for _, h := range hatms {
		resp = append(resp, toHatmResponse(h))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetHatm(w http.ResponseWriter, r *http.Request) {
	h, ok := s.memberHatm(w, r)
	if !ok {
		return
	}
	s.settleIfExpired(r, h)

	progress, err := s.hatmService.Progress(r.Context(), h.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := HatmDetailResponse{HatmResponse: toHatmResponse(h)}
	resp.JuzAssignments = make([]JuzResponse, 0, len(progress.Juzs))
	for _, j := range progress.Juzs {
		resp.JuzAssignments = append(resp.JuzAssignments, toJuzResponse(j.Assignment, j.Reader))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartHatm(w http.ResponseWriter, r *http.Request) {
	h, ok := s.memberHatm(w, r)
	if !ok {
		return
	}

	members, err := s.groupService.Members(r.Context(), h.GroupID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	if len(members) == 0 {
		writeServiceError(w, s.log, app.ErrNoParticipants)
		return
	}
	participantIDs := make([]int64, 0, len(members))
	for _, m := range members {
		participantIDs = append(participantIDs, m.UserID)
	}

	started, assigned, err := s.hatmService.Start(r.Context(), h.ID, participantIDs)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	g, err := s.groupService.GetByID(r.Context(), started.GroupID)
	if err == nil {
		for _, member := range assigned {
			s.dispatcher.NotifyJuzsAssigned(member.User, started, g, member.Juzs)
		}
	} else {
		s.log.WithError(err).WithField("group_id", started.GroupID).Error("Cannot resolve group for start notifications")
	}

	writeJSON(w, http.StatusOK, toHatmResponse(started))
}

func (s *Server) handleGetHatmProgress(w http.ResponseWriter, r *http.Request) {
	h, ok := s.memberHatm(w, r)
	if !ok {
		return
	}
	s.settleIfExpired(r, h)

	progress, err := s.hatmService.Progress(r.Context(), h.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressResponse(progress))
}

func (s *Server) handleCompleteHatm(w http.ResponseWriter, r *http.Request) {
	h, ok := s.memberHatm(w, r)
	if !ok {
		return
	}

	completed, err := s.hatmService.ForceComplete(r.Context(), h.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toHatmResponse(completed))
}

func (s *Server) handleCompleteJuz(w http.ResponseWriter, r *http.Request) {
	juzID, err := pathID(r, "juzID")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid juz ID")
		return
	}
	u := currentUser(r.Context())

	juz, err := s.hatmService.GetJuzByID(r.Context(), juzID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	if !juz.UserID.Valid || juz.UserID.Int64 != u.ID {
		writeErrorMessage(w, http.StatusForbidden, "this juz is not yours")
		return
	}

	juz, err = s.hatmService.MarkJuzCompleted(r.Context(), juz.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}
	if _, err := s.hatmService.CheckAndComplete(r.Context(), juz.HatmID); err != nil {
		s.log.WithError(err).WithField("hatm_id", juz.HatmID).Error("Failed to check hatm completion")
	}

	writeJSON(w, http.StatusOK, toJuzResponse(juz, u))
}

// memberHatm loads the {hatmID} route hatm and enforces that the caller
// belongs to its group.
func (s *Server) memberHatm(w http.ResponseWriter, r *http.Request) (*hatm.Hatm, bool) {
	hatmID, err := pathID(r, "hatmID")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid hatm ID")
		return nil, false
	}

	h, err := s.hatmService.GetByID(r.Context(), hatmID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return nil, false
	}

	u := currentUser(r.Context())
	isMember, err := s.groupService.IsMember(r.Context(), h.GroupID, u.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return nil, false
	}
	if !isMember {
		writeErrorMessage(w, http.StatusForbidden, "you are not a member of this group")
		return nil, false
	}
	return h, true
}

// settleIfExpired runs the reactive deadline check before serving reads, so
// an overdue hatm is observed as completed with debts even between sweeps.
// Failures are logged and the stale state served instead.
func (s *Server) settleIfExpired(r *http.Request, h *hatm.Hatm) {
	expired, debtors, err := s.hatmService.CheckExpired(r.Context(), h)
	if err != nil {
		s.log.WithError(err).WithField("hatm_id", h.ID).Error("Reactive expiry check failed")
		return
	}
	if !expired {
		return
	}
	for _, d := range debtors {
		s.dispatcher.NotifyDebtsCreated(d.User, d.Juzs)
	}
}
