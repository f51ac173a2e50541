// internal/api/user_handlers.go
package api

import (
	"net/http"
)

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserResponse(currentUser(r.Context())))
}

func (s *Server) handleGetMyJuzs(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	stats, err := s.hatmService.UserStats(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := UserJuzStatsResponse{
		TotalAssigned: stats.TotalAssigned,
		Completed:     stats.Completed,
		Pending:       stats.Pending,
		Debts:         stats.Debts,
		Juzs:          make([]JuzResponse, 0, len(stats.Juzs)),
	}
	for _, a := range stats.Juzs {
		resp.Juzs = append(resp.Juzs, toJuzResponse(a, u))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMyDebts(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	debts, err := s.hatmService.ListUserDebts(r.Context(), u.ID)
	if err != nil {
		writeServiceError(w, s.log, err)
		return
	}

	resp := UserDebtsResponse{
		Debts:      make([]JuzResponse, 0, len(debts)),
		TotalDebts: len(debts),
	}
	for _, a := range debts {
		resp.Debts = append(resp.Debts, toJuzResponse(a, u))
	}
	writeJSON(w, http.StatusOK, resp)
}
