package httpapi

import (
	"net/http"

	"github.com/Freeeeeet/schoolrun/internal/model"
)

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Dashboards.GetDashboard(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) getWeeklyDashboard(w http.ResponseWriter, r *http.Request) {
	ref, err := queryTime(r, "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := s.deps.Dashboards.GetWeeklyDashboard(r.Context(), userID(r), ref)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- me ---

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	user, err := s.deps.Users.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if user == nil {
		s.writeServiceError(w, r, &model.NotFoundError{Entity: "user", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type linkTelegramRequest struct {
	ChatID *int64 `json:"chat_id"`
}

// linkTelegram привязывает чат (chat_id: null отвязывает)
func (s *Server) linkTelegram(w http.ResponseWriter, r *http.Request) {
	var req linkTelegramRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	user, err := s.deps.Users.LinkTelegram(r.Context(), userID(r), req.ChatID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
