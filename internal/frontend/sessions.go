package frontend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/browsercore/browsercore/internal/coreapi"
)

type createSessionBody struct {
	UserID   string            `json:"userId"`
	Username string            `json:"username"`
	Roles    []string          `json:"roles"`
	TTL      string            `json:"ttl"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	var ttl time.Duration
	if body.TTL != "" {
		d, err := time.ParseDuration(body.TTL)
		if err != nil {
			http.Error(w, "invalid ttl", http.StatusBadRequest)
			return
		}
		ttl = d
	}

	id, err := s.api.CreateSession(r.Context(), principalFromRequest(r), coreapi.CreateSessionRequest{
		UserID:   body.UserID,
		Username: body.Username,
		Roles:    body.Roles,
		TTL:      ttl,
		Metadata: body.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.api.GetSession(r.Context(), principalFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleTouchSession(w http.ResponseWriter, r *http.Request) {
	ok, err := s.api.TouchSession(r.Context(), principalFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"touched": ok})
}

func (s *Server) handleRefreshSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TTL string `json:"ttl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ttl, err := time.ParseDuration(body.TTL)
	if err != nil {
		http.Error(w, "invalid ttl", http.StatusBadRequest)
		return
	}
	sess, err := s.api.RefreshSession(r.Context(), principalFromRequest(r), r.PathValue("id"), ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ok, err := s.api.DeleteSession(r.Context(), principalFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": ok})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId query parameter required", http.StatusBadRequest)
		return
	}
	sessions, err := s.api.ListSessionsByUser(r.Context(), principalFromRequest(r), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
