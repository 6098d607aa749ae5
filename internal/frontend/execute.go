package frontend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/browsercore/browsercore/internal/action"
)

type executeBody struct {
	Action       action.Action `json:"action"`
	DeadlineUnix int64         `json:"deadlineUnix,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var body executeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var deadline time.Time
	if body.DeadlineUnix > 0 {
		deadline = time.Unix(body.DeadlineUnix, 0)
	}

	res := s.api.Execute(r.Context(), principalFromRequest(r), r.PathValue("id"), &body.Action, deadline)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}
