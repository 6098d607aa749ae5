package frontend

import (
	"encoding/json"
	"net/http"
	"strconv"

	coreContext "github.com/browsercore/browsercore/internal/context"
	"github.com/browsercore/browsercore/internal/coreapi"
)

type createContextBody struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
}

func (s *Server) handleCreateContext(w http.ResponseWriter, r *http.Request) {
	var body createContextBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	c, err := s.api.CreateContext(r.Context(), principalFromRequest(r), r.PathValue("id"), coreapi.CreateContextRequest{
		Name:   body.Name,
		Type:   body.Type,
		Config: body.Config,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	c, err := s.api.GetContext(r.Context(), principalFromRequest(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type updateContextBody struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleUpdateContext(w http.ResponseWriter, r *http.Request) {
	var body updateContextBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	c, err := s.api.UpdateContext(r.Context(), principalFromRequest(r), r.PathValue("id"), coreapi.UpdateContextRequest{
		Name:     body.Name,
		Metadata: body.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteContext(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeleteContext(r.Context(), principalFromRequest(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListContexts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := coreapi.ContextFilter{
		Type:   q.Get("type"),
		Status: coreContext.Status(q.Get("status")),
	}
	page := coreapi.Page{
		Offset: atoiOrZero(q.Get("offset")),
		Limit:  atoiOrZero(q.Get("limit")),
	}

	contexts, err := s.api.ListContexts(r.Context(), principalFromRequest(r), r.PathValue("id"), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contexts)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
