package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/dociq/internal/chat"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/selection"
	"github.com/hyperjump/dociq/internal/workspace"
	"go.uber.org/zap"
)

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var ev models.SelectionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("selection event",
		zap.String("document_id", ev.DocumentID),
		zap.Int("page", ev.Page),
		zap.Int("text_len", len(ev.Text)))
	snip, err := s.bridge.Accept(ev)
	if err != nil {
		if errors.Is(err, selection.ErrNoDocument) || errors.Is(err, selection.ErrEmptySelection) {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, snip)
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	snips := s.assembler.Snippets()
	if snips == nil {
		snips = []models.Snippet{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"snippets": snips})
}

func (s *Server) handleRemoveSnippet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.assembler.RemoveSnippet(id) {
		s.respondError(w, http.StatusNotFound, "snippet not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type askRequest struct {
	Text   string `json:"text"`
	DocID  string `json:"docId"`
	Global bool   `json:"global"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The answer outlives this request.
	err := s.assembler.Ask(context.WithoutCancel(r.Context()), req.Text, req.DocID, req.Global)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
	case errors.Is(err, chat.ErrBusy):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrEmptyQuery), errors.Is(err, chat.ErrNoScope):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, chat.ErrClosed):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": s.assembler.Messages()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"state":        s.assembler.State(),
		"inputEnabled": s.assembler.InputEnabled(),
		"global":       s.assembler.Global(),
		"docId":        s.assembler.SelectedDocument(),
		"snippets":     len(s.assembler.Snippets()),
	})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"workspaces": s.workspaces.ListWorkspaces()})
}

type workspaceRequest struct {
	Name      string `json:"name"`
	Workspace string `json:"workspace"`
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.workspaces.CreateWorkspace(r.Context(), req.Name); err != nil {
		s.respondWorkspaceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"workspaces": s.workspaces.ListWorkspaces()})
}

func (s *Server) handleMoveDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req workspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("move document", zap.String("id", id), zap.String("workspace", req.Workspace))
	if err := s.catalog.Move(r.Context(), id, req.Workspace); err != nil {
		s.respondWorkspaceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"id":        id,
		"workspace": s.workspaces.ResolveWorkspace(id),
	})
}

func (s *Server) respondWorkspaceError(w http.ResponseWriter, err error) {
	if errors.Is(err, workspace.ErrInvalidName) {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Error("workspace update failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ws := strings.TrimSpace(r.URL.Query().Get("workspace"))
	if ws == "" {
		ws = models.DefaultWorkspace
	}
	docs, err := s.catalog.Visible(r.Context(), ws, r.URL.Query().Get("q"))
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if docs == nil {
		docs = []models.DocumentRef{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"workspace": ws,
		"documents": docs,
	})
}

func (s *Server) handleDriveStatus(w http.ResponseWriter, r *http.Request) {
	if s.drive == nil {
		s.respondError(w, http.StatusNotImplemented, "drive not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, s.drive.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"state":      s.assembler.State(),
		"messages":   len(s.assembler.Messages()),
		"snippets":   len(s.assembler.Snippets()),
		"workspaces": len(s.workspaces.ListWorkspaces()),
	}
	if id, name := s.bridge.ActiveDocument(); id != "" {
		resp["active_document"] = map[string]string{"id": id, "filename": name}
	}
	if docs, err := s.catalog.Documents(r.Context()); err == nil {
		resp["documents"] = len(docs)
	} else {
		s.logger.Warn("status: list documents failed", zap.Error(err))
	}
	if s.drive != nil {
		resp["drive"] = s.drive.Status()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
