package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/umeshbist27/notetaking/internal/markup"
	"github.com/umeshbist27/notetaking/internal/notes"
)

// NoteRequest is the request body for creating or updating a note.
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// handleListNotes handles GET /notes.
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	all, err := s.notes.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if all == nil {
		all = []notes.Note{}
	}

	s.writeJSON(w, r, http.StatusOK, all)
}

// handleCreateNote handles POST /notes.
func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	saved, err := s.notes.Save(r.Context(), UserIDFromContext(r.Context()), req.note(""))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusCreated, saved)
}

// handleGetNote handles GET /notes/{id}.
func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	noteID := extractNoteID(r.URL.Path, "/notes/")
	if noteID == "" {
		http.Error(w, "note ID is required", http.StatusBadRequest)

		return
	}

	n, err := s.notes.Get(r.Context(), UserIDFromContext(r.Context()), noteID)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, n)
}

// handleUpdateNote handles PUT /notes/{id}.
func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	noteID := extractNoteID(r.URL.Path, "/notes/")
	if noteID == "" || noteID == notes.NewNoteID {
		http.Error(w, "note ID is required", http.StatusBadRequest)

		return
	}

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	saved, err := s.notes.Save(r.Context(), UserIDFromContext(r.Context()), req.note(noteID))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, r, http.StatusOK, saved)
}

// handleDeleteNote handles DELETE /notes/{id}.
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID := extractNoteID(r.URL.Path, "/notes/")
	if noteID == "" {
		http.Error(w, "note ID is required", http.StatusBadRequest)

		return
	}

	if err := s.notes.Delete(r.Context(), UserIDFromContext(r.Context()), noteID); err != nil {
		s.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (req NoteRequest) note(id string) notes.Note {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)

	return notes.Note{
		ID:       id,
		Title:    title,
		Content:  content,
		ImageURL: markup.FirstImageURL(content),
	}
}

// writeError maps service errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		http.Error(w, "note not found", http.StatusNotFound)
	case errors.Is(err, notes.ErrNoteForbidden):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, notes.ErrEmptyNote):
		http.Error(w, "note is empty", http.StatusBadRequest)
	case errors.Is(err, notes.ErrNoteExists):
		http.Error(w, "note already exists", http.StatusConflict)
	default:
		loggerFrom(r.Context(), s.logger).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context(), s.logger).Warn("failed to encode response", "error", err)
	}
}

// extractNoteID extracts the note ID from a URL path.
func extractNoteID(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}

	return strings.TrimPrefix(path, prefix)
}
