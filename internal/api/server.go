package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/umeshbist27/notetaking/internal/keymap"
	"github.com/umeshbist27/notetaking/internal/notes"
	"github.com/umeshbist27/notetaking/internal/session"
	"github.com/umeshbist27/notetaking/internal/ws"
)

// EditorConfig holds the timing of every editing session the server starts.
// Zero values select the package defaults.
type EditorConfig struct {
	CaptureDelay   time.Duration
	GraceDelay     time.Duration
	MaxDepth       int
	AutosaveDelay  time.Duration
	IndicatorDelay time.Duration
}

// Server handles HTTP requests for the notes API.
type Server struct {
	notes    *notes.Service
	manager  *session.Manager
	hub      *ws.Hub
	keys     *keymap.Keymap
	editor   EditorConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// conns counts WebSocket handlers that have not finished cleaning up.
	conns sync.WaitGroup
}

// ServerConfig holds configuration for creating a server.
type ServerConfig struct {
	Notes   *notes.Service
	Manager *session.Manager
	Hub     *ws.Hub
	Keymap  *keymap.Keymap
	Editor  EditorConfig
	Logger  *slog.Logger
}

// NewServer creates a new API server. Changes made through the note service
// are forwarded to open sessions and to WebSocket subscribers.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	keys := cfg.Keymap
	if keys == nil {
		keys = keymap.Default()
	}

	s := &Server{
		notes:   cfg.Notes,
		manager: cfg.Manager,
		hub:     cfg.Hub,
		keys:    keys,
		editor:  cfg.Editor,
		logger:  logger.With("component", "api"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool {
				return true // Allow all origins for demo
			},
		},
	}

	s.notes.Subscribe(s.onNoteEvent)

	return s
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Note endpoints (require auth)
	mux.Handle("/notes", s.authMiddleware(http.HandlerFunc(s.handleNotes)))
	mux.Handle("/notes/", s.authMiddleware(http.HandlerFunc(s.handleNoteByID)))

	// WebSocket endpoint (requires auth)
	mux.Handle("/ws", s.authMiddleware(http.HandlerFunc(s.handleWebSocket)))

	return mux
}

// handleNotes routes GET and POST requests for /notes.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListNotes(w, r)
	case http.MethodPost:
		s.handleCreateNote(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNoteByID routes GET, PUT and DELETE requests for /notes/{id}.
func (s *Server) handleNoteByID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetNote(w, r)
	case http.MethodPut:
		s.handleUpdateNote(w, r)
	case http.MethodDelete:
		s.handleDeleteNote(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// onNoteEvent fans a note change out to sessions and WebSocket clients.
func (s *Server) onNoteEvent(e notes.Event) {
	s.manager.HandleNoteEvent(e)
	s.hub.NoteUpdated(ws.UpdatedPayload{
		NoteID:    e.Note.ID,
		Title:     e.Note.Title,
		UpdatedAt: e.Note.UpdatedAt,
		Deleted:   e.Kind == notes.NoteDeleted,
	})
}

// Shutdown closes every WebSocket connection and waits until each session
// has saved its pending edits, or ctx is done. Call it after the HTTP server
// stopped accepting connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()

	done := make(chan struct{})

	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
