package session

import (
	"log/slog"
	"sync"

	"github.com/umeshbist27/notetaking/internal/notes"
)

// Manager tracks the sessions of connected clients. Its methods are safe for
// concurrent use; work on a session is posted to that session's scheduler.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// ManagerConfig holds configuration for creating a manager.
type ManagerConfig struct {
	Logger *slog.Logger
}

// NewManager creates a new session manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create builds a session from cfg and registers it under cfg.ID.
func (m *Manager) Create(cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = m.logger
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[cfg.ID]; exists {
		return nil, ErrSessionExists
	}

	s := New(cfg)
	m.sessions[cfg.ID] = s

	return s, nil
}

// Get returns the session with id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sessions[id]
}

// Remove unregisters the session with id and closes it on its scheduler.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if exists {
		s.sched.Post(func() { _ = s.Close() })
	}
}

// Refresh offers n to every session. Sessions that do not have n open ignore
// it.
func (m *Manager) Refresh(n notes.Note) {
	for _, s := range m.snapshot() {
		s.sched.Post(func() { s.Refresh(n) })
	}
}

// Forget tells every session that note id was deleted.
func (m *Manager) Forget(id string) {
	for _, s := range m.snapshot() {
		s.sched.Post(func() { s.Remove(id) })
	}
}

// HandleNoteEvent routes a note service event to the sessions.
func (m *Manager) HandleNoteEvent(e notes.Event) {
	switch e.Kind {
	case notes.NoteSaved:
		m.Refresh(e.Note)
	case notes.NoteDeleted:
		m.Forget(e.Note.ID)
	}
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// CloseAll unregisters every session and closes each on its scheduler.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))

	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}

	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.sched.Post(func() { _ = s.Close() })
	}
}

func (m *Manager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}

	return sessions
}
