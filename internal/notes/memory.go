package notes

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Useful for testing and development.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[string]Note
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes: make(map[string]Note),
	}
}

// Create stores a new note.
func (m *MemoryStore) Create(_ context.Context, n Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.notes[n.ID]; exists {
		return ErrNoteExists
	}

	m.notes[n.ID] = n

	return nil
}

// Get returns a note by ID.
func (m *MemoryStore) Get(_ context.Context, id string) (Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, exists := m.notes[id]
	if !exists {
		return Note{}, ErrNoteNotFound
	}

	return n, nil
}

// Update replaces a stored note.
func (m *MemoryStore) Update(_ context.Context, n Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.notes[n.ID]; !exists {
		return ErrNoteNotFound
	}

	m.notes[n.ID] = n

	return nil
}

// Delete removes a note.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.notes[id]; !exists {
		return ErrNoteNotFound
	}

	delete(m.notes, id)

	return nil
}

// List returns the notes owned by userID, most recently updated first.
func (m *MemoryStore) List(_ context.Context, userID string) ([]Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Note, 0, len(m.notes))

	for _, n := range m.notes {
		if userID == "" || n.UserID == userID {
			result = append(result, n)
		}
	}

	sortByUpdated(result)

	return result, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
