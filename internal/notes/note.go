// Package notes persists notes and routes saves coming from editing
// sessions to the right store operation.
package notes

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// NewNoteID is the id an editing session uses for a note that has not been
// persisted yet.
const NewNoteID = "new"

// Common errors.
var (
	ErrNoteNotFound  = errors.New("note not found")
	ErrNoteExists    = errors.New("note already exists")
	ErrEmptyNote     = errors.New("note has neither title nor content")
	ErrNoteForbidden = errors.New("note belongs to another user")
)

// Note is a persisted note.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsNew reports whether n has not been persisted yet.
func (n Note) IsNew() bool {
	return n.ID == "" || n.ID == NewNoteID
}

// Blank reports whether both title and content are empty after trimming.
func (n Note) Blank() bool {
	return strings.TrimSpace(n.Title) == "" && strings.TrimSpace(n.Content) == ""
}

// Store defines the interface for persisting notes.
type Store interface {
	// Create stores a note under its ID.
	// Returns ErrNoteExists if the ID is taken.
	Create(ctx context.Context, n Note) error

	// Get returns the note with the given ID.
	// Returns ErrNoteNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (Note, error)

	// Update replaces a stored note.
	// Returns ErrNoteNotFound if it doesn't exist.
	Update(ctx context.Context, n Note) error

	// Delete removes a note.
	// Returns ErrNoteNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns the notes owned by userID, most recently updated first.
	// An empty userID lists every note.
	List(ctx context.Context, userID string) ([]Note, error)
}

// sortByUpdated orders notes most recently updated first, breaking ties by ID
// so listings are stable.
func sortByUpdated(all []Note) {
	slices.SortFunc(all, func(a, b Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})
}
