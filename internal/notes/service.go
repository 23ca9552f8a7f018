package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeKind says what happened to a note.
type ChangeKind int

const (
	// NoteSaved means the note was created or updated.
	NoteSaved ChangeKind = iota + 1
	// NoteDeleted means the note was removed.
	NoteDeleted
)

// Event describes a note change made through a Service.
type Event struct {
	Kind ChangeKind
	Note Note
}

// ServiceConfig holds configuration for creating a service.
type ServiceConfig struct {
	Store  Store
	Clock  func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Service owns note persistence rules: ownership, timestamps, and whether a
// save creates or updates.
type Service struct {
	store  Store
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers []func(Event)
}

// NewService creates a new note service.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:  cfg.Store,
		clock:  clock,
		newID:  newID,
		logger: logger.With("component", "notes"),
	}
}

// Subscribe registers fn to receive every change made through the service.
// fn runs on the caller's goroutine and must not block.
func (s *Service) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// Save persists n for userID. A note without an ID, or with the new-note
// sentinel, is created under a fresh ID; anything else updates the stored
// note, keeping its owner and creation time. Returns ErrEmptyNote when both
// title and content are blank.
func (s *Service) Save(ctx context.Context, userID string, n Note) (Note, error) {
	if n.Blank() {
		return Note{}, ErrEmptyNote
	}

	now := s.clock()

	if n.IsNew() {
		n.ID = s.newID()
		n.UserID = userID
		n.CreatedAt = now
		n.UpdatedAt = now

		if err := s.store.Create(ctx, n); err != nil {
			return Note{}, fmt.Errorf("create note: %w", err)
		}

		s.logger.Info("note created", "note", n.ID, "user", userID)
		s.publish(Event{Kind: NoteSaved, Note: n})

		return n, nil
	}

	existing, err := s.Get(ctx, userID, n.ID)
	if err != nil {
		return Note{}, err
	}

	existing.Title = n.Title
	existing.Content = n.Content
	existing.ImageURL = n.ImageURL
	existing.UpdatedAt = now

	if err := s.store.Update(ctx, existing); err != nil {
		return Note{}, fmt.Errorf("update note %s: %w", n.ID, err)
	}

	s.logger.Debug("note updated", "note", existing.ID, "user", userID)
	s.publish(Event{Kind: NoteSaved, Note: existing})

	return existing, nil
}

// Get returns the note with id if userID may see it.
func (s *Service) Get(ctx context.Context, userID, id string) (Note, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return Note{}, err
	}

	if !owns(userID, n) {
		return Note{}, ErrNoteForbidden
	}

	return n, nil
}

// List returns userID's notes, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]Note, error) {
	return s.store.List(ctx, userID)
}

// Delete removes the note with id if userID owns it.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	n, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}

	s.logger.Info("note deleted", "note", id, "user", userID)
	s.publish(Event{Kind: NoteDeleted, Note: n})

	return nil
}

// Reload reads id straight from the store, bypassing ownership, and reports
// it to subscribers. It is used when the store changed underneath the
// service. A note that no longer exists is reported as deleted.
func (s *Service) Reload(ctx context.Context, id string) error {
	n, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNoteNotFound) {
		s.publish(Event{Kind: NoteDeleted, Note: Note{ID: id}})

		return nil
	}

	if err != nil {
		return err
	}

	s.publish(Event{Kind: NoteSaved, Note: n})

	return nil
}

func (s *Service) publish(e Event) {
	s.mu.RLock()
	subs := make([]func(Event), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

// owns reports whether userID may access n. Notes without an owner, and
// callers without an identity, are not restricted.
func owns(userID string, n Note) bool {
	return userID == "" || n.UserID == "" || n.UserID == userID
}
