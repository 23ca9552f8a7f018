// Package session is the server side of one connected editor: a headless
// editor buffer, its undo history and its autosave pipeline, all driven from
// a single scheduler.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/umeshbist27/notetaking/internal/autosave"
	"github.com/umeshbist27/notetaking/internal/editor"
	"github.com/umeshbist27/notetaking/internal/keymap"
	"github.com/umeshbist27/notetaking/internal/markup"
	"github.com/umeshbist27/notetaking/internal/notes"
	"github.com/umeshbist27/notetaking/internal/schedule"
	"github.com/umeshbist27/notetaking/internal/undo"
)

// Common errors.
var (
	ErrSessionClosed = errors.New("session is closed")
	ErrNotMounted    = errors.New("editor is not mounted")
	ErrSessionExists = errors.New("session already exists")
)

const saveTimeout = 10 * time.Second

// Saver persists notes on behalf of a user. *notes.Service implements it.
type Saver interface {
	Save(ctx context.Context, userID string, n notes.Note) (notes.Note, error)
}

// EventKind identifies a session notification.
type EventKind int

const (
	// EventSaved means the active note was saved.
	EventSaved EventKind = iota + 1
	// EventSavedCleared means the saved indicator timed out.
	EventSavedCleared
	// EventSaveFailed means an autosave failed; Err says why.
	EventSaveFailed
	// EventRefreshed means the active note changed elsewhere and was reloaded.
	EventRefreshed
	// EventRemoved means the active note was deleted elsewhere.
	EventRemoved
)

// Event is sent to Config.Notify. It is delivered on the session scheduler.
type Event struct {
	Kind EventKind
	Note notes.Note
	Err  error
}

// State is a snapshot of what the editor shows.
type State struct {
	NoteID    string           `json:"noteId"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Selection editor.Selection `json:"selection"`
	CanUndo   bool             `json:"canUndo"`
	CanRedo   bool             `json:"canRedo"`
	Saved     bool             `json:"saved"`
	Dirty     bool             `json:"dirty"`
}

// Config holds configuration for creating a session.
type Config struct {
	ID        string
	UserID    string
	Scheduler schedule.Scheduler
	Saver     Saver
	Keymap    *keymap.Keymap
	Notify    func(Event)
	Logger    *slog.Logger

	CaptureDelay   time.Duration
	GraceDelay     time.Duration
	MaxDepth       int
	AutosaveDelay  time.Duration
	IndicatorDelay time.Duration
}

// Session is one editing surface. Apart from ID and Scheduler, its methods
// must only be called from tasks running on its scheduler.
type Session struct {
	id     string
	userID string
	sched  schedule.Scheduler
	saver  Saver
	keys   *keymap.Keymap
	notify func(Event)
	logger *slog.Logger

	buf      *editor.Buffer
	reg      *undo.Registry
	ctrl     *undo.Controller
	autosave *autosave.Pipeline

	active      string
	lastContent string
	// minSeq is the first editor change that belongs to the active note.
	minSeq uint64

	unsubscribe []func()
	closed      bool
}

// New creates a session with no note open and the editor not mounted.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("session", cfg.ID, "user", cfg.UserID)

	keys := cfg.Keymap
	if keys == nil {
		keys = keymap.Default()
	}

	notify := cfg.Notify
	if notify == nil {
		notify = func(Event) {}
	}

	s := &Session{
		id:     cfg.ID,
		userID: cfg.UserID,
		sched:  cfg.Scheduler,
		saver:  cfg.Saver,
		keys:   keys,
		notify: notify,
		logger: logger.With("component", "session"),
		buf:    editor.NewBuffer(cfg.Scheduler),
	}

	s.reg = undo.NewRegistry(undo.Config{
		Scheduler:    cfg.Scheduler,
		CaptureDelay: cfg.CaptureDelay,
		GraceDelay:   cfg.GraceDelay,
		MaxDepth:     cfg.MaxDepth,
		Logger:       logger,
	})
	s.ctrl = undo.NewController(s.reg)
	s.autosave = autosave.New(autosave.Config{
		Scheduler:      cfg.Scheduler,
		Delay:          cfg.AutosaveDelay,
		IndicatorDelay: cfg.IndicatorDelay,
		Save:           s.save,
		Notify:         s.onAutosave,
		Logger:         logger,
	})
	s.autosave.AttachEditor(s.buf)

	s.unsubscribe = append(s.unsubscribe,
		s.buf.OnChange(s.onChange),
		s.buf.OnInit(s.onInit),
	)

	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// UserID returns the user the session edits for.
func (s *Session) UserID() string {
	return s.userID
}

// Scheduler returns the scheduler the session runs on.
func (s *Session) Scheduler() schedule.Scheduler {
	return s.sched
}

// ActiveID returns the ID of the open note, "new" for an unsaved note, or
// "" before the first Open.
func (s *Session) ActiveID() string {
	return s.active
}

// Mount initializes the editor with the open note's content. Mounting twice
// is a no-op.
func (s *Session) Mount() error {
	if s.closed {
		return ErrSessionClosed
	}

	if s.buf.Ready() {
		return nil
	}

	_, content := s.autosave.Editing()
	s.buf.Init(content)

	return nil
}

func (s *Session) onInit() {
	s.lastContent = s.buf.Content()
}

// Open activates n in the editor. Switching to a different note cancels the
// previous note's pending capture and pending save before anything of the
// new note is loaded. Re-opening the active note only moves the baselines,
// unless the editor shows different content, in which case it is reloaded.
func (s *Session) Open(n notes.Note) error {
	if s.closed {
		return ErrSessionClosed
	}

	id := documentID(n)

	s.autosave.Activate(n)

	if id == s.active {
		if s.buf.Ready() && !markup.Equal(s.buf.Content(), n.Content) {
			s.reload(n.Content)

			return nil
		}

		s.lastContent = n.Content

		return nil
	}

	if s.active != "" {
		s.reg.CancelCapture(s.active)
	}

	s.active = id
	s.reload(n.Content)

	s.logger.Debug("note opened", "note", id)

	return nil
}

// reload puts content into the editor as the active note's loaded state.
// Change notifications still in flight are ignored from here on.
func (s *Session) reload(content string) {
	if s.buf.Ready() && s.buf.Content() != content {
		s.buf.SetContent(content)
	}

	s.reg.Init(s.active, content)
	s.lastContent = content
	s.minSeq = s.buf.Seq() + 1
}

// Input applies a user edit to the editor.
func (s *Session) Input(content string, sel editor.Selection) error {
	if err := s.usable(); err != nil {
		return err
	}

	s.buf.Input(content, sel)

	return nil
}

// Select moves the editor selection.
func (s *Session) Select(sel editor.Selection) error {
	if err := s.usable(); err != nil {
		return err
	}

	s.buf.Select(sel)

	return nil
}

// Title applies a user edit to the title of the open note.
func (s *Session) Title(title string) error {
	if s.closed {
		return ErrSessionClosed
	}

	if s.active == "" {
		return ErrNotMounted
	}

	s.autosave.Title(title)

	return nil
}

// Undo steps the active note back one snapshot. It reports false when there
// is nothing to undo.
func (s *Session) Undo() (bool, error) {
	if err := s.usable(); err != nil {
		return false, err
	}

	return s.ctrl.Undo(s.active, s.buf), nil
}

// Redo reapplies the last undone snapshot. It reports false when there is
// nothing to redo.
func (s *Session) Redo() (bool, error) {
	if err := s.usable(); err != nil {
		return false, err
	}

	return s.ctrl.Redo(s.active, s.buf), nil
}

// Key runs the command bound to chord. Unbound chords report false.
func (s *Session) Key(chord string) (bool, error) {
	cmd, ok := s.keys.Lookup(chord)
	if !ok {
		return false, nil
	}

	switch cmd {
	case keymap.CommandUndo:
		return s.Undo()
	case keymap.CommandRedo:
		return s.Redo()
	default:
		return false, nil
	}
}

// Refresh reloads n if it is the active note and differs from what the
// session last loaded or saved. Local history is replaced when the content
// changed.
func (s *Session) Refresh(n notes.Note) {
	if s.closed || s.active == "" || documentID(n) != s.active {
		return
	}

	orig := s.autosave.Original()
	if n.Title == orig.Title && n.Content == orig.Content {
		return
	}

	s.autosave.Activate(n)
	s.reload(n.Content)

	s.logger.Info("note changed elsewhere, reloaded", "note", s.active)
	s.notify(Event{Kind: EventRefreshed, Note: n})
}

// Remove forgets the history of note id. If it is the active note, the
// session switches to a blank new note.
func (s *Session) Remove(id string) {
	if s.closed {
		return
	}

	if id != s.active {
		s.reg.Clear(id)

		return
	}

	removed := s.autosave.Original()

	_ = s.Open(notes.Note{ID: notes.NewNoteID})
	s.reg.Clear(id)
	s.notify(Event{Kind: EventRemoved, Note: removed})
}

// State returns what the editor currently shows.
func (s *Session) State() State {
	title, content := s.autosave.Editing()
	if s.buf.Ready() {
		content = s.buf.Content()
	}

	return State{
		NoteID:    s.active,
		Title:     title,
		Content:   content,
		Selection: s.buf.Selection(),
		CanUndo:   s.ctrl.CanUndo(s.active),
		CanRedo:   s.ctrl.CanRedo(s.active),
		Saved:     s.autosave.SavedVisible(),
		Dirty:     s.autosave.Pending(),
	}
}

// History returns a copy of the undo history of the active note.
func (s *Session) History() (undo.Stack, bool) {
	return s.reg.Stack(s.active)
}

// Close saves pending edits and releases every timer. Closing twice is a
// no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	s.autosave.Flush()
	s.closed = true
	s.autosave.Close()
	s.reg.ClearAll()

	for _, fn := range s.unsubscribe {
		fn()
	}

	s.unsubscribe = nil

	return nil
}

func (s *Session) usable() error {
	if s.closed {
		return ErrSessionClosed
	}

	if !s.buf.Ready() {
		return ErrNotMounted
	}

	return nil
}

// onChange is the editor change hook.
func (s *Session) onChange(c editor.Change) {
	// Notifications emitted before the active note was loaded belong to the
	// previous note.
	if s.closed || s.active == "" || c.Seq < s.minSeq {
		return
	}

	s.autosave.Content(c.Content)

	if markup.NormalizeForUndo(c.Content) != markup.NormalizeForUndo(s.lastContent) {
		s.reg.Capture(s.active, c.Content)
		s.lastContent = c.Content
	}
}

// save is the autosave collaborator. A note saved for the first time moves
// from the new-note sentinel to its real ID with a fresh history.
func (s *Session) save(n notes.Note) error {
	if s.saver == nil {
		return errors.New("no saver configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	saved, err := s.saver.Save(ctx, s.userID, n)
	if err != nil {
		return err
	}

	if s.active == undo.NewDocumentID && saved.ID != undo.NewDocumentID {
		s.reg.Clear(undo.NewDocumentID)
		s.reg.Init(saved.ID, saved.Content)
		s.active = saved.ID
		s.logger.Info("new note persisted", "note", saved.ID)
	}

	s.autosave.Rebase(saved)

	return nil
}

func (s *Session) onAutosave(e autosave.Event) {
	switch e.Kind {
	case autosave.EventSaved:
		s.notify(Event{Kind: EventSaved, Note: s.autosave.Original()})
	case autosave.EventSavedCleared:
		s.notify(Event{Kind: EventSavedCleared, Note: e.Note})
	case autosave.EventSaveFailed:
		s.notify(Event{Kind: EventSaveFailed, Note: e.Note, Err: e.Err})
	}
}

func documentID(n notes.Note) string {
	if n.IsNew() {
		return undo.NewDocumentID
	}

	return n.ID
}
