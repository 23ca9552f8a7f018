// Package autosave persists an open note shortly after the user stops
// typing, but only when the title or content really changed.
package autosave

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/umeshbist27/notetaking/internal/markup"
	"github.com/umeshbist27/notetaking/internal/notes"
	"github.com/umeshbist27/notetaking/internal/schedule"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultDelay          = 500 * time.Millisecond
	DefaultIndicatorDelay = time.Second
)

// SaveFunc is the save collaborator. It receives the original note with the
// edited title, content and image URL applied.
type SaveFunc func(notes.Note) error

// EventKind identifies a pipeline notification.
type EventKind int

const (
	// EventSaved means a save was dispatched without error.
	EventSaved EventKind = iota + 1
	// EventSavedCleared means the saved indicator should be hidden.
	EventSavedCleared
	// EventSaveFailed means the save collaborator failed.
	EventSaveFailed
)

func (k EventKind) String() string {
	switch k {
	case EventSaved:
		return "saved"
	case EventSavedCleared:
		return "saved-cleared"
	case EventSaveFailed:
		return "save-failed"
	default:
		return "unknown"
	}
}

// Event is sent to Config.Notify.
type Event struct {
	Kind EventKind
	Note notes.Note
	Err  error
}

// ContentReader is the part of the editor the pipeline reads on firing.
type ContentReader interface {
	Ready() bool
	Content() string
}

// Config holds configuration for creating a Pipeline.
type Config struct {
	Scheduler      schedule.Scheduler
	Delay          time.Duration
	IndicatorDelay time.Duration
	Save           SaveFunc
	Notify         func(Event)
	Logger         *slog.Logger
}

// Pipeline debounces title and content edits of the active note into save
// requests. It must only be used from tasks running on its Scheduler.
type Pipeline struct {
	sched          schedule.Scheduler
	delay          time.Duration
	indicatorDelay time.Duration
	save           SaveFunc
	notify         func(Event)
	logger         *slog.Logger

	original notes.Note
	title    string
	content  string
	hasTyped bool
	editor   ContentReader

	pending      schedule.Handle
	indicator    schedule.Handle
	savedVisible bool
}

// New creates a pipeline with no active note.
func New(cfg Config) *Pipeline {
	delay := cfg.Delay
	if delay == 0 {
		delay = DefaultDelay
	}

	indicatorDelay := cfg.IndicatorDelay
	if indicatorDelay == 0 {
		indicatorDelay = DefaultIndicatorDelay
	}

	notify := cfg.Notify
	if notify == nil {
		notify = func(Event) {}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		sched:          cfg.Scheduler,
		delay:          delay,
		indicatorDelay: indicatorDelay,
		save:           cfg.Save,
		notify:         notify,
		logger:         logger.With("component", "autosave"),
	}
}

// AttachEditor makes the pipeline read content from ed when it fires.
// Passing nil detaches it.
func (p *Pipeline) AttachEditor(ed ContentReader) {
	p.editor = ed
}

// Activate makes n the note being edited. Any pending save is dropped and
// the pipeline waits for fresh user input before saving again.
func (p *Pipeline) Activate(n notes.Note) {
	p.Cancel()

	p.original = n
	p.title = n.Title
	p.content = n.Content
	p.hasTyped = false
}

// Rebase replaces the note edits are compared against, without touching
// the edit state or a pending save. Used after the note was persisted.
func (p *Pipeline) Rebase(n notes.Note) {
	p.original = n
}

// Title records a user edit of the title.
func (p *Pipeline) Title(title string) {
	p.title = title
	p.typed()
}

// Content records a user edit of the content.
func (p *Pipeline) Content(content string) {
	p.content = content
	p.typed()
}

func (p *Pipeline) typed() {
	p.hasTyped = true

	schedule.Cancel(p.pending)
	p.pending = p.sched.AfterFunc(p.delay, p.fire)
}

// Cancel drops the pending save, if any.
func (p *Pipeline) Cancel() {
	schedule.Cancel(p.pending)
	p.pending = nil
}

// Close drops every pending timer, including the saved indicator.
func (p *Pipeline) Close() {
	p.Cancel()
	schedule.Cancel(p.indicator)
	p.indicator = nil
	p.savedVisible = false
}

// Flush runs a pending save immediately.
func (p *Pipeline) Flush() {
	if p.pending == nil {
		return
	}

	p.Cancel()
	p.fire()
}

// Pending reports whether a save is scheduled.
func (p *Pipeline) Pending() bool {
	return p.pending != nil
}

// HasTyped reports whether the user edited the note since it was activated.
func (p *Pipeline) HasTyped() bool {
	return p.hasTyped
}

// SavedVisible reports whether the saved indicator is showing.
func (p *Pipeline) SavedVisible() bool {
	return p.savedVisible
}

// Editing returns the title and content as last edited, untrimmed.
func (p *Pipeline) Editing() (title, content string) {
	return p.title, p.content
}

// Original returns the note edits are compared against.
func (p *Pipeline) Original() notes.Note {
	return p.original
}

// Draft returns the note as it would be saved now.
func (p *Pipeline) Draft() notes.Note {
	content := p.content
	if p.editor != nil && p.editor.Ready() {
		content = p.editor.Content()
	}

	draft := p.original
	draft.Title = strings.TrimSpace(p.title)
	draft.Content = strings.TrimSpace(content)
	draft.ImageURL = markup.FirstImageURL(draft.Content)

	return draft
}

func (p *Pipeline) fire() {
	p.pending = nil

	if !p.hasTyped {
		return
	}

	draft := p.Draft()

	titleChanged := draft.Title != strings.TrimSpace(p.original.Title)
	contentChanged := markup.NormalizeForSave(draft.Content) != markup.NormalizeForSave(p.original.Content)

	if !titleChanged && !contentChanged {
		return
	}

	// A note emptied by the user is not saved. Its undo history is left alone.
	if draft.Title == "" && draft.Content == "" {
		p.logger.Debug("skipping save of empty note", "note", draft.ID)

		return
	}

	if err := p.dispatch(draft); err != nil {
		p.logger.Warn("save failed", "note", draft.ID, "error", err)
		p.notify(Event{Kind: EventSaveFailed, Note: draft, Err: err})

		return
	}

	p.showSaved(draft)
}

// dispatch calls the save collaborator, turning a panic into an error.
func (p *Pipeline) dispatch(n notes.Note) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("save panicked: %v", r)
		}
	}()

	return p.save(n)
}

func (p *Pipeline) showSaved(n notes.Note) {
	schedule.Cancel(p.indicator)

	p.savedVisible = true
	p.notify(Event{Kind: EventSaved, Note: n})

	var h schedule.Handle

	h = p.sched.AfterFunc(p.indicatorDelay, func() {
		if p.indicator != h {
			return
		}

		p.indicator = nil
		p.savedVisible = false
		p.notify(Event{Kind: EventSavedCleared, Note: n})
	})
	p.indicator = h
}
