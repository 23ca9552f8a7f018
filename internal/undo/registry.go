// Package undo keeps per-document undo/redo history as whole-content
// snapshots. Edits are coalesced by a debounce before they become snapshots,
// and snapshots written back into the editor by undo or redo are kept out of
// the history by a suppression Gate.
//
// Nothing in this package locks. All calls, and all timers it schedules,
// must run on the same schedule.Scheduler.
package undo

import (
	"log/slog"
	"slices"
	"time"

	"github.com/umeshbist27/notetaking/internal/markup"
	"github.com/umeshbist27/notetaking/internal/schedule"
)

// NewDocumentID identifies a document that has not been persisted yet.
const NewDocumentID = "new"

// Defaults used when Config leaves a field zero.
const (
	DefaultCaptureDelay = time.Second
	DefaultGraceDelay   = 100 * time.Millisecond
	DefaultMaxDepth     = 50
)

// Stack is a copy of one document's history, oldest snapshot first.
type Stack struct {
	Undo      []string
	Redo      []string
	LastSaved string
}

type stack struct {
	undo      []string
	redo      []string
	lastSaved string
}

func newStack(content string) *stack {
	return &stack{
		undo:      []string{content},
		redo:      []string{},
		lastSaved: content,
	}
}

func (s *stack) top() string {
	return s.undo[len(s.undo)-1]
}

// Config holds configuration for creating a Registry.
type Config struct {
	Scheduler    schedule.Scheduler
	CaptureDelay time.Duration
	GraceDelay   time.Duration
	MaxDepth     int
	Logger       *slog.Logger
}

// Registry owns the history of every active document and the capture timer
// of each. A Registry is scoped to one editor surface.
type Registry struct {
	sched    schedule.Scheduler
	stacks   map[string]*stack
	capture  *schedule.Debouncer[string]
	gate     *Gate
	maxDepth int
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	captureDelay := cfg.CaptureDelay
	if captureDelay == 0 {
		captureDelay = DefaultCaptureDelay
	}

	grace := cfg.GraceDelay
	if grace == 0 {
		grace = DefaultGraceDelay
	}

	maxDepth := cfg.MaxDepth
	if maxDepth == 0 {
		maxDepth = DefaultMaxDepth
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		sched:    cfg.Scheduler,
		stacks:   make(map[string]*stack),
		capture:  schedule.NewDebouncer[string](cfg.Scheduler, captureDelay),
		gate:     newGate(cfg.Scheduler, grace),
		maxDepth: maxDepth,
		logger:   logger.With("component", "undo"),
	}
}

// Init activates id with its externally supplied content. A document seen
// for the first time gets a stack seeded with content. If a stack exists and
// its top differs from content, the document was reset elsewhere and its
// history is replaced; otherwise only the baseline moves. Any pending
// capture for id is dropped.
func (r *Registry) Init(id, content string) {
	r.capture.Cancel(id)

	st, ok := r.stacks[id]
	if !ok {
		r.stacks[id] = newStack(content)

		return
	}

	if !markup.Equal(content, st.top()) {
		r.logger.Debug("document content replaced, resetting history", "doc", id, "depth", len(st.undo))
		r.stacks[id] = newStack(content)

		return
	}

	st.lastSaved = content
}

// Capture schedules content to become a snapshot of id once edits have been
// quiet for the capture delay. Every call replaces the previously scheduled
// capture. Captures are dropped while the gate is held for id.
func (r *Registry) Capture(id, content string) {
	if r.gate.Suppresses(id) {
		return
	}

	r.capture.Trigger(id, func() {
		r.push(id, content)
	})
}

// push records content as the newest snapshot if it differs from the baseline.
func (r *Registry) push(id, content string) {
	st, ok := r.stacks[id]
	if !ok {
		return
	}

	normalized := markup.NormalizeForUndo(content)
	if normalized == "" || normalized == markup.NormalizeForUndo(st.lastSaved) {
		return
	}

	st.undo = append(st.undo, content)
	st.lastSaved = content

	if len(st.undo) > r.maxDepth {
		st.undo = slices.Delete(st.undo, 0, len(st.undo)-r.maxDepth)
	}

	st.redo = st.redo[:0]
}

// CancelCapture drops the pending capture for id, keeping its history.
func (r *Registry) CancelCapture(id string) {
	r.capture.Cancel(id)
}

// CapturePending reports whether a capture is scheduled for id.
func (r *Registry) CapturePending(id string) bool {
	return r.capture.Pending(id)
}

// Clear forgets id and its pending capture. It is safe to call for unknown ids.
func (r *Registry) Clear(id string) {
	delete(r.stacks, id)
	r.capture.Cancel(id)

	if r.gate.doc == id {
		r.gate.reset()
	}
}

// ClearAll forgets every document.
func (r *Registry) ClearAll() {
	r.capture.CancelAll()
	r.stacks = make(map[string]*stack)
	r.gate.reset()
}

// Stack returns a copy of the history for id.
func (r *Registry) Stack(id string) (Stack, bool) {
	st, ok := r.stacks[id]
	if !ok {
		return Stack{}, false
	}

	return Stack{
		Undo:      slices.Clone(st.undo),
		Redo:      slices.Clone(st.redo),
		LastSaved: st.lastSaved,
	}, true
}

// Len returns the number of documents with history.
func (r *Registry) Len() int {
	return len(r.stacks)
}

// Gate returns the suppression gate shared by the registry's documents.
func (r *Registry) Gate() *Gate {
	return r.gate
}
