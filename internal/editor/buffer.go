package editor

import (
	"unicode/utf8"

	"github.com/umeshbist27/notetaking/internal/schedule"
)

// Selection is a half-open rune range in the buffer content. A collapsed
// selection (Start == End) is a cursor.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Collapsed reports whether the selection is a cursor.
func (s Selection) Collapsed() bool {
	return s.Start == s.End
}

// Buffer is an in-memory editor. Like a browser editor it delivers change
// notifications asynchronously: they are posted to the scheduler and arrive
// after the call that caused them has returned.
//
// A Buffer must only be used from tasks running on its scheduler.
type Buffer struct {
	sched schedule.Scheduler

	content string
	sel     Selection
	ready   bool
	seq     uint64

	nextSub    int
	changeSubs []subscriber[Change]
	initSubs   []subscriber[struct{}]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewBuffer creates an uninitialized buffer.
func NewBuffer(sched schedule.Scheduler) *Buffer {
	return &Buffer{sched: sched}
}

// Init loads content, marks the buffer ready and notifies OnInit subscribers.
// Calling Init on a ready buffer only replaces the content.
func (b *Buffer) Init(content string) {
	wasReady := b.ready
	b.ready = true
	b.replace(content)

	if wasReady {
		return
	}

	for _, s := range append([]subscriber[struct{}](nil), b.initSubs...) {
		s.fn(struct{}{})
	}
}

// Ready implements Adapter.
func (b *Buffer) Ready() bool {
	return b.ready
}

// Content implements Adapter.
func (b *Buffer) Content() string {
	return b.content
}

// SetContent implements Adapter. The selection collapses to the start of the
// document, as it does in browser editors.
func (b *Buffer) SetContent(content string) {
	b.replace(content)
	b.emit(true)
}

// Input replaces the content as if the user typed it, leaving the cursor at sel.
func (b *Buffer) Input(content string, sel Selection) {
	b.content = content
	b.sel = b.clamp(sel)
	b.emit(false)
}

// Select moves the selection.
func (b *Buffer) Select(sel Selection) {
	b.sel = b.clamp(sel)
}

// Selection returns the current selection.
func (b *Buffer) Selection() Selection {
	return b.sel
}

// Bookmark implements Adapter.
func (b *Buffer) Bookmark() Bookmark {
	return b.sel
}

// MoveToBookmark implements Adapter. Bookmarks from other adapters are ignored.
func (b *Buffer) MoveToBookmark(bm Bookmark) {
	if sel, ok := bm.(Selection); ok {
		b.sel = b.clamp(sel)
	}
}

// SelectEnd implements Adapter.
func (b *Buffer) SelectEnd() {
	n := utf8.RuneCountInString(b.content)
	b.sel = Selection{Start: n, End: n}
}

// Seq implements Adapter.
func (b *Buffer) Seq() uint64 {
	return b.seq
}

// OnChange implements Adapter.
func (b *Buffer) OnChange(fn func(Change)) func() {
	b.nextSub++
	id := b.nextSub
	b.changeSubs = append(b.changeSubs, subscriber[Change]{id: id, fn: fn})

	return func() {
		b.changeSubs = remove(b.changeSubs, id)
	}
}

// OnInit implements Adapter.
func (b *Buffer) OnInit(fn func()) func() {
	b.nextSub++
	id := b.nextSub
	b.initSubs = append(b.initSubs, subscriber[struct{}]{id: id, fn: func(struct{}) { fn() }})

	return func() {
		b.initSubs = remove(b.initSubs, id)
	}
}

func (b *Buffer) replace(content string) {
	b.content = content
	b.sel = Selection{}
}

func (b *Buffer) emit(programmatic bool) {
	b.seq++
	ch := Change{Content: b.content, Seq: b.seq, Programmatic: programmatic}

	b.sched.Post(func() {
		for _, s := range append([]subscriber[Change](nil), b.changeSubs...) {
			s.fn(ch)
		}
	})
}

func (b *Buffer) clamp(sel Selection) Selection {
	n := utf8.RuneCountInString(b.content)
	sel.Start = min(max(sel.Start, 0), n)
	sel.End = min(max(sel.End, sel.Start), n)

	return sel
}

func remove[T any](subs []subscriber[T], id int) []subscriber[T] {
	out := subs[:0]

	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}

	return out
}

var _ Adapter = (*Buffer)(nil)
