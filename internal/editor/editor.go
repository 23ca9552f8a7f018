// Package editor defines the capability the undo and autosave machinery
// needs from a rich-text editing surface, plus Buffer, a headless
// implementation used by the server and by tests.
package editor

// Bookmark is an opaque, adapter-specific token for a cursor or selection.
type Bookmark any

// Change is delivered to OnChange subscribers after the content changed.
type Change struct {
	Content string
	// Seq increases with every change the adapter emits. Subscribers use it
	// to tell notifications emitted before a point in time from later ones.
	Seq uint64
	// Programmatic is true when the change came from SetContent rather than
	// from user input.
	Programmatic bool
}

// Adapter is the editor capability consumed by the editing session.
type Adapter interface {
	// Ready reports whether the editor has been initialized.
	Ready() bool
	Content() string
	SetContent(content string)
	Bookmark() Bookmark
	MoveToBookmark(b Bookmark)
	// SelectEnd selects everything and collapses the selection to its end.
	SelectEnd()
	// Seq returns the sequence number of the most recently emitted change.
	Seq() uint64
	OnChange(fn func(Change)) (unsubscribe func())
	OnInit(fn func()) (unsubscribe func())
}
