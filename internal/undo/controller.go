package undo

import "github.com/umeshbist27/notetaking/internal/editor"

// Editor is the part of the editor capability the controller drives.
type Editor interface {
	SetContent(content string)
	Bookmark() editor.Bookmark
	MoveToBookmark(b editor.Bookmark)
	SelectEnd()
}

// Controller applies undo and redo transitions to a Registry and writes the
// resulting snapshot into the editor.
type Controller struct {
	reg *Registry
}

// NewController creates a controller over reg.
func NewController(reg *Registry) *Controller {
	return &Controller{reg: reg}
}

// CanUndo reports whether id has a snapshot before the current one.
func (c *Controller) CanUndo(id string) bool {
	st, ok := c.reg.stacks[id]

	return ok && len(st.undo) > 1
}

// CanRedo reports whether id has an undone snapshot to reapply.
func (c *Controller) CanRedo(id string) bool {
	st, ok := c.reg.stacks[id]

	return ok && len(st.redo) > 0
}

// Undo steps id back one snapshot and sets the editor to it. The selection
// held before the step is restored on the next tick. It returns false, and
// does nothing, when id has no history or only its seed snapshot.
func (c *Controller) Undo(id string, ed Editor) bool {
	st, ok := c.reg.stacks[id]
	if !ok || len(st.undo) <= 1 {
		c.reg.logger.Debug("nothing to undo", "doc", id, "known", ok)

		return false
	}

	c.reg.gate.enter(id, ApplyingUndo)
	// The stack top must stay equal to what the editor shows.
	c.reg.capture.Cancel(id)

	bookmark := ed.Bookmark()

	current := st.top()
	st.undo = st.undo[:len(st.undo)-1]
	st.redo = append(st.redo, current)

	previous := st.top()
	ed.SetContent(previous)
	st.lastSaved = previous

	c.reg.sched.Post(func() {
		ed.MoveToBookmark(bookmark)
	})
	c.reg.gate.releaseLater()

	return true
}

// Redo reapplies the most recently undone snapshot of id and puts the cursor
// at the end of the document on the next tick. It returns false, and does
// nothing, when there is nothing to redo.
func (c *Controller) Redo(id string, ed Editor) bool {
	st, ok := c.reg.stacks[id]
	if !ok || len(st.redo) == 0 {
		c.reg.logger.Debug("nothing to redo", "doc", id, "known", ok)

		return false
	}

	c.reg.gate.enter(id, ApplyingRedo)
	c.reg.capture.Cancel(id)

	next := st.redo[len(st.redo)-1]
	st.redo = st.redo[:len(st.redo)-1]
	st.undo = append(st.undo, next)

	ed.SetContent(next)
	st.lastSaved = next

	c.reg.sched.Post(ed.SelectEnd)
	c.reg.gate.releaseLater()

	return true
}
