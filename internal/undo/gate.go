package undo

import (
	"time"

	"github.com/umeshbist27/notetaking/internal/schedule"
)

// State is the suppression state of a Gate.
type State int

const (
	// Idle means edits are recorded normally.
	Idle State = iota
	// ApplyingUndo means an undo is being written into the editor.
	ApplyingUndo
	// ApplyingRedo means a redo is being written into the editor.
	ApplyingRedo
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ApplyingUndo:
		return "applying-undo"
	case ApplyingRedo:
		return "applying-redo"
	default:
		return "unknown"
	}
}

// Gate stops the editor's own change notifications, caused by applying an
// undo or redo, from being captured as new edits. It is held for one
// document at a time and released a grace delay after the mutation, since
// the editor reports the change after the mutating call has returned.
//
// The gate assumes a single editor surface drives its Registry.
type Gate struct {
	sched   schedule.Scheduler
	grace   time.Duration
	state   State
	doc     string
	release schedule.Handle
}

func newGate(sched schedule.Scheduler, grace time.Duration) *Gate {
	return &Gate{sched: sched, grace: grace}
}

// State returns the current state and the document it applies to.
func (g *Gate) State() (State, string) {
	return g.state, g.doc
}

// Suppresses reports whether captures for doc must be dropped.
func (g *Gate) Suppresses(doc string) bool {
	return g.state != Idle && g.doc == doc
}

// enter holds the gate for doc. A release still pending from an earlier
// hold is cancelled; the caller schedules a fresh one with releaseLater.
func (g *Gate) enter(doc string, s State) {
	schedule.Cancel(g.release)
	g.release = nil
	g.state = s
	g.doc = doc
}

func (g *Gate) releaseLater() {
	var h schedule.Handle

	h = g.sched.AfterFunc(g.grace, func() {
		if g.release == h {
			g.reset()
		}
	})
	g.release = h
}

// reset returns the gate to Idle immediately.
func (g *Gate) reset() {
	schedule.Cancel(g.release)
	g.release = nil
	g.state = Idle
	g.doc = ""
}
