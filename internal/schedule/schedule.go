// Package schedule provides cancellable deferred tasks.
//
// Everything that touches editor state runs on one logical thread. A
// Scheduler is that thread: tasks posted to it, and timers fired by it, run
// one at a time and never concurrently with each other. Loop is the real
// implementation, Manual is a fake clock for tests.
package schedule

import "time"

// Handle refers to a scheduled task.
type Handle interface {
	// Cancel prevents the task from running. Calling it more than once, or
	// after the task ran, has no effect.
	Cancel()
}

// Scheduler runs tasks serially.
type Scheduler interface {
	// AfterFunc queues fn to run once d has elapsed.
	AfterFunc(d time.Duration, fn func()) Handle

	// Post queues fn to run on the next tick, after the current task
	// and everything already queued ahead of it.
	Post(fn func())
}

// Cancel cancels h if it is non-nil.
func Cancel(h Handle) {
	if h != nil {
		h.Cancel()
	}
}
