package schedule

import "time"

// Debouncer keeps at most one pending task per key. Triggering a key again
// before its delay elapses cancels the pending task and starts a new quiet
// period, so the last call in a burst wins.
//
// A Debouncer must only be used from tasks running on its Scheduler.
type Debouncer[K comparable] struct {
	sched   Scheduler
	delay   time.Duration
	pending map[K]*debounced
}

type debounced struct {
	handle Handle
}

// NewDebouncer creates a debouncer that waits delay after the last trigger.
func NewDebouncer[K comparable](sched Scheduler, delay time.Duration) *Debouncer[K] {
	return &Debouncer[K]{
		sched:   sched,
		delay:   delay,
		pending: make(map[K]*debounced),
	}
}

// Trigger (re)arms the slot for key with fn.
func (d *Debouncer[K]) Trigger(key K, fn func()) {
	d.Cancel(key)

	entry := &debounced{}
	entry.handle = d.sched.AfterFunc(d.delay, func() {
		// A later Trigger replaces the entry; only the current one may clear it.
		if d.pending[key] == entry {
			delete(d.pending, key)
		}

		fn()
	})
	d.pending[key] = entry
}

// Cancel drops the pending task for key, if any.
func (d *Debouncer[K]) Cancel(key K) {
	entry, ok := d.pending[key]
	if !ok {
		return
	}

	delete(d.pending, key)
	entry.handle.Cancel()
}

// CancelAll drops every pending task.
func (d *Debouncer[K]) CancelAll() {
	for key := range d.pending {
		d.Cancel(key)
	}
}

// Pending reports whether a task is waiting for key.
func (d *Debouncer[K]) Pending(key K) bool {
	_, ok := d.pending[key]

	return ok
}

// Len returns the number of keys with a pending task.
func (d *Debouncer[K]) Len() int {
	return len(d.pending)
}
