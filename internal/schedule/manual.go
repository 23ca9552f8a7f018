package schedule

import (
	"sync"
	"sync/atomic"
	"time"
)

// Manual is a Scheduler driven by an explicit clock. Nothing runs until the
// caller advances time, which makes debounce windows and grace delays
// deterministic in tests.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	due       time.Time
	seq       uint64
	fn        func()
	cancelled atomic.Bool
}

func (t *manualTask) Cancel() {
	t.cancelled.Store(true)
}

// NewManual returns a Manual clock starting at the Unix epoch.
func NewManual() *Manual {
	return &Manual{now: time.Unix(0, 0)}
}

// Now returns the current fake time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{due: m.now.Add(d), seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)

	return t
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) {
	m.AfterFunc(0, fn)
}

// Advance moves the clock forward by d, running every task that falls due
// in order of due time, then schedule order. Tasks scheduled while advancing
// run too if they fall due before the new time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.next(target)
		if t == nil {
			break
		}

		t.fn()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// Flush runs everything that is due now, including tasks they post.
func (m *Manual) Flush() {
	m.Advance(0)
}

// Pending returns the number of tasks that have not run or been cancelled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, t := range m.tasks {
		if !t.cancelled.Load() {
			n++
		}
	}

	return n
}

// next removes and returns the earliest live task due at or before target.
func (m *Manual) next(target time.Time) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.tasks[:0]
	best := -1

	for _, t := range m.tasks {
		if t.cancelled.Load() {
			continue
		}

		live = append(live, t)

		if t.due.After(target) {
			continue
		}

		if best < 0 || earlier(t, live[best]) {
			best = len(live) - 1
		}
	}

	m.tasks = live

	if best < 0 {
		return nil
	}

	t := m.tasks[best]
	m.tasks = append(m.tasks[:best], m.tasks[best+1:]...)

	if t.due.After(m.now) {
		m.now = t.due
	}

	return t
}

func earlier(a, b *manualTask) bool {
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}

	return a.due.Before(b.due)
}

var _ Scheduler = (*Manual)(nil)
