package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopStopped is returned by Do once the loop has stopped running.
var ErrLoopStopped = errors.New("schedule: loop stopped")

// Loop is a Scheduler backed by a single goroutine. Tasks run in the order
// they were posted; timers post their task into the loop when they fire.
//
// Post, AfterFunc and Do are safe to call from any goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake   chan struct{}
	done   chan struct{}
	logger *slog.Logger
}

// NewLoop creates a loop. Call Run to start executing tasks.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
}

type loopTimer struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

func (t *loopTimer) Cancel() {
	t.cancelled.Store(true)
	t.timer.Stop()
}

// AfterFunc implements Scheduler. A cancelled handle never runs, even when
// its timer already fired and the task is waiting in the queue.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if !t.cancelled.Load() {
				fn()
			}
		})
	})

	return t
}

// Post implements Scheduler. Tasks posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()

		return
	}

	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes tasks until ctx is cancelled. It returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for fn := l.pop(); fn != nil; fn = l.pop() {
			l.run(fn)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}

	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return fn
}

// run executes one task, keeping the loop alive if it panics.
func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled task panicked", "panic", r)
		}
	}()

	fn()
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	close(l.done)
}

var _ Scheduler = (*Loop)(nil)
