package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchThrottle is how long file events for one note are coalesced.
const watchThrottle = 100 * time.Millisecond

// Change reports that the note with ID was written or removed on disk.
type Change struct {
	ID string
}

// Watch streams changes made to the store's files, by this process or any
// other, until ctx is cancelled. Bursts of events for one note are coalesced.
// The channel is closed once ctx is done or the watcher fails.
func (s *DiskStore) Watch(ctx context.Context, logger *slog.Logger) (<-chan Change, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("component", "notes.watch")

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return nil, fmt.Errorf("notes: ensure base path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("notes: create watcher: %w", err)
	}

	dirs, err := collectDirs(s.basePath)
	if err != nil {
		_ = watcher.Close()

		return nil, fmt.Errorf("notes: enumerate directories: %w", err)
	}

	watched := make(map[string]struct{}, len(dirs))

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()

			return nil, fmt.Errorf("notes: watch %s: %w", dir, err)
		}

		watched[dir] = struct{}{}
	}

	changes := make(chan Change, 64)
	throttle := newChangeThrottle(watchThrottle)

	send := func(c Change) {
		select {
		case changes <- c:
		default:
			logger.Warn("dropping change, consumer is behind", "note", c.ID)
		}
	}

	go func() {
		defer close(changes)
		defer throttle.stop()
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("close watcher", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Warn("watcher error", "error", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}

				if evt.Has(fsnotify.Create) {
					// New shard directories must be watched to see the files written into them.
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						dir := filepath.Clean(evt.Name)
						if _, found := watched[dir]; !found {
							if err := watcher.Add(dir); err != nil {
								logger.Warn("watch new directory", "dir", dir, "error", err)
							} else {
								watched[dir] = struct{}{}
							}
						}

						continue
					}
				}

				if id, ok := s.idForPath(evt.Name); ok {
					throttle.enqueue(id, send)
				}
			}
		}
	}()

	return changes, nil
}

// collectDirs walks base and returns every directory to watch.
func collectDirs(base string) ([]string, error) {
	dirs := []string{base}

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if d.IsDir() && path != base {
			dirs = append(dirs, path)
		}

		return nil
	})

	return dirs, err
}

// changeThrottle collects note IDs and flushes them once per delay window.
type changeThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	delay   time.Duration
	stopped bool
}

func newChangeThrottle(delay time.Duration) *changeThrottle {
	return &changeThrottle{
		delay:   delay,
		pending: make(map[string]struct{}),
	}
}

func (t *changeThrottle) enqueue(id string, send func(Change)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.pending[id] = struct{}{}

	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() {
			t.flush(send)
		})
	}
}

// flush sends while holding the lock so stop can guarantee no send happens
// after it returns. send must not block.
func (t *changeThrottle) flush(send func(Change)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timer = nil
	if t.stopped {
		return
	}

	for id := range t.pending {
		send(Change{ID: id})
	}

	t.pending = make(map[string]struct{})
}

func (t *changeThrottle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
