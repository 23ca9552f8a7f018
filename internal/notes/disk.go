package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

const noteExt = ".json"

// DiskStore keeps one JSON file per note, sharded into directories by the
// first two characters of the note ID.
type DiskStore struct {
	mu       sync.Mutex
	d        *diskv.Diskv
	basePath string
}

// NewDiskStore opens (or lazily creates) a store rooted at basePath.
func NewDiskStore(basePath string) *DiskStore {
	return &DiskStore{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPath,
			InverseTransform:  pathToKey,
			// No cache: other processes edit the files and Watch reports
			// those edits, so every read must hit the disk.
			CacheSizeMax: 0,
		}),
		basePath: basePath,
	}
}

// BasePath returns the directory the store writes to.
func (s *DiskStore) BasePath() string {
	return s.basePath
}

// Create stores a new note.
func (s *DiskStore) Create(_ context.Context, n Note) error {
	if !validKey(n.ID) {
		return fmt.Errorf("notes: invalid id %q", n.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.d.Has(n.ID) {
		return ErrNoteExists
	}

	return s.write(n)
}

// Get returns a note by ID.
func (s *DiskStore) Get(_ context.Context, id string) (Note, error) {
	if !validKey(id) {
		return Note{}, ErrNoteNotFound
	}

	return s.read(id)
}

// Update replaces a stored note.
func (s *DiskStore) Update(_ context.Context, n Note) error {
	if !validKey(n.ID) {
		return ErrNoteNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.d.Has(n.ID) {
		return ErrNoteNotFound
	}

	return s.write(n)
}

// Delete removes a note.
func (s *DiskStore) Delete(_ context.Context, id string) error {
	if !validKey(id) {
		return ErrNoteNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.d.Has(id) {
		return ErrNoteNotFound
	}

	if err := s.d.Erase(id); err != nil {
		return fmt.Errorf("notes: erase %s: %w", id, err)
	}

	return nil
}

// List returns the notes owned by userID, most recently updated first.
// Unreadable files are skipped.
func (s *DiskStore) List(ctx context.Context, userID string) ([]Note, error) {
	result := make([]Note, 0)

	for key := range s.d.Keys(ctx.Done()) {
		n, err := s.read(key)
		if err != nil {
			continue
		}

		if userID == "" || n.UserID == userID {
			result = append(result, n)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortByUpdated(result)

	return result, nil
}

func (s *DiskStore) read(id string) (Note, error) {
	rc, err := s.d.ReadStream(id, true)
	if errors.Is(err, fs.ErrNotExist) {
		return Note{}, ErrNoteNotFound
	}

	if err != nil {
		return Note{}, fmt.Errorf("notes: read %s: %w", id, err)
	}

	val, err := io.ReadAll(rc)
	_ = rc.Close()

	if err != nil {
		return Note{}, fmt.Errorf("notes: read %s: %w", id, err)
	}

	var n Note
	if err := json.Unmarshal(val, &n); err != nil {
		return Note{}, fmt.Errorf("notes: decode %s: %w", id, err)
	}

	n.ID = id

	return n, nil
}

func (s *DiskStore) write(n Note) error {
	val, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notes: encode %s: %w", n.ID, err)
	}

	if err := s.d.Write(n.ID, val); err != nil {
		return fmt.Errorf("notes: write %s: %w", n.ID, err)
	}

	return nil
}

// idForPath maps a file below the base path back to its note ID.
func (s *DiskStore) idForPath(path string) (string, bool) {
	rel, err := filepath.Rel(s.basePath, path)
	if err != nil || rel == "." {
		return "", false
	}

	name := filepath.Base(rel)
	if !strings.HasSuffix(name, noteExt) {
		return "", false
	}

	id := strings.TrimSuffix(name, noteExt)

	return id, validKey(id)
}

func keyToPath(key string) *diskv.PathKey {
	return &diskv.PathKey{
		Path:     []string{shard(key)},
		FileName: key + noteExt,
	}
}

func pathToKey(pk *diskv.PathKey) string {
	return strings.TrimSuffix(pk.FileName, noteExt)
}

func shard(key string) string {
	if len(key) < 2 {
		return "_"
	}

	return key[:2]
}

// validKey rejects IDs that would escape the store directory.
func validKey(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}

	return !strings.ContainsAny(id, `/\`) && !strings.HasPrefix(id, ".")
}

// Ensure DiskStore implements Store.
var _ Store = (*DiskStore)(nil)
