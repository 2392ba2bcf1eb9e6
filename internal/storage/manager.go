// Package storage holds the destinations exported reports are saved to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrInvalidName is returned for names that would escape the store.
var ErrInvalidName = errors.New("invalid report name")

// Entry describes one saved report.
type Entry struct {
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	SavedAt     time.Time `json:"savedAt"`
	Location    string    `json:"location"`
}

// Store is a report destination. Saving under an existing name replaces it.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
	Get(name string) (*Entry, error)
	List(limit int) ([]*Entry, error)
	Delete(ctx context.Context, name string) error
}

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*BucketStore)(nil)
)

// LocalStore implements Store using a local directory.
type LocalStore struct {
	mu      sync.RWMutex
	dir     string
	entries map[string]*Entry
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	return &LocalStore{
		dir:     dir,
		entries: make(map[string]*Entry),
	}, nil
}

// cleanName rejects anything that is not a plain file name.
func cleanName(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// Save writes data to the directory through a temporary file so readers
// never observe a partial report.
func (s *LocalStore) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("closing file: %w", err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("moving file into place: %w", err)
	}

	entry := &Entry{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		SavedAt:     time.Now(),
		Location:    path,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = entry

	return path, nil
}

// Get retrieves report metadata by name.
func (s *LocalStore) Get(name string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("report not found: %s", name)
	}

	return entry, nil
}

// List returns the most recent reports.
func (s *LocalStore) List(limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortEntries(s.entries, limit), nil
}

// Delete removes a report from the directory.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("report not found: %s", name)
	}

	if err := os.Remove(entry.Location); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.entries, name)
	return nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

func sortEntries(entries map[string]*Entry, limit int) []*Entry {
	list := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}

	// Most recent first
	sort.Slice(list, func(i, j int) bool {
		return list[i].SavedAt.After(list[j].SavedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
