package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a guard object does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Sink is where guard objects live: a flat namespace of named byte
// blobs. Names use forward slashes regardless of platform.
type Sink interface {
	// Put writes an object atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Get returns an object's content, ErrNotFound when absent.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes an object. Deleting an absent object is not an
	// error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all objects under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// DirSink keeps guard objects as files under a root directory.
type DirSink struct {
	root string
}

// NewDirSink returns a sink rooted at dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{root: dir}
}

func (s *DirSink) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Put writes to a temp file in the target directory and renames it into
// place, so readers never see a half-written object.
func (s *DirSink) Put(_ context.Context, name string, data []byte) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *DirSink) Get(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(s.path(name))
}

func (s *DirSink) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *DirSink) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// MemSink is an in-memory Sink for tests. Safe for concurrent use.
type MemSink struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemSink returns an empty in-memory sink.
func NewMemSink() *MemSink {
	return &MemSink{objects: make(map[string][]byte)}
}

func (s *MemSink) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	s.objects[name] = copied
	return nil
}

func (s *MemSink) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

func (s *MemSink) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, name)
	return nil
}

func (s *MemSink) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

var (
	_ Sink = (*DirSink)(nil)
	_ Sink = (*MemSink)(nil)
)
