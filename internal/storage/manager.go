package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rbxg/upload-mirror/internal/models"
)

// ErrTooLarge is returned by Stage when the reader yields more than the limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Store defines the interface for transient file staging.
type Store interface {
	Stage(name, mimeType string, r io.Reader, limit int64) (*models.StagedFile, error)
	Get(id string) (*models.StagedFile, error)
	Open(id string) (io.ReadCloser, error)
	Release(id string) error
	Count() int
}

// LocalStore implements Store using a directory on the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	files     map[string]*models.StagedFile
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		files:     make(map[string]*models.StagedFile),
	}, nil
}

// Stage copies at most limit bytes from r into a new file.
// The partial file is removed when the copy fails or the limit is exceeded.
func (s *LocalStore) Stage(name, mimeType string, r io.Reader, limit int64) (*models.StagedFile, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	// One extra byte tells us the source was larger than allowed
	size, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	if err == nil && size > limit {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.StagedFile{
		ID:       id,
		Name:     name,
		MIMEType: mimeType,
		Size:     size,
		Path:     path,
		StagedAt: time.Now(),
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		info.DetectedMIME = mt.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info

	return info, nil
}

// Get retrieves staged file metadata by ID.
func (s *LocalStore) Get(id string) (*models.StagedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}

	return info, nil
}

// Open opens a staged file for reading.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	info, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(info.Path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Release removes a staged file. Releasing an unknown ID is a no-op.
func (s *LocalStore) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil
	}
	delete(s.files, id)

	if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	return nil
}

// Count returns the number of files currently staged.
func (s *LocalStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Sweep deletes files in the staging directory older than maxAge that are not
// tracked by this store, e.g. leftovers from a previous process.
func (s *LocalStore) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return 0, fmt.Errorf("reading upload directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		s.mu.RLock()
		_, tracked := s.files[entry.Name()]
		s.mu.RUnlock()
		if tracked {
			continue
		}

		fi, err := entry.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.uploadDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("deleting stale file: %w", err)
		}
		removed++
	}

	return removed, nil
}
