// mock_storage.go - Mock staging store implementation for testing
package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rbxg/upload-mirror/internal/models"
	"github.com/rbxg/upload-mirror/internal/storage"
)

var _ storage.Store = (*MockStorage)(nil)

// MockStorage implements storage.Store in memory
type MockStorage struct {
	files    map[string]*models.StagedFile
	fileData map[string][]byte
	released []string
	staged   int
	mu       sync.RWMutex

	// StageErr, when set, is returned by Stage after draining the reader
	StageErr error
}

// NewMockStorage creates a new empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.StagedFile),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Stage(name, mimeType string, r io.Reader, limit int64) (*models.StagedFile, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if m.StageErr != nil {
		return nil, m.StageErr
	}
	if int64(len(data)) > limit {
		return nil, storage.ErrTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.staged++
	id := fmt.Sprintf("staged-%d-%d", m.staged, time.Now().UnixNano())
	file := &models.StagedFile{
		ID:       id,
		Name:     name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		Path:     "/mock/path/" + id,
		StagedAt: time.Now(),
	}
	m.files[id] = file
	m.fileData[id] = data
	return file, nil
}

func (m *MockStorage) Get(id string) (*models.StagedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return file, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MockStorage) Release(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; ok {
		m.released = append(m.released, id)
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// StagedTotal is the number of successful Stage calls so far
func (m *MockStorage) StagedTotal() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.staged
}

// Released returns the IDs passed to Release that were still staged
func (m *MockStorage) Released() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.released...)
}
