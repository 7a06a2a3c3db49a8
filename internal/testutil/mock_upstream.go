// mock_upstream.go - Fakes for the hosting service
package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rbxg/upload-mirror/internal/upstream"
)

// UploadCall records one forwarded upload
type UploadCall struct {
	Name string
	Data []byte
}

// MockUploader records uploads and answers with a fixed URL or error
type MockUploader struct {
	URL string
	Err error

	mu    sync.Mutex
	calls []UploadCall
}

func (m *MockUploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.calls = append(m.calls, UploadCall{Name: name, Data: data})
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.URL, nil
}

// Calls returns the uploads seen so far
func (m *MockUploader) Calls() []UploadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UploadCall(nil), m.calls...)
}

// MockFetcher serves files from memory
type MockFetcher struct {
	Files map[string]MockFile
	Err   error
}

// MockFile is one file served by MockFetcher
type MockFile struct {
	ContentType string
	Data        []byte
}

func (m *MockFetcher) Fetch(ctx context.Context, filename string) (*upstream.File, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	f, ok := m.Files[filename]
	if !ok {
		return nil, errors.New("file not found")
	}
	return &upstream.File{
		Body:          io.NopCloser(bytes.NewReader(f.Data)),
		ContentType:   f.ContentType,
		ContentLength: int64(len(f.Data)),
	}, nil
}
