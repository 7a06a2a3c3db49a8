// interfaces.go - Handler and dependency interfaces
package api

import (
	"context"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/rbxg/upload-mirror/internal/upstream"
)

// UploadHandler receives form uploads and redirects to the mirrored URL
type UploadHandler interface {
	HandleUpload(c echo.Context) error
}

// FileHandler proxies reads of previously uploaded files
type FileHandler interface {
	HandleGetFile(c echo.Context) error
}

// HealthHandler handles health check and stats operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandleStats(c echo.Context) error
}

// Uploader forwards a file to the hosting service and returns its mirrored URL
type Uploader interface {
	Upload(ctx context.Context, name string, body io.Reader) (string, error)
}

// Fetcher opens a file stored by the hosting service
type Fetcher interface {
	Fetch(ctx context.Context, filename string) (*upstream.File, error)
}

// StagedFiles gives handlers access to files the receiver staged
type StagedFiles interface {
	Open(id string) (io.ReadCloser, error)
	Release(id string) error
	Count() int
}
