// routes.go - Route registration helpers
package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rbxg/upload-mirror/internal/upload"
	"github.com/rbxg/upload-mirror/internal/web"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Receiver *upload.Receiver
	Files    StagedFiles
	Uploader Uploader
	Fetcher  Fetcher
	Stats    *Stats
	Form     web.FormPage
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Upload UploadHandler
	File   FileHandler
	form   web.FormPage
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	stats := deps.Stats
	if stats == nil {
		stats = NewStats()
	}
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Files, stats),
		Upload: NewUploadHandler(deps.Receiver, deps.Files, deps.Uploader, stats),
		File:   NewFileHandler(deps.Fetcher, stats),
		form:   deps.Form,
	}
}

// RegisterRoutes registers the form page, the upload and proxy routes, and the JSON API
func RegisterRoutes(e *echo.Echo, handlers *Handlers) error {
	if err := web.RegisterStaticRoutes(e, handlers.form); err != nil {
		return err
	}

	e.POST("/upload", handlers.Upload.HandleUpload)
	e.GET("/file/:filename", handlers.File.HandleGetFile)

	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.GET("/stats", handlers.Health.HandleStats)

	return nil
}

// MiddlewareOptions toggles optional middleware
type MiddlewareOptions struct {
	RequestLogging bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !opts.RequestLogging {
				return true
			}
			return strings.HasPrefix(c.Request().URL.Path, "/api/health")
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))
}
