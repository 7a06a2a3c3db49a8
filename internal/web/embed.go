// Package web provides the embedded upload form and the alert page shown
// when an upload fails.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed dist/index.html templates/alert.html
var staticFiles embed.FS

var (
	indexTemplate = template.Must(template.ParseFS(staticFiles, "dist/index.html"))
	alertTemplate = template.Must(template.ParseFS(staticFiles, "templates/alert.html"))
)

// FormPage holds the values the upload form is rendered with.
type FormPage struct {
	FieldName   string
	MaxFileSize int64
	MaxLabel    string // e.g. "5MB"
	SizeMessage string // shown by the client-side size check
}

type alertPage struct {
	Message string
	Back    string
}

// RenderIndex renders the upload form.
func RenderIndex(page FormPage) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("rendering index: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderAlert writes a page that alerts message and navigates to back.
// Both values are escaped for the script context.
func RenderAlert(w io.Writer, message, back string) error {
	return alertTemplate.Execute(w, alertPage{Message: message, Back: back})
}

// RegisterStaticRoutes registers GET / serving the upload form.
// The page is rendered once at startup.
func RegisterStaticRoutes(e *echo.Echo, page FormPage) error {
	content, err := RenderIndex(page)
	if err != nil {
		return err
	}

	e.GET("/", func(c echo.Context) error {
		return c.HTMLBlob(http.StatusOK, content)
	})

	return nil
}
