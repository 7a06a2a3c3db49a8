// errors.go - Error responses for the upload surface and the JSON API
package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rbxg/upload-mirror/internal/web"
)

// Messages shown to end users. Upstream detail is logged, never sent.
const (
	upstreamFailureMessage = "Max file size 5MB. Images and videos only."
	proxyFailureMessage    = "Error fetching file"
)

// ResponseFormat selects how an APIError is written
type ResponseFormat int

const (
	FormatJSON  ResponseFormat = iota
	FormatAlert                // HTML page that alerts and navigates back to the form
	FormatText
)

// APIError represents an error response
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Format  ResponseFormat `json:"-"`
	Err     error          `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Error constructors for consistent error handling

// NewValidationAlert creates a 400 alert page with a user-fixable message
func NewValidationAlert(message string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Format:  FormatAlert,
		Err:     cause,
	}
}

// NewUpstreamAlert creates a 500 alert page for a failed forward
func NewUpstreamAlert(cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "UPSTREAM_ERROR",
		Message: upstreamFailureMessage,
		Format:  FormatAlert,
		Err:     cause,
	}
}

// NewInternalAlert creates a 500 alert page for local failures such as staging I/O
func NewInternalAlert(cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: upstreamFailureMessage,
		Format:  FormatAlert,
		Err:     cause,
	}
}

// NewProxyError creates the 500 plain-text response of the file proxy
func NewProxyError(cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "PROXY_ERROR",
		Message: proxyFailureMessage,
		Format:  FormatText,
		Err:     cause,
	}
}

// NewInternalError creates a 500 JSON error
func NewInternalError(message string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
		Err:     cause,
	}
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
			Err:     e.Internal,
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Err:     err,
		}
	}

	req := c.Request()
	switch {
	case apiErr.Status >= 500:
		c.Logger().Errorf("%s %s: %v", req.Method, req.URL.Path, apiErr)
	case apiErr.Err != nil:
		c.Logger().Infof("%s %s: %v", req.Method, req.URL.Path, apiErr)
	}

	if req.Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}

	switch apiErr.Format {
	case FormatAlert:
		var buf bytes.Buffer
		if err := web.RenderAlert(&buf, apiErr.Message, "/"); err != nil {
			c.Logger().Errorf("rendering alert page: %v", err)
			c.String(apiErr.Status, apiErr.Message)
			return
		}
		c.HTMLBlob(apiErr.Status, buf.Bytes())
	case FormatText:
		c.String(apiErr.Status, apiErr.Message)
	default:
		c.JSON(apiErr.Status, apiErr)
	}
}
