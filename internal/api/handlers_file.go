// handlers_file.go - Upstream file proxy
package api

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	fetcher Fetcher
	stats   *Stats
}

// NewFileHandler creates a new file proxy handler
func NewFileHandler(fetcher Fetcher, stats *Stats) FileHandler {
	if stats == nil {
		stats = NewStats()
	}
	return &FileHandlerImpl{
		fetcher: fetcher,
		stats:   stats,
	}
}

// HandleGetFile streams /file/:filename from the hosting service,
// keeping its Content-Type.
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	filename := c.Param("filename")
	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}

	f, err := h.fetcher.Fetch(c.Request().Context(), filename)
	if err != nil {
		h.stats.proxyFailures.Add(1)
		return NewProxyError(err)
	}
	defer f.Body.Close()

	res := c.Response()
	if f.ContentType != "" {
		res.Header().Set(echo.HeaderContentType, f.ContentType)
	}
	if f.ContentLength >= 0 {
		res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(f.ContentLength, 10))
	}
	res.WriteHeader(http.StatusOK)

	if _, err := io.Copy(res, f.Body); err != nil {
		// headers are out; all we can do is log
		h.stats.proxyFailures.Add(1)
		c.Logger().Warnf("streaming %s: %v", filename, err)
		return nil
	}

	h.stats.filesProxied.Add(1)
	return nil
}
