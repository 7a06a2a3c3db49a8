// handlers_upload.go - Upload forwarding handler
package api

import (
	"errors"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/rbxg/upload-mirror/internal/upload"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	receiver *upload.Receiver
	files    StagedFiles
	uploader Uploader
	stats    *Stats
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(receiver *upload.Receiver, files StagedFiles, uploader Uploader, stats *Stats) UploadHandler {
	if stats == nil {
		stats = NewStats()
	}
	return &UploadHandlerImpl{
		receiver: receiver,
		files:    files,
		uploader: uploader,
		stats:    stats,
	}
}

// HandleUpload stages the posted file, forwards it upstream and redirects
// the browser to the mirrored URL. The staged copy is removed on every path.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	h.stats.uploadsReceived.Add(1)

	file, err := h.receiver.Receive(c.Response(), c.Request())
	if err != nil {
		var verr *upload.ValidationError
		if errors.As(err, &verr) {
			h.stats.uploadsRejected.Add(1)
			return NewValidationAlert(verr.Message, err)
		}
		h.stats.internalFailures.Add(1)
		return NewInternalAlert(err)
	}
	defer func() {
		if err := h.files.Release(file.ID); err != nil {
			c.Logger().Warnf("releasing staged file %s: %v", file.ID, err)
		}
	}()

	c.Logger().Debugf("staged %s as %s: %d bytes, declared %s, detected %s",
		file.Name, file.ID, file.Size, file.MIMEType, file.DetectedMIME)
	// the sniffed type is reported, not enforced
	if file.DetectedMIME != "" && !mimetype.EqualsAny(file.DetectedMIME, file.MIMEType) {
		h.stats.typeMismatches.Add(1)
		c.Logger().Infof("%s declared %s but looks like %s", file.Name, file.MIMEType, file.DetectedMIME)
	}

	body, err := h.files.Open(file.ID)
	if err != nil {
		h.stats.internalFailures.Add(1)
		return NewInternalAlert(err)
	}
	defer body.Close()

	mirrored, err := h.uploader.Upload(c.Request().Context(), file.Name, body)
	if err != nil {
		h.stats.upstreamFailures.Add(1)
		return NewUpstreamAlert(err)
	}

	h.stats.uploadsForwarded.Add(1)
	c.Logger().Infof("mirrored %s -> %s", file.Name, mirrored)

	return c.Redirect(http.StatusFound, mirrored)
}
