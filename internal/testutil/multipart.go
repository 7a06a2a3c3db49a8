// multipart.go - Helpers for building upload requests
package testutil

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
)

// FilePart describes one file part of a multipart body
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// NewMultipartRequest builds a POST with the given file parts and plain form values
func NewMultipartRequest(target string, values map[string]string, parts ...FilePart) *http.Request {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for k, v := range values {
		writer.WriteField(k, v)
	}
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Field, p.FileName))
		if p.ContentType != "" {
			h.Set("Content-Type", p.ContentType)
		}
		part, _ := writer.CreatePart(h)
		part.Write(p.Data)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// NewUploadRequest builds a single-file upload under the "file" field
func NewUploadRequest(fileName, contentType string, data []byte) *http.Request {
	return NewMultipartRequest("/upload", nil, FilePart{
		Field:       "file",
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
	})
}
