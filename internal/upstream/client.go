// Package upstream talks to the third-party hosting service: it forwards
// uploads and fetches previously uploaded files.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an upstream body ends up in errors and logs.
const maxErrorBody = 4096

// Media is one element of the upload response, e.g. {"src": "/file/abc.jpg"}.
type Media struct {
	Src string `json:"src"`
}

// File is a proxied upstream file. Callers must close Body.
type File struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Options configures a Client.
type Options struct {
	BaseURL        string // e.g. https://telegra.ph
	UploadPath     string // e.g. /upload
	FilePathPrefix string // e.g. /file/
	FieldName      string // multipart field carrying the file
	Timeout        time.Duration // bounds an upload round trip; fetches stream unbounded
	HTTPClient     *http.Client
}

// Client forwards uploads to, and streams files from, the hosting service.
type Client struct {
	uploadURL     string
	fileURL       string
	fieldName     string
	uploadTimeout time.Duration
	httpClient    *http.Client
}

// NewClient creates a client. Zero-valued options fall back to telegra.ph defaults.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://telegra.ph"
	}
	if opts.UploadPath == "" {
		opts.UploadPath = "/upload"
	}
	if opts.FilePathPrefix == "" {
		opts.FilePathPrefix = "/file/"
	}
	if opts.FieldName == "" {
		opts.FieldName = "file"
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		uploadURL:     base + opts.UploadPath,
		fileURL:       base + opts.FilePathPrefix,
		fieldName:     opts.FieldName,
		uploadTimeout: opts.Timeout,
		httpClient:    hc,
	}
}

// UploadURL returns the endpoint uploads are POSTed to.
func (c *Client) UploadURL() string {
	return c.uploadURL
}

// FileURL returns the upstream URL for a file name.
func (c *Client) FileURL(filename string) string {
	return c.fileURL + url.PathEscape(filename)
}

// Upload streams body as a single multipart file part and returns the
// mirrored URL from the response.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	if c.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()
	}

	pr, pw := io.Pipe()
	// closing the read side unblocks the writer if the transport stops early
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(c.fieldName, filename)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("posting upload: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{
			Method: http.MethodPost,
			URL:    c.uploadURL,
			Code:   resp.StatusCode,
			Body:   truncate(data),
		}
	}

	return decodeUploadResponse(data)
}

// decodeUploadResponse enforces the response contract: a non-empty JSON
// array whose first element carries a non-empty string "src". Later
// elements are not inspected.
func decodeUploadResponse(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		fe := &FormatError{Reason: "expected a JSON array", Body: truncate(data)}
		var obj struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(trimmed, &obj) == nil {
			fe.Upstream = obj.Error
		}
		return "", fe
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return "", &FormatError{Reason: "invalid array: " + err.Error(), Body: truncate(data)}
	}
	if len(items) == 0 {
		return "", &FormatError{Reason: "empty array", Body: truncate(data)}
	}

	var first Media
	if err := json.Unmarshal(items[0], &first); err != nil {
		return "", &FormatError{Reason: "invalid first element: " + err.Error(), Body: truncate(data)}
	}
	if first.Src == "" {
		return "", &FormatError{Reason: `first element has no "src"`, Body: truncate(data)}
	}

	return first.Src, nil
}

// Fetch starts a GET for an uploaded file. The body is not buffered.
func (c *Client) Fetch(ctx context.Context, filename string) (*File, error) {
	target := c.FileURL(filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching file: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{
			Method: http.MethodGet,
			URL:    target,
			Code:   resp.StatusCode,
			Body:   string(data),
		}
	}

	return &File{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

func truncate(data []byte) string {
	if len(data) > maxErrorBody {
		return string(data[:maxErrorBody]) + "..."
	}
	return string(data)
}
