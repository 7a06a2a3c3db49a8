// handlers_upload_test.go - Tests for upload forwarding
package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rbxg/upload-mirror/internal/storage"
	"github.com/rbxg/upload-mirror/internal/testutil"
	"github.com/rbxg/upload-mirror/internal/upload"
	"github.com/rbxg/upload-mirror/internal/upstream"
	"github.com/rbxg/upload-mirror/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxTestSize = 5 * 1024 * 1024

var testForm = web.FormPage{
	FieldName:   "file",
	MaxFileSize: maxTestSize,
	MaxLabel:    "5MB",
	SizeMessage: "File size exceeds 5MB limit.",
}

// newTestServer wires the full router around the given dependencies
func newTestServer(t *testing.T, files interface {
	upload.Stager
	StagedFiles
}, uploader Uploader, fetcher Fetcher) *echo.Echo {
	t.Helper()

	policy, err := upload.NewPolicy(maxTestSize, "jpeg|jpg|png|gif|mp4|webm|ogg")
	require.NoError(t, err)

	e := echo.New()
	SetupMiddleware(e, MiddlewareOptions{})
	handlers := NewHandlers(&Dependencies{
		Receiver: upload.NewReceiver(policy, files, "file"),
		Files:    files,
		Uploader: uploader,
		Fetcher:  fetcher,
		Form:     testForm,
		Version:  "test",
	})
	require.NoError(t, RegisterRoutes(e, handlers))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUploadHandler_HandleUpload(t *testing.T) {
	tests := []struct {
		name         string
		fileName     string
		contentType  string
		size         int
		uploaderErr  error
		wantStatus   int
		wantForward  bool
		wantLocation string
		wantAlert    string
	}{
		{name: "jpeg", fileName: "photo.jpeg", contentType: "image/jpeg", size: 1024, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{name: "jpg", fileName: "photo.jpg", contentType: "image/jpeg", size: 1024, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{name: "png", fileName: "shot.png", contentType: "image/png", size: 10, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{name: "gif", fileName: "anim.gif", contentType: "image/gif", size: 10, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{name: "mp4", fileName: "clip.mp4", contentType: "video/mp4", size: 10, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{name: "webm", fileName: "clip.webm", contentType: "video/webm", size: 10, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{name: "ogg", fileName: "clip.ogg", contentType: "video/ogg", size: 10, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{name: "exactly 5 MiB", fileName: "max.png", contentType: "image/png", size: maxTestSize, wantStatus: http.StatusFound, wantForward: true, wantLocation: "/file/abc123.jpg"},
		{
			name: "over 5 MiB", fileName: "big.png", contentType: "image/png", size: maxTestSize + 1,
			wantStatus: http.StatusBadRequest, wantAlert: "File size exceeds 5MB limit.",
		},
		{
			name: "text file", fileName: "notes.txt", contentType: "text/plain", size: 10,
			wantStatus: http.StatusBadRequest, wantAlert: "Only images and videos are allowed!",
		},
		{
			name: "image extension with text mime", fileName: "fake.png", contentType: "text/plain", size: 10,
			wantStatus: http.StatusBadRequest, wantAlert: "Only images and videos are allowed!",
		},
		{
			name: "upstream rejects", fileName: "shot.png", contentType: "image/png", size: 10,
			uploaderErr: errors.New("dial tcp: connection refused"),
			wantStatus:  http.StatusInternalServerError, wantForward: true, wantAlert: upstreamFailureMessage,
		},
		{
			name: "upstream format", fileName: "shot.png", contentType: "image/png", size: 10,
			uploaderErr: &upstream.FormatError{Reason: "empty array"},
			wantStatus:  http.StatusInternalServerError, wantForward: true, wantAlert: upstreamFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			uploader := &testutil.MockUploader{URL: "/file/abc123.jpg", Err: tt.uploaderErr}
			e := newTestServer(t, store, uploader, &testutil.MockFetcher{})

			data := bytes.Repeat([]byte{0xAB}, tt.size)
			rec := serve(e, testutil.NewUploadRequest(tt.fileName, tt.contentType, data))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get(echo.HeaderLocation))
			}
			if tt.wantAlert != "" {
				assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/html"))
				assert.Contains(t, rec.Body.String(), `alert("`+tt.wantAlert+`")`)
				assert.Contains(t, rec.Body.String(), `window.location.href = "/"`)
			}

			calls := uploader.Calls()
			if tt.wantForward {
				require.Len(t, calls, 1)
				assert.Equal(t, tt.fileName, calls[0].Name)
				assert.Equal(t, data, calls[0].Data)
			} else {
				assert.Empty(t, calls, "forwarder must not be invoked")
			}

			assert.Zero(t, store.Count(), "staged file must be released")
		})
	}
}

func TestUploadHandler_MissingFile(t *testing.T) {
	uploader := &testutil.MockUploader{URL: "/file/x.png"}
	e := newTestServer(t, testutil.NewMockStorage(), uploader, &testutil.MockFetcher{})

	t.Run("multipart without file field", func(t *testing.T) {
		req := testutil.NewMultipartRequest("/upload", map[string]string{"note": "hi"})
		rec := serve(e, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `alert("No file uploaded.")`)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		rec := serve(e, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Empty(t, uploader.Calls())
}

func TestUploadHandler_StagingFailure(t *testing.T) {
	store := testutil.NewMockStorage()
	store.StageErr = errors.New("no space left on device")
	uploader := &testutil.MockUploader{URL: "/file/x.png"}
	e := newTestServer(t, store, uploader, &testutil.MockFetcher{})

	rec := serve(e, testutil.NewUploadRequest("a.png", "image/png", []byte("png")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "no space left")
	assert.Empty(t, uploader.Calls())
}

func TestUploadHandler_DirectCall(t *testing.T) {
	policy, err := upload.NewPolicy(16, "png")
	require.NoError(t, err)
	store := testutil.NewMockStorage()
	handler := NewUploadHandler(upload.NewReceiver(policy, store, "file"), store, &testutil.MockUploader{}, nil)

	e := echo.New()
	req := testutil.NewUploadRequest("a.gif", "image/gif", []byte("gif"))
	c := e.NewContext(req, httptest.NewRecorder())

	err = handler.HandleUpload(c)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %T", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, FormatAlert, apiErr.Format)
}

// End to end against a fake hosting service, with real staging on disk.
func TestUploadFlow_AgainstFakeUpstream(t *testing.T) {
	var uploads atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			uploads.Add(1)
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(f)
			// files named "respond:<body>" choose the response verbatim
			if reply, ok := strings.CutPrefix(string(data), "respond:"); ok {
				io.WriteString(w, reply)
				return
			}
			io.WriteString(w, `[{"src":"/file/abc123.png"}]`)
		case r.Method == http.MethodGet && r.URL.Path == "/file/abc123.png":
			w.Header().Set("Content-Type", "image/png")
			io.WriteString(w, "mirrored png")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	client := upstream.NewClient(upstream.Options{BaseURL: srv.URL})
	e := newTestServer(t, store, client, client)

	assertNoStagedFiles := func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}

	t.Run("redirects to mirrored url", func(t *testing.T) {
		rec := serve(e, testutil.NewUploadRequest("cat.png", "image/png", []byte("cat")))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/file/abc123.png", rec.Header().Get(echo.HeaderLocation))
		assertNoStagedFiles(t)
	})

	t.Run("redirect target is served by the proxy", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/file/abc123.png", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, "mirrored png", rec.Body.String())
	})

	for _, bad := range []string{`{"error":"File type invalid"}`, `[]`, `"ok"`} {
		t.Run("format error "+bad, func(t *testing.T) {
			rec := serve(e, testutil.NewUploadRequest("cat.png", "image/png", []byte("respond:"+bad)))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "File type invalid")
			assertNoStagedFiles(t)
		})
	}

	t.Run("disallowed type never reaches upstream", func(t *testing.T) {
		before := uploads.Load()
		rec := serve(e, testutil.NewUploadRequest("notes.txt", "text/plain", []byte("hi")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, before, uploads.Load())
		assertNoStagedFiles(t)
	})

	t.Run("unreachable upstream", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		deadClient := upstream.NewClient(upstream.Options{BaseURL: deadURL})
		e := newTestServer(t, store, deadClient, deadClient)
		rec := serve(e, testutil.NewUploadRequest("cat.png", "image/png", []byte("cat")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assertNoStagedFiles(t)
	})
}

func TestUploadHandler_CountsTypeMismatches(t *testing.T) {
	policy, err := upload.NewPolicy(maxTestSize, "png")
	require.NoError(t, err)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	stats := NewStats()
	uploader := &testutil.MockUploader{URL: "/file/x.png"}
	handler := NewUploadHandler(upload.NewReceiver(policy, store, "file"), store, uploader, stats)

	pngBytes := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	uploads := []struct {
		name string
		data []byte
	}{
		{"real.png", pngBytes},
		{"renamed.png", []byte("just some text")},
	}

	e := echo.New()
	for _, u := range uploads {
		rec := httptest.NewRecorder()
		c := e.NewContext(testutil.NewUploadRequest(u.name, "image/png", u.data), rec)
		require.NoError(t, handler.HandleUpload(c))
		assert.Equal(t, http.StatusFound, rec.Code, u.name)
	}

	snap := stats.Snapshot(store.Count())
	assert.Equal(t, int64(1), snap.TypeMismatches)
	assert.Equal(t, int64(2), snap.UploadsForwarded)
	assert.Len(t, uploader.Calls(), 2)
}
