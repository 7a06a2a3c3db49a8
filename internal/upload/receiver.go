package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/rbxg/upload-mirror/internal/models"
	"github.com/rbxg/upload-mirror/internal/storage"
)

// envelopeSlack is the room left for multipart boundaries and other form
// fields on top of the file size limit.
const envelopeSlack = 1 << 20

// Stager is the part of the storage layer the receiver needs.
type Stager interface {
	Stage(name, mimeType string, r io.Reader, limit int64) (*models.StagedFile, error)
	Release(id string) error
}

// Receiver pulls exactly one file out of a multipart request.
type Receiver struct {
	policy    Policy
	store     Stager
	fieldName string
}

// NewReceiver creates a receiver reading the given form field.
func NewReceiver(policy Policy, store Stager, fieldName string) *Receiver {
	return &Receiver{
		policy:    policy,
		store:     store,
		fieldName: fieldName,
	}
}

// Receive streams the request body, validates the file part and stages it.
// The caller must Release the returned file.
//
// Validation failures are returned as *ValidationError; anything else is a
// server-side problem.
func (rc *Receiver) Receive(w http.ResponseWriter, r *http.Request) (*models.StagedFile, error) {
	bodyLimit := rc.policy.MaxSize + envelopeSlack
	if r.ContentLength > bodyLimit {
		return nil, rc.policy.tooLarge(fmt.Errorf("request body of %d bytes", r.ContentLength))
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &ValidationError{Reason: ReasonMissingFile, Message: "No file uploaded.", Err: err}
	}

	var staged *models.StagedFile
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			rc.discard(staged)
			return nil, rc.classifyReadError(err)
		}

		if part.FileName() == "" {
			// plain form values are not ours to interpret
			part.Close()
			continue
		}
		if part.FormName() != rc.fieldName || staged != nil {
			part.Close()
			rc.discard(staged)
			return nil, &ValidationError{
				Reason:  ReasonUnexpectedField,
				Message: "Unexpected field",
				Err:     fmt.Errorf("file part %q", part.FormName()),
			}
		}

		staged, err = rc.stagePart(part.FileName(), part.Header.Get("Content-Type"), part.Header.Get("Content-Length"), part)
		part.Close()
		if err != nil {
			return nil, err
		}
	}

	if staged == nil {
		return nil, &ValidationError{Reason: ReasonMissingFile, Message: "No file uploaded."}
	}
	return staged, nil
}

func (rc *Receiver) stagePart(fileName, mimeType, declaredSize string, body io.Reader) (*models.StagedFile, error) {
	name := filepath.Base(fileName)

	if err := rc.policy.CheckType(name, mimeType); err != nil {
		return nil, err
	}
	if declaredSize != "" {
		if n, err := strconv.ParseInt(declaredSize, 10, 64); err == nil {
			if err := rc.policy.CheckSize(n); err != nil {
				return nil, err
			}
		}
	}

	staged, err := rc.store.Stage(name, mimeType, body, rc.policy.MaxSize)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, storage.ErrTooLarge), errors.As(err, &maxErr):
			return nil, rc.policy.tooLarge(err)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, &ValidationError{Reason: ReasonMalformed, Message: "Malformed upload.", Err: err}
		}
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	return staged, nil
}

// classifyReadError maps body read failures to validation errors.
func (rc *Receiver) classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return rc.policy.tooLarge(err)
	}
	return &ValidationError{Reason: ReasonMalformed, Message: "Malformed upload.", Err: err}
}

func (rc *Receiver) discard(f *models.StagedFile) {
	if f != nil {
		rc.store.Release(f.ID)
	}
}
