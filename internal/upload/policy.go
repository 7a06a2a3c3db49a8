// Package upload receives a single file from a multipart form and stages it
// for forwarding.
package upload

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Reason classifies why an upload was rejected.
type Reason string

const (
	ReasonMissingFile     Reason = "missing_file"
	ReasonTooLarge        Reason = "too_large"
	ReasonDisallowedType  Reason = "disallowed_type"
	ReasonUnexpectedField Reason = "unexpected_field"
	ReasonMalformed       Reason = "malformed"
)

// ValidationError is a rejection the user can fix. Message is safe to show.
type ValidationError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Policy holds the limits an upload must satisfy.
type Policy struct {
	MaxSize int64
	Allowed *regexp.Regexp
}

// NewPolicy compiles the allow-list pattern, e.g. "jpeg|jpg|png".
func NewPolicy(maxSize int64, allowedTypes string) (Policy, error) {
	re, err := regexp.Compile(allowedTypes)
	if err != nil {
		return Policy{}, fmt.Errorf("compiling allowed types: %w", err)
	}
	return Policy{MaxSize: maxSize, Allowed: re}, nil
}

// CheckType requires both the extension and the declared MIME type to match.
// The pattern is unanchored, so "image/jpeg" matches on "jpeg".
func (p Policy) CheckType(filename, mimeType string) error {
	ext := strings.ToLower(path.Ext(filename))
	if !p.Allowed.MatchString(ext) || !p.Allowed.MatchString(mimeType) {
		return &ValidationError{
			Reason:  ReasonDisallowedType,
			Message: "Only images and videos are allowed!",
			Err:     fmt.Errorf("extension %q, type %q", ext, mimeType),
		}
	}
	return nil
}

// CheckSize rejects a declared or measured size above the limit.
func (p Policy) CheckSize(n int64) error {
	if n > p.MaxSize {
		return p.tooLarge(fmt.Errorf("%d bytes", n))
	}
	return nil
}

// LimitLabel renders the size limit for people, e.g. "5MB".
func (p Policy) LimitLabel() string {
	return humanSize(p.MaxSize)
}

// TooLargeMessage is shown when a file exceeds the limit.
func (p Policy) TooLargeMessage() string {
	return fmt.Sprintf("File size exceeds %s limit.", p.LimitLabel())
}

func (p Policy) tooLarge(cause error) *ValidationError {
	return &ValidationError{
		Reason:  ReasonTooLarge,
		Message: p.TooLargeMessage(),
		Err:     cause,
	}
}

// humanSize renders whole mebibytes as "5MB" and falls back to bytes.
func humanSize(n int64) string {
	const mib = 1024 * 1024
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
