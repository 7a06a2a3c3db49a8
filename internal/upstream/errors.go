package upstream

import (
	"errors"
	"fmt"
)

// ErrUnexpectedFormat matches any *FormatError via errors.Is.
var ErrUnexpectedFormat = errors.New("unexpected upstream response format")

// FormatError means the upload endpoint answered 2xx with a body that does
// not satisfy the response contract.
type FormatError struct {
	Reason   string
	Upstream string // "error" field reported by the service, if any
	Body     string
}

func (e *FormatError) Error() string {
	msg := "upstream format: " + e.Reason
	if e.Upstream != "" {
		msg += " (upstream said: " + e.Upstream + ")"
	}
	return msg
}

func (e *FormatError) Is(target error) bool {
	return target == ErrUnexpectedFormat
}

// StatusError is a non-2xx response from the upstream service.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: upstream returned %d", e.Method, e.URL, e.Code)
}
