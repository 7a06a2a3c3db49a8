package models

import "time"

// StagedFile represents an uploaded file held on local disk until it has
// been forwarded upstream.
type StagedFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`         // original filename from the form
	MIMEType     string    `json:"mimeType"`     // as declared by the client
	DetectedMIME string    `json:"detectedMime"` // sniffed from content, informational
	Size         int64     `json:"size"`
	Path         string    `json:"-"`
	StagedAt     time.Time `json:"stagedAt"`
}
