package models

import "time"

// UploadedFile represents metadata about an image held by an analysis session.
type UploadedFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`                   // MIME type as declared by the client
	DetectedType string    `json:"detectedType,omitempty"` // MIME type sniffed from content
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
	ImageURL     string    `json:"imageUrl,omitempty"`
}

// SizeMB returns the size in megabytes, as shown under the preview.
func (f *UploadedFile) SizeMB() float64 {
	return float64(f.Size) / 1024 / 1024
}
