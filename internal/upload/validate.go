package upload

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when neither the extension nor the
	// MIME type of a file is on the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoFile is returned when a selection contains no files at all.
	ErrNoFile = errors.New("no file provided")
)

// Notices shown to the user for upload outcomes.
const (
	NoticeUnsupportedTitle       = "Unsupported File Format"
	NoticeUnsupportedDescription = "Please upload a thermal image in JPG, PNG, or TIFF format."
	NoticeUploadedTitle          = "Image Uploaded Successfully"
	NoticeUploadedDescription    = "Your thermal image is ready for analysis."
)

// SupportedExtensions lists accepted file extensions, including the dot.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif"}

// SupportedMIMETypes lists accepted declared MIME types.
var SupportedMIMETypes = []string{"image/jpeg", "image/jpg", "image/png", "image/tiff", "image/tif"}

var extensionMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// Extension returns the lower-cased extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Validate checks a file against the allow-list. Either a supported
// extension or a supported MIME type is enough; content is not inspected.
func Validate(name, mimeType string) error {
	if slices.Contains(SupportedMIMETypes, strings.ToLower(strings.TrimSpace(mimeType))) {
		return nil
	}
	if slices.Contains(SupportedExtensions, Extension(name)) {
		return nil
	}
	return ErrUnsupportedFormat
}

// Candidate is one file of a user selection.
type Candidate struct {
	Name string
	Type string
	Size int64
}

// SelectFirstSupported returns the index of the first candidate that passes
// Validate. Dropping several files keeps the first usable one.
func SelectFirstSupported(candidates []Candidate) (int, error) {
	if len(candidates) == 0 {
		return -1, ErrNoFile
	}
	for i, c := range candidates {
		if Validate(c.Name, c.Type) == nil {
			return i, nil
		}
	}
	return -1, ErrUnsupportedFormat
}

// MIMEForExtension returns the canonical MIME type for a supported extension.
func MIMEForExtension(name string) (string, bool) {
	m, ok := extensionMIME[Extension(name)]
	return m, ok
}
