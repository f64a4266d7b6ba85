package upload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		wantErr  bool
	}{
		{"png by both", "sample.png", "image/png", false},
		{"jpeg upper-case extension", "IMG_001.JPEG", "", false},
		{"jpg extension only", "flir.jpg", "application/octet-stream", false},
		{"tif extension", "scan.tif", "", false},
		{"tiff extension", "scan.tiff", "", false},
		{"mime only", "capture", "image/tiff", false},
		{"non-standard image/jpg mime", "capture.bin", "image/jpg", false},
		{"non-standard image/tif mime", "capture.bin", "image/tif", false},
		{"renamed non-image passes", "notes.txt.png", "text/plain", false},
		{"pdf rejected", "sample.pdf", "application/pdf", true},
		{"gif rejected", "anim.gif", "image/gif", true},
		{"no extension no mime", "README", "", true},
		{"extension without dot", "png", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.fileName, tt.mimeType)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedFormat), "expected ErrUnsupportedFormat, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSelectFirstSupported(t *testing.T) {
	t.Run("picks first supported", func(t *testing.T) {
		idx, err := SelectFirstSupported([]Candidate{
			{Name: "a.pdf", Type: "application/pdf"},
			{Name: "b.png", Type: "image/png"},
			{Name: "c.jpg", Type: "image/jpeg"},
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, idx)
	})

	t.Run("none supported", func(t *testing.T) {
		idx, err := SelectFirstSupported([]Candidate{{Name: "a.pdf"}, {Name: "b.doc"}})
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Equal(t, -1, idx)
	})

	t.Run("empty selection", func(t *testing.T) {
		_, err := SelectFirstSupported(nil)
		assert.ErrorIs(t, err, ErrNoFile)
	})
}

func TestMIMEForExtension(t *testing.T) {
	m, ok := MIMEForExtension("x.TIF")
	assert.True(t, ok)
	assert.Equal(t, "image/tiff", m)

	_, ok = MIMEForExtension("x.gif")
	assert.False(t, ok)
}
