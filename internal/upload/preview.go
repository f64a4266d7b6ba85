package upload

import (
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/tiff"
)

const fallbackMIME = "application/octet-stream"

// PreviewDataURL encodes data as a data: URL. An empty declared type falls
// back to the type implied by the extension.
func PreviewDataURL(name, mimeType string, data []byte) string {
	mt := strings.TrimSpace(mimeType)
	if mt == "" {
		if m, ok := MIMEForExtension(name); ok {
			mt = m
		} else {
			mt = fallbackMIME
		}
	}

	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mt) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mt)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// Inspection holds what could be learned from the file content. All fields
// are informational; an image that cannot be decoded is still accepted.
type Inspection struct {
	DetectedType string
	IsImage      bool
	Width        int
	Height       int
}

// InspectFile sniffs the file type and decodes the image header.
func InspectFile(path string) (Inspection, error) {
	f, err := os.Open(path)
	if err != nil {
		return Inspection{}, err
	}
	defer f.Close()

	return Inspect(f)
}

// Inspect reads the head of r for type sniffing, then rewinds and decodes
// the image header.
func Inspect(r io.ReadSeeker) (Inspection, error) {
	var out Inspection

	head := make([]byte, 261)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return out, err
	}
	head = head[:n]

	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		out.DetectedType = kind.MIME.Value
	}
	out.IsImage = filetype.IsImage(head)

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return out, err
	}
	if cfg, _, err := image.DecodeConfig(r); err == nil {
		out.Width = cfg.Width
		out.Height = cfg.Height
	}

	return out, nil
}
