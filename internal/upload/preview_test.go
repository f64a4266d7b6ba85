package upload

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func TestPreviewDataURL(t *testing.T) {
	data := []byte("abc")

	t.Run("declared type", func(t *testing.T) {
		got := PreviewDataURL("a.png", "image/png", data)
		assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data), got)
	})

	t.Run("type from extension", func(t *testing.T) {
		got := PreviewDataURL("a.TIF", "", data)
		assert.True(t, strings.HasPrefix(got, "data:image/tiff;base64,"))
	})

	t.Run("unknown type", func(t *testing.T) {
		got := PreviewDataURL("capture", "", data)
		assert.True(t, strings.HasPrefix(got, "data:application/octet-stream;base64,"))
	})
}

func TestInspect(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		insp, err := Inspect(bytes.NewReader(encodePNG(t, 32, 24)))
		require.NoError(t, err)
		assert.Equal(t, "image/png", insp.DetectedType)
		assert.True(t, insp.IsImage)
		assert.Equal(t, 32, insp.Width)
		assert.Equal(t, 24, insp.Height)
	})

	t.Run("tiff file", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, tiff.Encode(&buf, testImage(16, 8), nil))
		path := filepath.Join(t.TempDir(), "scan.tiff")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

		insp, err := InspectFile(path)
		require.NoError(t, err)
		assert.Equal(t, "image/tiff", insp.DetectedType)
		assert.Equal(t, 16, insp.Width)
		assert.Equal(t, 8, insp.Height)
	})

	t.Run("renamed text is not an image", func(t *testing.T) {
		insp, err := Inspect(bytes.NewReader([]byte("just some text")))
		require.NoError(t, err)
		assert.False(t, insp.IsImage)
		assert.Zero(t, insp.Width)
	})

	t.Run("empty content", func(t *testing.T) {
		insp, err := Inspect(bytes.NewReader(nil))
		require.NoError(t, err)
		assert.Empty(t, insp.DetectedType)
	})
}
