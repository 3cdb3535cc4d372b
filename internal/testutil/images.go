// Package testutil builds in-memory image fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// Gradient returns a w×h image whose pixels differ so crops are observable
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	return img
}

// Encode renders a w×h gradient in the given format: "png", "jpeg", "gif" or "bmp"
func Encode(t testing.TB, format string, w, h int) []byte {
	t.Helper()

	img := Gradient(w, h)
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		t.Fatalf("unknown fixture format %q", format)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

// PNG1x1 is the smallest fixture used by the upload scenarios
func PNG1x1(t testing.TB) []byte {
	return Encode(t, "png", 1, 1)
}

// DecodedSize decodes data and returns its dimensions
func DecodedSize(t testing.TB, data []byte) (int, int, string) {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}
