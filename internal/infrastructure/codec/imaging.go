package codec

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/mansoorceksport/imgcrop/internal/domain"

	// Register BMP so DecodeConfig can read its header as well as Decode
	_ "golang.org/x/image/bmp"
)

// Imaging implements domain.ImageCodec on top of disintegration/imaging
type Imaging struct{}

// New returns the default codec
func New() *Imaging {
	return &Imaging{}
}

// Decode reads a GIF, JPEG, PNG, BMP or TIFF image, applying EXIF orientation
func (c *Imaging) Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrCodec, err)
	}
	return img, nil
}

// Crop cuts the (x, y, width, height) rectangle out of img.
// The rectangle is clamped to the image bounds; an empty intersection is an error.
func (c *Imaging) Crop(img image.Image, width, height, x, y int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: crop size %dx%d must be positive", domain.ErrCodec, width, height)
	}

	origin := img.Bounds().Min
	// x+width past MaxInt would wrap and image.Rect would swap the corners
	if x > math.MaxInt-width || y > math.MaxInt-height ||
		(origin.X > 0 && x > math.MaxInt-width-origin.X) ||
		(origin.Y > 0 && y > math.MaxInt-height-origin.Y) {
		return nil, fmt.Errorf("%w: crop region (%d,%d)+%dx%d outside image bounds %v",
			domain.ErrCodec, x, y, width, height, img.Bounds())
	}
	rect := image.Rect(x, y, x+width, y+height).Add(origin)

	cropped := imaging.Crop(img, rect)
	if cropped.Bounds().Empty() {
		return nil, fmt.Errorf("%w: crop region (%d,%d)+%dx%d outside image bounds %v",
			domain.ErrCodec, x, y, width, height, img.Bounds())
	}
	return cropped, nil
}

// EncodePNG writes img as PNG
func (c *Imaging) EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrCodec, err)
	}
	return nil
}

// Inspect reads only the image header and reports its dimensions and format
func (c *Imaging) Inspect(data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: inspect: %v", domain.ErrCodec, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, "", fmt.Errorf("%w: inspect: empty image %dx%d", domain.ErrCodec, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, format, nil
}
